package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names.
const (
	SchemaAgentCreate   = "agent_create"
	SchemaAgentPatch    = "agent_patch"
	SchemaMissionCreate = "mission_create"
	SchemaMissionPatch  = "mission_patch"
	SchemaMissionAssign = "mission_assign"
	SchemaDroneCreate   = "drone_create"
	SchemaWSCommand     = "ws_command"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid request")

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const baseURL = "mem:///schemas/"

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func load() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020

		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			compileErr = err
			return
		}
		for _, e := range entries {
			b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
			if err != nil {
				compileErr = err
				return
			}
			if err := c.AddResource(baseURL+e.Name(), bytes.NewReader(b)); err != nil {
				compileErr = fmt.Errorf("add %s: %w", e.Name(), err)
				return
			}
		}

		out := make(map[string]*jsonschema.Schema, len(entries))
		for _, e := range entries {
			name := strings.TrimSuffix(e.Name(), ".schema.json")
			s, err := c.Compile(baseURL + e.Name())
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", e.Name(), err)
				return
			}
			out[name] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Init compiles every schema. Call at startup to fail fast.
func Init() error {
	_, err := load()
	return err
}

// Validate checks raw JSON against the named schema.
// Failures wrap ErrInvalid and name the first offending location.
func Validate(name string, raw []byte) error {
	schemas, err := load()
	if err != nil {
		return err
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", ErrInvalid, err)
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: %s", ErrInvalid, describe(ve))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// describe picks the deepest cause, which is the one a client can act on.
func describe(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
