package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestSchemasCompile(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func TestValidateAccepts(t *testing.T) {
	ok := map[string]string{
		SchemaAgentCreate:   `{"name":"Delta","type":"hybrid","strategy":"trader","location":{"x":1,"y":0,"z":2}}`,
		SchemaAgentPatch:    `{"id":"agent-1","status":"offline","experience":40}`,
		SchemaMissionCreate: `{"description":"Survey C","type":"surveillance","reward":50,"difficulty":"hard","xpReward":30,"target":{"x":60,"y":0,"z":-45}}`,
		SchemaMissionPatch:  `{"id":"mission-4","status":"completed"}`,
		SchemaMissionAssign: `{"droneId":"drone-1","missionId":"mission-4","agentId":"agent-1"}`,
		SchemaDroneCreate:   `{"model":"SimDrone Y","battery":80}`,
		SchemaWSCommand:     `{"type":"SIM_START"}`,
	}
	for name, body := range ok {
		if err := Validate(name, []byte(body)); err != nil {
			t.Errorf("%s: expected valid, got %v", name, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	bad := []struct {
		schema string
		body   string
		where  string
	}{
		{SchemaAgentCreate, `{"type":"onchain"}`, "name"},
		{SchemaAgentCreate, `{"name":"X","type":"robot"}`, "/type"},
		{SchemaAgentPatch, `{"name":"X"}`, "id"},
		{SchemaMissionCreate, `{"target":{"x":"far","z":1}}`, "/target/x"},
		{SchemaMissionPatch, `{"id":"m","status":"done"}`, "/status"},
		{SchemaDroneCreate, `{"battery":140}`, "/battery"},
		{SchemaWSCommand, `{"type":"ASSIGN","droneId":"drone-1"}`, "missionId"},
		{SchemaWSCommand, `{"type":"SELF_DESTRUCT"}`, "/type"},
	}
	for _, tc := range bad {
		err := Validate(tc.schema, []byte(tc.body))
		if err == nil {
			t.Errorf("%s %s: expected error", tc.schema, tc.body)
			continue
		}
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: error should wrap ErrInvalid: %v", tc.schema, err)
		}
		if !strings.Contains(err.Error(), tc.where) {
			t.Errorf("%s %s: error %q does not mention %q", tc.schema, tc.body, err, tc.where)
		}
	}
}

func TestValidateMalformedJSON(t *testing.T) {
	err := Validate(SchemaAgentCreate, []byte(`{"name":`))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	err := Validate("nope", []byte(`{}`))
	if err == nil || errors.Is(err, ErrInvalid) {
		t.Fatalf("expected a non-validation error, got %v", err)
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"SIM_STOP","extra":1}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if m.Type != CmdSimStop {
		t.Errorf("expected %s, got %s", CmdSimStop, m.Type)
	}
}
