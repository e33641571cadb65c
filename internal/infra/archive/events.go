// Package archive writes the event stream and world snapshots to zstd-compressed files
// under the data directory.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/monyverse/cyberpunk/internal/events"
)

const hourLayout = "2006-01-02-15"

// EventWriter appends events as JSON lines to one zstd file per UTC hour:
// <dir>/events-YYYY-MM-DD-HH.jsonl.zst. It satisfies events.EventPersister.
type EventWriter struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewEventWriter archives into <dataDir>/events.
func NewEventWriter(dataDir string) *EventWriter {
	return &EventWriter{
		dir: filepath.Join(dataDir, "events"),
		now: time.Now,
	}
}

// Append writes one event line. The hour bucket comes from the event timestamp when set.
func (w *EventWriter) Append(e events.SimEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	at := e.Timestamp
	if at.IsZero() {
		at = w.now()
	}
	hour := at.UTC().Format(hourLayout)
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close finishes the current zstd frame.
func (w *EventWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// PathForHour is the file holding events of the given UTC hour.
func (w *EventWriter) PathForHour(t time.Time) string {
	return w.pathForHour(t.UTC().Format(hourLayout))
}

func (w *EventWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *EventWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *EventWriter) pathForHour(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("events-%s.jsonl.zst", hour))
}

// ReadEvents decodes an archive file. Payloads come back as generic JSON values.
// Appending to an existing hour file produces concatenated frames, which the decoder reads in sequence.
func ReadEvents(path string) ([]events.SimEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []events.SimEvent
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e events.SimEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s: line %d: %w", filepath.Base(path), len(out)+1, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
