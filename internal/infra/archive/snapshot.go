package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/monyverse/cyberpunk/internal/world"
)

// SnapshotVersion is written into every header.
const SnapshotVersion = 1

const snapshotExt = ".snap.zst"

// ErrNoSnapshot is returned by Latest when the directory holds no snapshot.
var ErrNoSnapshot = errors.New("no snapshot found")

// Header is the first JSON line inside a snapshot file.
type Header struct {
	Version int       `json:"version"`
	Tick    int64     `json:"tick"`
	SavedAt time.Time `json:"saved_at"`
}

// File is a decoded snapshot.
type File struct {
	Header Header         `json:"header"`
	World  world.Snapshot `json:"world"`
}

// SnapshotDir is where snapshots live under the data directory.
func SnapshotDir(dataDir string) string {
	return filepath.Join(dataDir, "snapshots")
}

// SnapshotPath is <dir>/<tick>.snap.zst.
func SnapshotPath(dir string, tick int64) string {
	return filepath.Join(dir, strconv.FormatInt(tick, 10)+snapshotExt)
}

// WriteSnapshot stores snap for tick and returns the file path.
// The file is written beside its final name and renamed so readers never see a partial snapshot.
func WriteSnapshot(dir string, tick int64, snap world.Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := SnapshotPath(dir, tick)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	if err := encodeSnapshot(f, tick, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}

func encodeSnapshot(f *os.File, tick int64, snap world.Snapshot) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(Header{Version: SnapshotVersion, Tick: tick, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(snap); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// ReadSnapshot decodes one snapshot file.
func ReadSnapshot(path string) (File, error) {
	var out File
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return out, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return out, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &out.Header); err != nil {
		return out, fmt.Errorf("decode header: %w", err)
	}
	if out.Header.Version != SnapshotVersion {
		return out, fmt.Errorf("unsupported snapshot version %d", out.Header.Version)
	}
	if err := json.NewDecoder(br).Decode(&out.World); err != nil {
		return out, fmt.Errorf("json decode: %w", err)
	}
	return out, nil
}

// Latest returns the path of the snapshot with the highest tick in dir.
func Latest(dir string) (string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, ErrNoSnapshot
		}
		return "", 0, err
	}
	best := int64(-1)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		tick, err := strconv.ParseInt(strings.TrimSuffix(name, snapshotExt), 10, 64)
		if err != nil {
			continue
		}
		if tick > best {
			best = tick
		}
	}
	if best < 0 {
		return "", 0, ErrNoSnapshot
	}
	return SnapshotPath(dir, best), best, nil
}

// LoadLatest reads the newest snapshot in dir.
func LoadLatest(dir string) (File, error) {
	path, _, err := Latest(dir)
	if err != nil {
		return File{}, err
	}
	return ReadSnapshot(path)
}
