package patch

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// FormatVersion is written into every saved document.
const FormatVersion = 1

// ErrChecksumMismatch reports a document whose body no longer matches its checksum.
var ErrChecksumMismatch = errors.New("patch checksum mismatch")

// Document is a patch as the host sees it. Modules are opaque to the host;
// only parameter values are interpreted.
type Document struct {
	ID      string             `json:"id"`
	Version int                `json:"version"`
	Modules []json.RawMessage  `json:"modules,omitempty"`
	Params  map[string]float64 `json:"params"`
}

type envelope struct {
	Checksum string          `json:"checksum,omitempty"`
	Patch    json.RawMessage `json:"patch"`
}

// Checksum returns the hex BLAKE3 digest of b.
func Checksum(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Read parses and verifies a document file. Documents without a checksum are
// accepted so hand-edited patches still load.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("parse patch %s: %w", filepath.Base(path), err)
	}
	if len(env.Patch) == 0 {
		return nil, fmt.Errorf("parse patch %s: missing patch body", filepath.Base(path))
	}
	if env.Checksum != "" {
		// The body is hashed in compact form; the file itself is indented.
		var compact bytes.Buffer
		if err := json.Compact(&compact, env.Patch); err != nil {
			return nil, fmt.Errorf("parse patch body %s: %w", filepath.Base(path), err)
		}
		if got := Checksum(compact.Bytes()); got != env.Checksum {
			return nil, fmt.Errorf("%w: %s (expected %s, got %s)", ErrChecksumMismatch, filepath.Base(path), env.Checksum, got)
		}
	}

	var doc Document
	if err := json.Unmarshal(env.Patch, &doc); err != nil {
		return nil, fmt.Errorf("parse patch body %s: %w", filepath.Base(path), err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("patch %s has version %d, newer than supported %d", filepath.Base(path), doc.Version, FormatVersion)
	}
	if doc.Params == nil {
		doc.Params = map[string]float64{}
	}
	return &doc, nil
}

// Write stores doc at path atomically: temp file, fsync, rename.
func Write(path string, doc *Document) error {
	doc.Version = FormatVersion
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	out, err := json.MarshalIndent(envelope{Checksum: Checksum(body), Patch: body}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal patch envelope: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create patch directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".patch-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp patch: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write patch: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync patch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close patch: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace patch: %w", err)
	}
	return nil
}
