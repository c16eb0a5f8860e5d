// internal/storage/memory/export.go
package memory

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/geomemo/geomemo/pkg/core"
)

// Snapshot is the root JSON structure of a memory backend file
type Snapshot struct {
	Version int           `json:"version"`
	Markers []core.Marker `json:"markers"`
}

const snapshotVersion = 1

// gzipMagic starts every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// readSnapshot loads a snapshot. A missing file yields an empty snapshot.
// Gzip content is detected by its header, not by the file name.
func readSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{Version: snapshotVersion}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if head, _ := br.Peek(len(gzipMagic)); bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to read gzip snapshot: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// writeSnapshot writes the snapshot as JSON, gzipped when compress is set or
// the path ends in .gz.
func writeSnapshot(path string, compress bool, snap Snapshot) error {
	snap.Version = snapshotVersion

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if compress || strings.HasSuffix(path, ".gz") {
		return writeGzipJSON(path, snap)
	}
	return writeJSON(path, snap)
}

func writeJSON(path string, data Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
