package fetcher

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// SnapshotArchive keeps brotli-compressed copies of rendered listing pages so
// selector breakage can be diagnosed after the fact.
type SnapshotArchive struct {
	dir    string
	logger *slog.Logger
}

// NewSnapshotArchive creates the archive directory if needed.
func NewSnapshotArchive(dir string, logger *slog.Logger) (*SnapshotArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &SnapshotArchive{
		dir:    dir,
		logger: logger.With("component", "snapshot_archive"),
	}, nil
}

// Save writes html as <dir>/<timestamp>-<runID>.html.br and returns the path.
func (a *SnapshotArchive) Save(runID string, at time.Time, html string) (string, error) {
	name := fmt.Sprintf("%s-%s.html.br", at.UTC().Format("20060102T150405Z"), sanitizeName(runID))
	path := filepath.Join(a.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	w := brotli.NewWriterLevel(f, brotli.DefaultCompression)
	if _, err := io.WriteString(w, html); err != nil {
		w.Close()
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("flush snapshot: %w", err)
	}

	a.logger.Debug("snapshot saved", "path", path, "size", len(html))
	return path, nil
}

// ReadSnapshot decompresses a snapshot written by Save.
func ReadSnapshot(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(brotli.NewReader(f))
	if err != nil {
		return "", fmt.Errorf("decompress snapshot: %w", err)
	}
	return string(b), nil
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
