package gallery

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ManifestEntry is one subject to import.
type ManifestEntry struct {
	Line      int
	ID        string
	Name      string
	Class     string
	ImagePath string
}

// ErrManifestHeader is returned when a manifest lacks a required column.
var ErrManifestHeader = errors.New("manifest header must contain id, name and image columns")

// ReadManifest parses an import manifest: a CSV file with a header row naming the
// columns id, name, image and optionally class, in any order. Relative image paths
// are resolved against baseDir.
func ReadManifest(r io.Reader, baseDir string) ([]ManifestEntry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "name", "image"} {
		if _, ok := columns[required]; !ok {
			return nil, ErrManifestHeader
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var entries []ManifestEntry
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		line, _ := cr.FieldPos(0)

		entry := ManifestEntry{
			Line:      line,
			ID:        field(record, "id"),
			Name:      field(record, "name"),
			Class:     field(record, "class"),
			ImagePath: field(record, "image"),
		}
		if entry.ID == "" && entry.Name == "" && entry.ImagePath == "" {
			continue
		}
		if entry.ImagePath != "" && !filepath.IsAbs(entry.ImagePath) {
			entry.ImagePath = filepath.Join(baseDir, entry.ImagePath)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
