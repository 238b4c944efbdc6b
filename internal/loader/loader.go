// Package loader reads task records from CSV, JSON and HCL files.
package loader

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhenderson/criticalpy/internal/graph"
)

// Load reads task records from path, choosing the format by extension.
// Unknown extensions are read as CSV.
func Load(path string) ([]graph.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tasks %s: %w", path, err)
	}

	var records []graph.Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		records, err = ReadJSON(data, path)
	case ".hcl":
		records, err = ReadHCL(data, path)
	default:
		records, err = ReadCSV(bytes.NewReader(data), path)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded task records.", "path", path, "count", len(records))
	return records, nil
}
