// Package catalog persists each table's schema, constraints, index list
// and slot bookkeeping (free-list, max row id) as a JSON sidecar file
// next to the table's data file.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/daniilsunyaev/yarrd/internal/types"
)

// TableMeta is the on-disk sidecar for one table.
type TableMeta struct {
	Name      string             `json:"name"`
	Schema    types.Schema       `json:"schema"`
	MaxRowID  uint64             `json:"max_row_id"`
	FreeList  []uint64           `json:"free_list"`
}

// SidecarPath returns the JSON sidecar path for a table's data file.
func SidecarPath(dataPath string) string {
	return dataPath + ".meta.json"
}

// Write persists meta to path.
func Write(path string, meta *TableMeta) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: marshal table meta: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("catalog: write table meta: %w", err)
	}
	return nil
}

// Read loads a TableMeta previously written with Write.
func Read(path string) (*TableMeta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read table meta: %w", err)
	}
	var meta TableMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal table meta: %w", err)
	}
	meta.Schema.NormalizeLiterals()
	return &meta, nil
}

// Exists reports whether a sidecar file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
