package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neomorfeo/modgate/internal/domain"
)

// LoadDir builds a catalog from a directory of JSON module descriptors,
// one module per *.json file.
func LoadDir(dir string) (*Memory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading module descriptor dir: %w", err)
	}
	m := NewMemory()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading descriptor %s: %w", e.Name(), err)
		}
		var md domain.ModuleDescriptor
		if err := json.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("parsing descriptor %s: %w", e.Name(), err)
		}
		if md.ID == "" {
			return nil, fmt.Errorf("descriptor %s has no id", e.Name())
		}
		m.Register(&md)
	}
	return m, nil
}
