package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// extensionFile is the on-disk shape of a catalog extension.
type extensionFile struct {
	Entries []Entry `yaml:"entries"`
}

// LoadFile registers the entries found in a YAML extension file.
func (c *Catalog) LoadFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}
	return c.Load(bytes.NewReader(raw))
}

// Load registers the entries of a YAML document. Extensions may only add
// keys; an attempt to redefine a shipped key fails with ErrKeyExists and
// nothing from the document is registered.
//
// Loading adds schema only. Entries tagged vlm are read through as
// passthrough indices by the service; any other candidate entry needs a
// rule registered in code, or the export gate refuses the catalog.
func (c *Catalog) Load(r io.Reader) (int, error) {
	var doc extensionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}

	seen := make(map[string]bool, len(doc.Entries))
	for _, e := range doc.Entries {
		if _, exists := c.Get(e.Key); exists || seen[e.Key] {
			return 0, fmt.Errorf("%w: %s", ErrKeyExists, e.Key)
		}
		seen[e.Key] = true
	}
	for i, e := range doc.Entries {
		if err := c.Register(e); err != nil {
			return i, err
		}
	}
	return len(doc.Entries), nil
}
