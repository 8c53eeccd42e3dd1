// Package catalog is the canonical, versioned registry of derivable
// composite indices. Entries may be added but never removed or redefined so
// exported snapshots stay compatible across releases.
package catalog

import (
	"fmt"
	"slices"
	"sync"
)

// ValueType is the declared type of an index value.
type ValueType string

// Allowed value types.
const (
	TypeFloat ValueType = "float"
	TypeInt   ValueType = "int"
	TypeStr   ValueType = "str"
)

// Entry is the canonical definition of one derivable index.
type Entry struct {
	Key              string    `yaml:"key" json:"key" validate:"nonblank,nowhitespace"`
	Label            string    `yaml:"label" json:"label" validate:"nonblank"`
	Description      string    `yaml:"description" json:"description" validate:"nonblank"`
	Type             ValueType `yaml:"type" json:"type" validate:"oneof=float int str"`
	Bins             *BinSpec  `yaml:"bins,omitempty" json:"bins,omitempty"`
	Tags             []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
	CandidateBNInput bool      `yaml:"candidate_bn_input" json:"candidate_bn_input"`
}

// BinField returns the bin attribute key, or "" when the entry is not binned.
func (e Entry) BinField() string {
	if e.Bins == nil {
		return ""
	}
	return e.Bins.Field
}

func (e Entry) clone() Entry {
	out := e
	out.Tags = slices.Clone(e.Tags)
	if e.Bins != nil {
		b := e.Bins.clone()
		out.Bins = &b
	}
	return out
}

// Catalog holds index entries in registration order.
type Catalog struct {
	mu                sync.RWMutex
	entries           map[string]Entry
	order             []string
	defaultThresholds []float64
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		entries:           make(map[string]Entry),
		defaultThresholds: []float64{DefaultLowCut, DefaultHighCut},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefault creates a catalog preloaded with the built-in indices.
func NewDefault(opts ...Option) *Catalog {
	c := New(opts...)
	for _, e := range builtinEntries() {
		// Built-in keys are unique; a collision here is a programming error.
		if err := c.Register(e); err != nil {
			panic(err)
		}
	}
	return c
}

// Register adds an entry. Redefining an existing key fails with ErrKeyExists.
// Three-level bin specs without thresholds receive the catalog defaults.
func (c *Catalog) Register(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[e.Key]; ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, e.Key)
	}
	e = e.clone()
	if e.Bins != nil && len(e.Bins.Thresholds) == 0 && len(e.Bins.Values) == len(c.defaultThresholds)+1 {
		e.Bins.Thresholds = slices.Clone(c.defaultThresholds)
	}
	c.entries[e.Key] = e
	c.order = append(c.order, e.Key)
	return nil
}

// Get returns the entry for key.
func (c *Catalog) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Entries returns all entries in registration order.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k].clone())
	}
	return out
}

// Len returns the number of registered entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// CandidateBNKeys returns the sorted keys flagged for BN export.
func (c *Catalog) CandidateBNKeys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.order))
	for _, k := range c.order {
		if c.entries[k].CandidateBNInput {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// GlossaryEntry is the machine-readable description of a candidate index.
type GlossaryEntry struct {
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Type        ValueType `json:"type"`
	Bins        *BinSpec  `json:"bins"`
	Tags        []string  `json:"tags"`
}

// Glossary describes every candidate BN input keyed by index key.
func (c *Catalog) Glossary() map[string]GlossaryEntry {
	out := make(map[string]GlossaryEntry)
	for _, k := range c.CandidateBNKeys() {
		e, _ := c.Get(k)
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		out[k] = GlossaryEntry{
			Label:       e.Label,
			Description: e.Description,
			Type:        e.Type,
			Bins:        e.Bins,
			Tags:        tags,
		}
	}
	return out
}
