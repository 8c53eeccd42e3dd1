package app

import (
	"slices"

	"github.com/Tag-UCSD/image-tagger/internal/config"
	"github.com/Tag-UCSD/image-tagger/internal/domain/bnexport"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/composite"
)

// BuildCatalog returns the built-in catalog with cfg's thresholds, extended
// from cfg.CatalogPath when set. The catalog is not validated.
func BuildCatalog(cfg *config.Config) (*catalog.Catalog, int, error) {
	var opts []catalog.Option
	if t := cfg.BinThresholds; len(t) == 2 {
		opts = append(opts, catalog.WithDefaultThresholds(t[0], t[1]))
	}
	cat := catalog.NewDefault(opts...)
	if cfg.CatalogPath == "" {
		return cat, 0, nil
	}
	n, err := cat.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, 0, err
	}
	return cat, n, nil
}

// CheckCatalog runs the startup gate for cfg without opening a store: the
// catalog must validate and every candidate index needs a rule.
func CheckCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat, _, err := BuildCatalog(cfg)
	if err != nil {
		return nil, err
	}
	engine, _, err := NewEngine(cfg, cat)
	if err != nil {
		return cat, err
	}
	return cat, bnexport.CheckCatalog(cat, engine)
}

// NewEngine creates the rule engine for cat. Entries tagged vlm that have no
// built-in rule, such as extension dimensions, get a passthrough rule; the
// keys given one are returned. Overrides apply to built-in rules only.
func NewEngine(cfg *config.Config, cat *catalog.Catalog) (*composite.Engine, []string, error) {
	engine, err := composite.New(cat, composite.WithOverrides(cfg.RuleOverrides))
	if err != nil {
		return nil, nil, err
	}
	var added []string
	for _, e := range cat.Entries() {
		if !slices.Contains(e.Tags, catalog.TagVLM) {
			continue
		}
		if _, ok := engine.Rule(e.Key); ok {
			continue
		}
		if err := engine.Register(composite.Passthrough(e.Key)); err != nil {
			return nil, nil, err
		}
		added = append(added, e.Key)
	}
	return engine, added, nil
}
