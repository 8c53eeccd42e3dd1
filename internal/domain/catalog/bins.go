package catalog

import "slices"

// Default three-level cut points.
const (
	DefaultLowCut  = 0.33
	DefaultHighCut = 0.66
)

// Canonical three-level labels.
const (
	BinLow  = "low"
	BinMid  = "mid"
	BinHigh = "high"
)

// BinSpec maps a continuous index value onto ordered labels. Thresholds are
// ascending cut points, one fewer than Values: a score below Thresholds[i]
// (and not below any earlier cut) gets Values[i].
type BinSpec struct {
	Field      string    `yaml:"field" json:"field" validate:"nonblank,nowhitespace"`
	Values     []string  `yaml:"values" json:"values" validate:"min=1,dive,nonblank"`
	Thresholds []float64 `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// Label returns the bin label for score. It is the only binning function in
// the system; the engine, exporter and inspector all go through it.
func (b BinSpec) Label(score float64) string {
	if len(b.Values) == 0 {
		return ""
	}
	i := 0
	for i < len(b.Thresholds) && i < len(b.Values)-1 && score >= b.Thresholds[i] {
		i++
	}
	return b.Values[i]
}

func (b BinSpec) clone() BinSpec {
	return BinSpec{
		Field:      b.Field,
		Values:     slices.Clone(b.Values),
		Thresholds: slices.Clone(b.Thresholds),
	}
}

// ThreeLevel builds a low/mid/high spec with the given cut points.
func ThreeLevel(field string, low, high float64) *BinSpec {
	return &BinSpec{
		Field:      field,
		Values:     []string{BinLow, BinMid, BinHigh},
		Thresholds: []float64{low, high},
	}
}
