package catalog

// Option applies a configuration option to the Catalog.
type Option func(*Catalog)

// WithDefaultThresholds sets the cut points given to three-level bin specs
// registered without explicit thresholds. Invalid pairs are ignored.
func WithDefaultThresholds(low, high float64) Option {
	return func(c *Catalog) {
		if low > 0 && high > low && high < 1 {
			c.defaultThresholds = []float64{low, high}
		}
	}
}
