package resultcache

// Option applies a configuration option to the cache.
type Option func(*ristrettoCache)

// WithSyncWrites makes Put block until the entry is visible to Get.
func WithSyncWrites() Option {
	return func(c *ristrettoCache) {
		c.sync = true
	}
}
