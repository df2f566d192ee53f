package cache

import "context"

// NullScanCache is a ScanCache that never stores anything.
// Useful for testing or when caching should be disabled.
type NullScanCache struct{}

// NewNullScanCache creates a null cache.
func NewNullScanCache() ScanCache {
	return NullScanCache{}
}

// Load always returns an empty set.
func (NullScanCache) Load(context.Context) (map[string]bool, error) {
	return make(map[string]bool), nil
}

// Save does nothing.
func (NullScanCache) Save(context.Context, map[string]bool) error {
	return nil
}

// Path returns "".
func (NullScanCache) Path() string {
	return ""
}

// Ensure NullScanCache implements ScanCache.
var _ ScanCache = NullScanCache{}
