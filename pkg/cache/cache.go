// Package cache persists the set of scan sources known to contain no
// dependency manifests, so later runs can skip them.
//
// Two implementations are provided:
//   - [FileScanCache]: a line-oriented text file in the temp directory
//   - [NullScanCache]: never remembers anything
package cache

import "context"

// FileName is the name of the scan cache file.
const FileName = ".depscan_cache"

// Header is the first line of every scan cache file. Files without it are
// discarded.
const Header = "# deploader depscan v1"

// ScanCache stores source identifiers that produced no manifests.
type ScanCache interface {
	// Load returns the cached identifiers. A missing or unusable cache
	// yields an empty set.
	Load(ctx context.Context) (map[string]bool, error)

	// Save replaces the cached identifiers with set.
	Save(ctx context.Context, set map[string]bool) error

	// Path returns the backing file, or "" if there is none.
	Path() string
}
