package cache

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/matzehuels/deploader/pkg/observability"
)

// KeyType labels scan cache events in observability hooks.
const KeyType = "scan"

// FileScanCache implements ScanCache as a text file with one identifier
// per line after the header.
type FileScanCache struct {
	path string
}

// NewFileScanCache creates a cache stored as dir/.depscan_cache. Cache
// files found at any of the legacy locations are deleted.
func NewFileScanCache(dir string, legacy ...string) (*FileScanCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	for _, old := range legacy {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove legacy scan cache %s: %w", old, err)
		}
	}
	return &FileScanCache{path: filepath.Join(dir, FileName)}, nil
}

// Path returns the cache file location.
func (c *FileScanCache) Path() string {
	return c.path
}

// Load reads the cache file. A file with a missing or foreign header is
// deleted and treated as empty.
func (c *FileScanCache) Load(ctx context.Context) (map[string]bool, error) {
	set := make(map[string]bool)

	f, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return set, nil
	}
	if err != nil {
		return set, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != Header {
		f.Close()
		return set, c.discard()
	}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = true
	}
	if err := sc.Err(); err != nil {
		f.Close()
		return make(map[string]bool), c.discard()
	}

	return set, nil
}

// Save atomically rewrites the cache file with the identifiers in set,
// sorted for stable output.
func (c *FileScanCache) Save(ctx context.Context, set map[string]bool) error {
	keys := make([]string, 0, len(set))
	for k, ok := range set {
		if ok && !strings.ContainsAny(k, "\r\n") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteByte('\n')
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('\n')
	}

	size := buf.Len()
	if err := atomic.WriteFile(c.path, &buf); err != nil {
		return fmt.Errorf("write scan cache: %w", err)
	}
	observability.Cache().OnCacheSet(ctx, KeyType, size)
	return nil
}

// Clear deletes the cache file.
func (c *FileScanCache) Clear() error {
	return c.discard()
}

func (c *FileScanCache) discard() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ ScanCache = (*FileScanCache)(nil)
