package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNullScanCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullScanCache()

	if err := c.Save(ctx, map[string]bool{"a.jar": true}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	set, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(set) != 0 {
		t.Error("NullScanCache should not store data")
	}
	if c.Path() != "" {
		t.Errorf("Path() = %q", c.Path())
	}
}

func TestFileScanCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileScanCache(dir)
	if err != nil {
		t.Fatalf("NewFileScanCache error: %v", err)
	}
	if c.Path() != filepath.Join(dir, FileName) {
		t.Errorf("Path() = %q", c.Path())
	}

	// Missing file is an empty set
	set, err := c.Load(ctx)
	if err != nil || len(set) != 0 {
		t.Fatalf("Load on missing file = %v, %v", set, err)
	}

	want := map[string]bool{"/mods/b.jar": true, "/mods/a.jar": true}
	if err := c.Save(ctx, want); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	data, _ := os.ReadFile(c.Path())
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != Header {
		t.Errorf("first line = %q, want header", lines[0])
	}
	if len(lines) != 3 || lines[1] != "/mods/a.jar" {
		t.Errorf("lines = %v, want sorted entries", lines)
	}

	got, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(got) != 2 || !got["/mods/a.jar"] || !got["/mods/b.jar"] {
		t.Errorf("Load() = %v", got)
	}
}

func TestFileScanCacheDiscardsForeignFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, _ := NewFileScanCache(dir)

	// Headerless file, as written by older loaders
	os.WriteFile(c.Path(), []byte("file:/mods/a.jar\nfile:/mods/b.jar\n"), 0644)

	set, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("Load() = %v, want empty", set)
	}
	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Error("foreign cache file should be deleted")
	}
}

func TestFileScanCachePurgesLegacy(t *testing.T) {
	legacy := filepath.Join(t.TempDir(), FileName)
	os.WriteFile(legacy, []byte("old"), 0644)

	if _, err := NewFileScanCache(t.TempDir(), legacy, filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("NewFileScanCache error: %v", err)
	}
	if _, err := os.Stat(legacy); !os.IsNotExist(err) {
		t.Error("legacy cache should be removed")
	}
}

func TestFileScanCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileScanCache(t.TempDir())
	c.Save(ctx, map[string]bool{"x": true})

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Errorf("second Clear error: %v", err)
	}
	set, _ := c.Load(ctx)
	if len(set) != 0 {
		t.Errorf("Load after Clear = %v", set)
	}
}
