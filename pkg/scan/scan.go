// Package scan discovers dependency manifests and embedded repositories in
// jar files and directories.
//
// An archive candidate contributes every META-INF/<name>.json entry as a
// manifest and its META-INF/falsepatternlib_repo/ folder as a local
// repository. Legacy mcmod.info files at the archive root are read into the
// registry's mod table. A directory candidate contributes the same entries
// from its META-INF folder.
//
// Each candidate is scanned at most once per [Scanner]. Candidates that
// contribute nothing are remembered in the [cache.ScanCache] and skipped on
// later runs.
package scan

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/deploader/pkg/cache"
	"github.com/matzehuels/deploader/pkg/deps"
	"github.com/matzehuels/deploader/pkg/manifest"
	"github.com/matzehuels/deploader/pkg/observability"
	"github.com/matzehuels/deploader/pkg/registry"
	"github.com/matzehuels/deploader/pkg/repo"
	"github.com/matzehuels/deploader/pkg/version"
)

const (
	metaInf      = "META-INF/"
	embeddedRepo = "falsepatternlib_repo"
)

var manifestEntry = regexp.MustCompile(`^META-INF/\w+\.json$`)

// Result is the outcome of one [Scanner.Scan] call.
type Result struct {
	Manifests    []deps.Source
	Repositories []repo.Repository

	Scanned int // candidates opened
	Cached  int // candidates skipped via the scan cache
}

// Scanner scans candidate sources. It is safe for concurrent use.
type Scanner struct {
	cache    cache.ScanCache
	registry *registry.Registry
	logger   *log.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// New creates a scanner. A nil cache disables negative caching and a nil
// logger discards output.
func New(c cache.ScanCache, reg *registry.Registry, logger *log.Logger) *Scanner {
	if c == nil {
		c = cache.NewNullScanCache()
	}
	if reg == nil {
		reg = registry.New()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scanner{cache: c, registry: reg, logger: logger, seen: make(map[string]bool)}
}

// Scan inspects candidates in order and returns the manifests and
// repositories they contain.
func (s *Scanner) Scan(ctx context.Context, candidates []string) Result {
	start := time.Now()
	hooks := observability.Scan()
	hooks.OnScanStart(ctx, len(candidates))

	empty, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Error("Could not read dependency scanner cache", "path", s.cache.Path(), "err", err)
	}
	if empty == nil {
		empty = make(map[string]bool)
	}

	var res Result
	dirty := false
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		id := canonical(candidate)
		if empty[id] {
			observability.Cache().OnCacheHit(ctx, cache.KeyType)
			res.Cached++
			continue
		}
		observability.Cache().OnCacheMiss(ctx, cache.KeyType)
		if !s.scanOne(id, &res) {
			empty[id] = true
			dirty = true
		}
	}

	if dirty {
		if err := s.cache.Save(ctx, empty); err != nil {
			s.logger.Error("Could not write dependency scanner cache", "path", s.cache.Path(), "err", err)
		}
	}

	hooks.OnScanComplete(ctx, len(res.Manifests), len(res.Repositories), time.Since(start))
	s.logger.Debug("Scanned dependency source candidates",
		"candidates", len(candidates), "scanned", res.Scanned, "cached", res.Cached,
		"manifests", len(res.Manifests), "repositories", len(res.Repositories),
		"took", time.Since(start).Round(time.Millisecond))
	return res
}

// scanOne reports whether path contributed anything. A path seen earlier
// by this scanner counts as contributing.
func (s *Scanner) scanOne(path string, res *Result) bool {
	s.mu.Lock()
	if s.seen[path] {
		s.mu.Unlock()
		return true
	}
	s.seen[path] = true
	s.mu.Unlock()

	res.Scanned++
	if isArchive(path) {
		return s.scanArchive(path, res)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		s.logger.Warn("Skipping non-directory, nor jar source", "source", path)
		return false
	}
	return s.scanDir(path, res)
}

func (s *Scanner) scanArchive(path string, res *Result) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		s.logger.Error("Failed to open jar file", "path", path, "err", err)
		return false
	}
	defer zr.Close()

	found := false
	hasRepo := false
	for _, f := range zr.File {
		name := f.Name
		if name == manifest.ModInfoFile {
			s.readModInfo(path, f)
			continue
		}
		if !strings.HasPrefix(name, metaInf) {
			continue
		}
		switch {
		case manifestEntry.MatchString(name):
			res.Manifests = append(res.Manifests, &archiveSource{archive: path, entry: name})
			found = true
		case strings.HasPrefix(name, metaInf+embeddedRepo+"/"):
			hasRepo = true
		}
	}
	if hasRepo {
		res.Repositories = append(res.Repositories, repo.NewArchive(path, metaInf+embeddedRepo+"/"))
		found = true
	}
	return found
}

func (s *Scanner) readModInfo(path string, f *zip.File) {
	rc, err := f.Open()
	if err != nil {
		s.logger.Warn("Failed to read mod info", "source", path, "err", err)
		return
	}
	defer rc.Close()

	mods, err := manifest.ParseModInfo(rc)
	if err != nil {
		s.logger.Warn("Failed to read mod info", "source", path, "err", err)
		return
	}
	for _, m := range mods {
		var v version.Version = version.Raw{Text: "unknown"}
		if m.Version != "" {
			v = version.Parse(m.Version)
		}
		s.registry.RegisterMod(m.ModID, v, path)
	}
}

func (s *Scanner) scanDir(path string, res *Result) bool {
	dir := filepath.Join(path, "META-INF")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("Failed to open directory", "path", dir, "err", err)
		}
		return false
	}

	found := false
	for _, e := range entries {
		name := e.Name()
		switch {
		case !e.IsDir() && strings.HasSuffix(name, ".json"):
			res.Manifests = append(res.Manifests, fileSource(filepath.Join(dir, name)))
			found = true
		case e.IsDir() && name == embeddedRepo:
			res.Repositories = append(res.Repositories, repo.NewDir(filepath.Join(dir, name)))
			found = true
		}
	}
	return found
}

// Candidates returns the classpath entries followed by the direct children
// of every mod directory, each directory listed in sorted order. Missing
// directories are ignored.
func Candidates(classpath []string, modDirs []string) []string {
	out := append([]string(nil), classpath...)
	for _, dir := range modDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(dir, n))
		}
	}
	return out
}

func isArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".zip"
}

// canonical resolves path to an absolute, symlink-free form. Paths that
// cannot be resolved are returned cleaned.
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// archiveSource is a manifest stored inside an archive.
type archiveSource struct {
	archive string
	entry   string
}

func (s *archiveSource) String() string { return s.archive + "!/" + s.entry }

func (s *archiveSource) Open() (io.ReadCloser, error) {
	r := repo.NewArchive(s.archive, "")
	rc, _, err := r.Open(context.Background(), s.entry)
	return rc, err
}

// fileSource is a manifest stored as a plain file.
type fileSource string

func (s fileSource) String() string { return string(s) }

func (s fileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(s))
}
