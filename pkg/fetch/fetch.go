// Package fetch makes a requested artifact available on disk.
//
// [Fetcher.Fetch] walks a fixed sequence of sources for every request and
// stops at the first that yields a usable file:
//
//  1. the registry: the artifact (or, for mods, the mod id) is already loaded
//  2. embedded repositories, in discovery order
//  3. a previously installed file, validated against its checksum sidecar
//  4. remote repositories, unless downloads are disabled
//
// A request no source can satisfy fails with an
// [errors.ErrCodeUnresolvable] error. Plain libraries are handed to the
// [ClasspathSink]; freshly installed mods mark the fetcher as requiring a
// restart.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deploader/pkg/checksum"
	"github.com/matzehuels/deploader/pkg/deps"
	"github.com/matzehuels/deploader/pkg/errors"
	"github.com/matzehuels/deploader/pkg/observability"
	"github.com/matzehuels/deploader/pkg/registry"
	"github.com/matzehuels/deploader/pkg/repo"
	"github.com/matzehuels/deploader/pkg/version"
)

const (
	// DefaultRounds is the number of download attempts per repository.
	DefaultRounds = 3

	// DefaultRetryDelay is the pause before the second download round.
	DefaultRetryDelay = 250 * time.Millisecond
)

// Sources reported in [Result.Source] and fetch hooks.
const (
	SourceLoaded = "loaded"
	SourceLocal  = "local"
	SourceDisk   = "disk"
	SourceRemote = "remote"
)

// downloadMu serializes every repository download attempt in the process.
var downloadMu sync.Mutex

// ClasspathSink receives library archives that should become visible to
// the host runtime.
type ClasspathSink interface {
	AddArchive(path string) error
}

// NopSink discards archives.
type NopSink struct{}

func (NopSink) AddArchive(string) error { return nil }

// Options configures a Fetcher.
type Options struct {
	// LibDir holds libraries and every checksum sidecar.
	LibDir string
	// ModDir holds mod artifacts.
	ModDir string
	// Dev selects the development suffix of each request.
	Dev bool
	// DownloadsEnabled allows remote repositories to be consulted.
	DownloadsEnabled bool

	Registry *registry.Registry
	Local    *registry.OrderedSet[repo.Repository]
	Remote   *registry.OrderedSet[repo.Repository]
	Sink     ClasspathSink
	Logger   *log.Logger

	Rounds     int
	RetryDelay time.Duration
}

// Result describes where a fetched artifact ended up.
type Result struct {
	// Path is the artifact file. It is empty when the artifact was
	// already loaded.
	Path string
	// Loaded is true when the registry already had the artifact.
	Loaded bool
	// Installed is true when new bytes were written to Path.
	Installed bool
	// Source is one of the Source* constants.
	Source string
}

// Fetcher resolves requests to files. It is safe for concurrent use.
type Fetcher struct {
	opts    Options
	logger  *log.Logger
	restart atomic.Bool
}

// New creates a fetcher. Missing collaborators get working defaults.
func New(opts Options) *Fetcher {
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}
	if opts.Local == nil {
		opts.Local = registry.NewOrderedSet[repo.Repository]()
	}
	if opts.Remote == nil {
		opts.Remote = registry.NewOrderedSet[repo.Repository]()
	}
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Rounds <= 0 {
		opts.Rounds = DefaultRounds
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Fetcher{opts: opts, logger: opts.Logger}
}

// RestartRequired reports whether a mod was freshly installed.
func (f *Fetcher) RestartRequired() bool {
	return f.restart.Load()
}

// FileName returns the on-disk name of the artifact: libraries carry a
// group prefix, mods do not.
func FileName(req deps.Request, dev bool) string {
	name := repoFileName(req, dev)
	if req.Mod {
		return name
	}
	return req.Identity.Group + "-" + name
}

func repoFileName(req deps.Request, dev bool) string {
	name := req.Identity.Artifact + "-" + req.Preferred.String()
	if suffix := req.Suffix(dev); suffix != "" {
		name += "-" + suffix
	}
	return name + ".jar"
}

// Target returns the absolute destination of req. It fails with
// [errors.ErrCodeInvalidPath] unless the file sits directly in the lib or
// mod directory.
func (f *Fetcher) Target(req deps.Request) (string, error) {
	dir := f.opts.LibDir
	if req.Mod {
		dir = f.opts.ModDir
	}
	name := FileName(req, f.opts.Dev)
	target := filepath.Join(dir, name)
	if filepath.Dir(target) != filepath.Clean(dir) || filepath.Base(target) != name {
		return "", errors.New(errors.ErrCodeInvalidPath, "%s escapes %s", name, dir)
	}
	return target, nil
}

// task carries the derived names of one request through the stages.
type task struct {
	req      deps.Request
	key      string
	logName  string
	fileName string
	file     string
	repoPath string
}

func (f *Fetcher) newTask(req deps.Request) (*task, error) {
	dev := f.opts.Dev
	file, err := f.Target(req)
	if err != nil {
		return nil, err
	}
	t := &task{
		req:      req,
		key:      req.Key(dev),
		logName:  req.Coordinate(dev),
		fileName: FileName(req, dev),
		file:     file,
	}
	t.repoPath = repo.ArtifactPath(req.Identity.Group, req.Identity.Artifact, req.Preferred.String(), req.Suffix(dev))
	if err := errors.ValidatePath(t.repoPath); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *task) sidecar(libDir string, c checksum.Type) string {
	return filepath.Join(libDir, checksum.SidecarName(t.fileName, c))
}

// Fetch resolves one request.
func (f *Fetcher) Fetch(ctx context.Context, req deps.Request) (res Result, err error) {
	t, err := f.newTask(req)
	if err != nil {
		f.logger.Error("Refusing unsafe artifact path", "artifact", req.Coordinate(f.opts.Dev), "requester", req.Requester, "err", err)
		return Result{}, err
	}
	hooks := observability.Fetch()
	start := time.Now()
	hooks.OnFetchStart(ctx, t.logName)
	defer func() {
		hooks.OnFetchComplete(ctx, t.logName, res.Source, time.Since(start), err)
	}()

	if !req.Mod {
		f.logger.Info("Adding library", "artifact", t.logName, "requester", req.Requester)
	}

	if entry, ok := f.opts.Registry.Library(t.key); ok {
		f.alreadyLoaded(t, entry, false)
		return Result{Loaded: true, Source: SourceLoaded}, nil
	}
	if req.Mod && req.ModID != "" {
		if entry, ok := f.opts.Registry.Mod(req.ModID); ok {
			f.alreadyLoaded(t, entry, true)
			return Result{Loaded: true, Source: SourceLoaded}, nil
		}
	}

	for _, dir := range []string{filepath.Dir(t.file), f.opts.LibDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Result{}, errors.Wrap(errors.ErrCodeInternal, err, "create directory for %s", t.logName)
		}
	}

	for _, r := range f.opts.Local.Items() {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if res, ok := f.tryRepository(ctx, t, r); ok {
			res.Source = SourceLocal
			return res, f.accept(t, res)
		}
	}

	if res, ok := f.tryExisting(t); ok {
		return res, f.accept(t, res)
	}

	if !f.opts.DownloadsEnabled {
		f.logger.Error("Library downloading is disabled", "artifact", t.logName, "requester", req.Requester)
		return Result{}, errors.New(errors.ErrCodeDownloadsDisabled,
			"failed to load library %s: library downloading has been disabled in the config, and the library is not present on disk (requested by %s)",
			t.logName, req.Requester)
	}

	for _, r := range f.opts.Remote.Items() {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if res, ok := f.tryRepository(ctx, t, r); ok {
			res.Source = SourceRemote
			return res, f.accept(t, res)
		}
	}

	f.logger.Error("Failed to download artifact from any repository", "artifact", t.logName, "requester", req.Requester)
	return Result{}, errors.New(errors.ErrCodeUnresolvable,
		"failed to download %s from any repository (%s)", t.logName, req.String())
}

// alreadyLoaded reports how a loaded version relates to the request.
// A version outside the accepted range is alarming but not fatal.
func (f *Fetcher) alreadyLoaded(t *task, entry registry.Entry, byModID bool) {
	req := t.req
	if version.Equal(entry.Version, req.Preferred) {
		return
	}
	name := req.Identity.Group + ":" + req.Identity.Artifact
	if suffix := req.Suffix(f.opts.Dev); suffix != "" {
		name += ":" + suffix
	}
	if byModID {
		name += " (mod " + req.ModID + ")"
	}

	if !version.InRange(entry.Version, req.Min, req.Max) {
		for i := 0; i < 4; i++ {
			f.logger.Error("ALERT VVVVVVVVVVVV ALERT")
		}
		f.logger.Error(fmt.Sprintf("Library %s already loaded with version %s, but a version in the range %s was requested! Things may go horribly wrong!",
			name, entry.Version, req.RangeString()),
			"requester", req.Requester, "loadedBy", entry.Owner)
		for i := 0; i < 4; i++ {
			f.logger.Error("ALERT ^^^^^^^^^^^^ ALERT")
		}
		return
	}
	f.logger.Info(fmt.Sprintf("Library %s already loaded with version %s, which matches the range %s. This is not an error.",
		name, entry.Version, req.RangeString()),
		"preferred", req.Preferred, "requester", req.Requester, "loadedBy", entry.Owner)
}

// tryExisting validates a file left by an earlier run.
func (f *Fetcher) tryExisting(t *task) (Result, bool) {
	info, err := os.Stat(t.file)
	if err != nil || info.IsDir() {
		return Result{}, false
	}

	status, err := f.verifyExisting(t)
	if err != nil {
		f.logger.Error("Failed to execute validation check", "artifact", t.logName, "err", err)
		checkedDelete(f.logger, t.file)
		return Result{}, false
	}
	switch status {
	case checksum.StatusFailed:
		return Result{}, false
	case checksum.StatusMissing:
		f.logger.Debug("Artifact is missing checksum data! Either it was manually deleted, or the source repo didn't have it in the first place",
			"artifact", t.logName)
	}
	f.logger.Debug("Artifact successfully loaded from disk", "artifact", t.logName)
	return Result{Path: t.file, Source: SourceDisk}, true
}

func (f *Fetcher) verifyExisting(t *task) (checksum.Status, error) {
	typ, sidecar, ok := checksum.FindSidecar(f.opts.LibDir, t.fileName, fileExists)
	if !ok {
		return checksum.StatusMissing, nil
	}
	ref, err := os.ReadFile(sidecar)
	if err != nil {
		return checksum.StatusFailed, err
	}
	match, err := checksum.VerifyFile(typ, t.file, string(ref))
	if err != nil {
		return checksum.StatusFailed, err
	}
	if !match {
		f.logger.Error("Failed checksum validation", "type", typ, "artifact", t.logName)
		checkedDelete(f.logger, t.file)
		checkedDelete(f.logger, sidecar)
		return checksum.StatusFailed, nil
	}
	f.logger.Debug("Validated checksum", "type", typ, "artifact", t.logName)
	return checksum.StatusOK, nil
}

// accept records a usable file in the registry and hands libraries to the
// classpath sink.
func (f *Fetcher) accept(t *task, res Result) error {
	req := t.req
	f.opts.Registry.RegisterLibrary(t.key, req.Preferred, req.Requester)
	if req.Mod {
		if req.ModID != "" {
			f.opts.Registry.RegisterMod(req.ModID, req.Preferred, req.Requester)
		}
		if res.Installed {
			f.restart.Store(true)
		}
		return nil
	}
	if err := f.opts.Sink.AddArchive(res.Path); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "add %s to classpath", t.logName)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func checkedDelete(logger *log.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to delete file", "path", path, "err", err)
	}
}
