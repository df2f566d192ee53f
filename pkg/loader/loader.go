// Package loader drives dependency discovery, resolution and fetching.
//
// A [Loader] owns the shared state of one process: the loaded registry,
// the embedded and remote repository sets and the task backlog. [Loader.Run]
// performs the startup pass:
//
//  1. scan the classpath and mod directories for manifests
//  2. resolve the applicable tasks to one request per artifact
//  3. fetch every winner concurrently and wait for all of them
//  4. scan what was fetched, append its tasks, and go back to 2
//
// The pass ends on the first round with nothing to resolve. If a mod was
// installed along the way, the host must restart; the [Restarter] decides
// how.
package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/deploader/pkg/cache"
	"github.com/matzehuels/deploader/pkg/config"
	"github.com/matzehuels/deploader/pkg/deps"
	"github.com/matzehuels/deploader/pkg/errors"
	"github.com/matzehuels/deploader/pkg/fetch"
	"github.com/matzehuels/deploader/pkg/httputil"
	"github.com/matzehuels/deploader/pkg/registry"
	"github.com/matzehuels/deploader/pkg/repo"
	"github.com/matzehuels/deploader/pkg/scan"
)

// RestartMessage is reported when a mod was installed during a pass.
const RestartMessage = "A mod has been downloaded by the dependency loader, and requires a game restart!"

// restartRepeat is how many times the default restarter repeats the notice
// so it stands out in a busy log.
const restartRepeat = 16

// Restarter is told when the host process has to restart.
type Restarter interface {
	RequireRestart(msg string)
}

// ExitRestarter logs the notice and ends the process with status 0.
type ExitRestarter struct {
	Logger *log.Logger
	// Exit defaults to os.Exit.
	Exit func(code int)
}

func (r ExitRestarter) RequireRestart(msg string) {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	for i := 0; i < restartRepeat; i++ {
		logger.Warn(msg)
	}
	exit := r.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(0)
}

// Options configures a Loader.
type Options struct {
	// Runtime selects which declared scopes apply.
	Runtime deps.RuntimeContext
	Dirs    config.Dirs
	Config  config.Early

	// Workers bounds concurrent fetches. Zero means runtime.NumCPU.
	Workers int

	// Classpath entries are scanned before the mod directories.
	Classpath []string
	// ModDirs default to Dirs.ModScanDirs.
	ModDirs []string
	// Repositories are remote repository URLs available from the start.
	Repositories []string

	Sink      fetch.ClasspathSink
	Restarter Restarter
	// Cache defaults to a scan cache file in Dirs.Temp.
	Cache cache.ScanCache
	// HTTPClient is shared by every remote repository. When nil the loader
	// creates one and closes it in Close.
	HTTPClient *httputil.Client
	Logger     *log.Logger

	// Rounds and RetryDelay are passed to the fetcher.
	Rounds     int
	RetryDelay time.Duration
}

// Artifact is one fetched request.
type Artifact struct {
	Request deps.Request
	fetch.Result
}

// Report summarizes a pass.
type Report struct {
	Rounds    int
	Artifacts []Artifact
	// Restart is true when a mod was installed.
	Restart bool
}

// Loader is safe for concurrent use. Passes run one at a time.
type Loader struct {
	opts   Options
	logger *log.Logger

	registry   *registry.Registry
	local      *registry.OrderedSet[repo.Repository]
	remote     *registry.OrderedSet[repo.Repository]
	client     *httputil.Client
	ownsClient bool

	scanner    *scan.Scanner
	aggregator *deps.Aggregator
	fetcher    *fetch.Fetcher

	runMu     sync.Mutex
	scanned   bool
	backlog   []deps.Task
	completed bool
	last      Report

	// scanMu keeps one writer on the scan cache file.
	scanMu sync.Mutex
}

// New builds a loader. The directory layout is created and the old library
// folder migrated before anything is returned.
func New(opts Options) (*Loader, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ModDirs == nil {
		opts.ModDirs = opts.Dirs.ModScanDirs()
	}
	if opts.Sink == nil {
		opts.Sink = fetch.NopSink{}
	}
	if opts.Restarter == nil {
		opts.Restarter = ExitRestarter{Logger: opts.Logger}
	}

	if err := opts.Dirs.Ensure(); err != nil {
		return nil, err
	}
	opts.Dirs.MigrateOldLib(opts.Logger)

	if opts.Cache == nil {
		c, err := cache.NewFileScanCache(opts.Dirs.Temp, opts.Dirs.LegacyScanCache())
		if err != nil {
			return nil, err
		}
		opts.Cache = c
	}

	l := &Loader{
		opts:     opts,
		logger:   opts.Logger,
		registry: registry.New(),
		local:    registry.NewOrderedSet[repo.Repository](),
		remote:   registry.NewOrderedSet[repo.Repository](),
		client:   opts.HTTPClient,
	}
	if l.client == nil {
		l.client = httputil.NewClient()
		l.ownsClient = true
	}

	l.scanner = scan.New(opts.Cache, l.registry, l.logger)
	l.aggregator = deps.NewAggregator(l.registry, opts.Runtime.JavaVersion, l.logger)
	l.fetcher = fetch.New(fetch.Options{
		LibDir:           opts.Dirs.Lib,
		ModDir:           opts.Dirs.Mods,
		Dev:              opts.Runtime.Dev,
		DownloadsEnabled: opts.Config.EnableLibraryDownloads,
		Registry:         l.registry,
		Local:            l.local,
		Remote:           l.remote,
		Sink:             opts.Sink,
		Logger:           l.logger,
		Rounds:           opts.Rounds,
		RetryDelay:       opts.RetryDelay,
	})

	for _, u := range opts.Repositories {
		if _, err := l.AddRepository(u); err != nil {
			l.Close()
			return nil, err
		}
	}
	return l, nil
}

// Close releases the HTTP client if the loader created it.
func (l *Loader) Close() error {
	if l.ownsClient {
		return l.client.Close()
	}
	return nil
}

// Registry returns the loaded registry.
func (l *Loader) Registry() *registry.Registry { return l.registry }

// Repositories returns the embedded and remote repositories in lookup order.
func (l *Loader) Repositories() (local, remote []repo.Repository) {
	return l.local.Items(), l.remote.Items()
}

// AddRepository registers a remote repository. It reports false when the
// URL was already known.
func (l *Loader) AddRepository(url string) (bool, error) {
	url = deps.NormalizeRepository(url)
	if err := errors.ValidateURL(url); err != nil {
		return false, err
	}
	if !l.remote.Add(repo.NewHTTP(url, l.client)) {
		return false, nil
	}
	l.logger.Debug("Added remote repository", "url", url)
	return true, nil
}

// Run performs the startup pass. Once a pass has finished, later calls
// return its report and a nil error without scanning, fetching or calling
// the Restarter again. A pass cut short by a fetch error is not finished;
// the next call picks up the remaining backlog.
//
// When a mod was installed, the Restarter is called and the returned error
// carries [errors.ErrCodeRestartRequired].
func (l *Loader) Run(ctx context.Context) (Report, error) {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.completed {
		return l.last, nil
	}
	l.initialScan(ctx)
	var report Report

	for {
		winners, remaining := deps.Resolve(l.backlog, l.opts.Runtime.Scope(), l.logger)
		if len(winners) == 0 {
			break
		}
		l.backlog = remaining
		report.Rounds++

		l.logger.Info("Downloading dependencies, please wait", "round", report.Rounds, "count", len(winners))
		artifacts, err := l.fetchAll(ctx, winners)
		report.Artifacts = append(report.Artifacts, artifacts...)
		if err != nil {
			return report, err
		}
		l.backlog = append(l.backlog, l.discover(ctx, paths(artifacts))...)
	}

	l.completed = true
	if l.fetcher.RestartRequired() {
		report.Restart = true
		l.last = report
		l.opts.Restarter.RequireRestart(RestartMessage)
		return report, errors.New(errors.ErrCodeRestartRequired, "%s", RestartMessage)
	}
	l.last = report
	return report, nil
}

// Plan runs the initial scan, if it has not happened yet, and returns the
// requests the first round would fetch. Nothing is downloaded.
func (l *Loader) Plan(ctx context.Context) []deps.Request {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	l.initialScan(ctx)
	winners, _ := deps.Resolve(l.backlog, l.opts.Runtime.Scope(), l.logger)
	return winners
}

// Load fetches reqs as libraries regardless of scope, then resolves their
// manifests until nothing new applies. It returns the paths of every file
// that was made available. Tasks that do not apply to the running
// environment are dropped.
func (l *Loader) Load(ctx context.Context, reqs ...deps.Request) ([]string, error) {
	libs := make([]deps.Request, len(reqs))
	for i, req := range reqs {
		req.Mod = false
		libs[i] = req
	}
	artifacts, err := l.fetchAll(ctx, libs)
	files := paths(artifacts)
	if err != nil {
		return files, err
	}

	tasks := l.discover(ctx, files)
	for {
		winners, _ := deps.Resolve(tasks, l.opts.Runtime.Scope(), l.logger)
		if len(winners) == 0 {
			return files, nil
		}
		artifacts, err := l.fetchAll(ctx, winners)
		next := paths(artifacts)
		files = append(files, next...)
		if err != nil {
			return files, err
		}
		tasks = l.discover(ctx, next)
	}
}

func (l *Loader) initialScan(ctx context.Context) {
	if l.scanned {
		return
	}
	l.scanned = true
	candidates := scan.Candidates(l.opts.Classpath, l.opts.ModDirs)
	l.backlog = append(l.backlog, l.discover(ctx, candidates)...)
}

// discover scans candidates, registers what they carry and returns their
// tasks.
func (l *Loader) discover(ctx context.Context, candidates []string) []deps.Task {
	if len(candidates) == 0 {
		return nil
	}
	l.scanMu.Lock()
	res := l.scanner.Scan(ctx, candidates)
	l.scanMu.Unlock()

	for _, r := range res.Repositories {
		if l.local.Add(r) {
			l.logger.Debug("Found embedded repository", "repo", r.String())
		}
	}

	agg := l.aggregator.Aggregate(l.aggregator.ParseAll(res.Manifests))
	for _, u := range agg.Repositories {
		if _, err := l.AddRepository(u); err != nil {
			l.logger.Warn("Ignoring invalid repository", "url", u, "err", err)
		}
	}
	return agg.Tasks
}

// fetchAll fetches reqs on at most Workers goroutines and waits for every
// one to finish. The first error cancels the rest.
func (l *Loader) fetchAll(ctx context.Context, reqs []deps.Request) ([]Artifact, error) {
	results := make([]fetch.Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := l.fetcher.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", req.Coordinate(l.opts.Runtime.Dev), err)
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()

	artifacts := make([]Artifact, 0, len(reqs))
	for i, res := range results {
		if res.Source == "" {
			continue
		}
		artifacts = append(artifacts, Artifact{Request: reqs[i], Result: res})
	}
	return artifacts, err
}

func paths(artifacts []Artifact) []string {
	var out []string
	for _, a := range artifacts {
		if a.Path != "" {
			out = append(out, a.Path)
		}
	}
	return out
}
