// Package cli implements the deploader command-line interface.
package cli

import (
	"io"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deploader/pkg/buildinfo"
	"github.com/matzehuels/deploader/pkg/cache"
	"github.com/matzehuels/deploader/pkg/config"
	"github.com/matzehuels/deploader/pkg/deps"
	"github.com/matzehuels/deploader/pkg/fetch"
	"github.com/matzehuels/deploader/pkg/loader"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "deploader"

	// defaultJavaVersion is the runtime the game traditionally runs on.
	defaultJavaVersion = 8
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	flags globalFlags
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	home       string
	dev        bool
	client     bool
	java       int
	workers    int
	noCache    bool
	noDownload bool
	classpath  []string
	repos      []string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Deploader discovers, resolves and downloads mod dependencies",
		Long:         `Deploader scans a game installation for dependency manifests, resolves one version per artifact, and downloads what is missing from the declared Maven repositories.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	f := root.PersistentFlags()
	f.StringVar(&c.flags.home, "home", "", "game home directory (default: current directory)")
	f.BoolVar(&c.flags.dev, "dev", false, "resolve for a development environment")
	f.BoolVar(&c.flags.client, "client", false, "resolve for the client side")
	f.IntVar(&c.flags.java, "java", defaultJavaVersion, "java version manifests are gated on")
	f.IntVar(&c.flags.workers, "workers", runtime.NumCPU(), "concurrent downloads")
	f.BoolVar(&c.flags.noCache, "no-cache", false, "ignore the scan cache")
	f.BoolVar(&c.flags.noDownload, "no-download", false, "never download, use installed files only")
	f.StringSliceVar(&c.flags.classpath, "classpath", nil, "extra archives or directories to scan before the mods folder")
	f.StringSliceVar(&c.flags.repos, "repo", nil, "extra remote repository URL")

	// Register all subcommands
	root.AddCommand(c.runCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.loadCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Loader Factory
// =============================================================================

// dirs resolves the directory layout from --home.
func (c *CLI) dirs() (config.Dirs, error) {
	return config.ResolveDirs(c.flags.home)
}

// newLoader creates a loader for CLI use. The sink receives every library
// the loader makes available.
func (c *CLI) newLoader(sink fetch.ClasspathSink) (*loader.Loader, error) {
	dirs, err := c.dirs()
	if err != nil {
		return nil, err
	}

	cfg, path, err := config.LoadEarly(dirs.Config)
	if err != nil {
		c.Logger.Warn("Failed to read config, using defaults", "path", path, "err", err)
	}
	if c.flags.noDownload {
		cfg.EnableLibraryDownloads = false
	}

	var scanCache cache.ScanCache
	if c.flags.noCache {
		scanCache = cache.NewNullScanCache()
	}

	return loader.New(loader.Options{
		Runtime: deps.RuntimeContext{
			Dev:         c.flags.dev,
			Client:      c.flags.client,
			JavaVersion: c.flags.java,
		},
		Dirs:         dirs,
		Config:       cfg,
		Workers:      c.flags.workers,
		Classpath:    c.flags.classpath,
		Repositories: c.flags.repos,
		Sink:         sink,
		Restarter:    loader.ExitRestarter{Logger: c.Logger},
		Cache:        scanCache,
		Logger:       c.Logger,
	})
}
