package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deploader/pkg/buildinfo"
	"github.com/matzehuels/deploader/pkg/errors"
	"github.com/matzehuels/deploader/pkg/observability"
)

// SetVersion sets the version information displayed by --version.
// This is typically called by the main package during initialization with values
// injected via ldflags at build time.
func SetVersion(v, c, d string) {
	if v != "" {
		buildinfo.Version = v
	}
	if c != "" {
		buildinfo.Commit = c
	}
	if d != "" {
		buildinfo.Date = d
	}
}

// Execute runs the deploader CLI with os.Args and returns an error if any
// command fails.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
func Execute(ctx context.Context) error {
	return execute(ctx, New(os.Stderr, LogInfo), os.Args[1:])
}

func execute(ctx context.Context, c *CLI, args []string) error {
	var (
		verbose bool
		restore func()
	)

	root := c.RootCommand()
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !verbose {
			c.SetLogLevel(LogInfo)
			return nil
		}
		c.SetLogLevel(LogDebug)
		prev := traceHooks(c.Logger)
		restore = func() { observability.Register(prev) }
		return nil
	}
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if restore != nil {
		restore()
	}
	if err != nil && !errors.Is(err, errors.ErrCodeRestartRequired) {
		printError("%s", errors.UserMessage(err))
	}
	return err
}
