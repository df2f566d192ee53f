package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deploader/pkg/cache"
)

// cacheCommand creates the scan cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the scan cache",
		Long:  `The scan cache remembers archives that carry no dependency manifest, so they are skipped on the next start.`,
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every cached scan result",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := c.scanCache()
			if err != nil {
				return err
			}

			if _, err := os.Stat(sc.Path()); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			set, err := sc.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("read scan cache: %w", err)
			}
			if err := sc.Clear(); err != nil {
				return fmt.Errorf("clear scan cache: %w", err)
			}

			printSuccess("Cleared %d cached entries", len(set))
			printDetail("File: %s", sc.Path())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the scan cache file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := c.scanCache()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sc.Path())
			return nil
		},
	}
}

func (c *CLI) scanCache() (*cache.FileScanCache, error) {
	dirs, err := c.dirs()
	if err != nil {
		return nil, err
	}
	sc, err := cache.NewFileScanCache(dirs.Temp, dirs.LegacyScanCache())
	if err != nil {
		return nil, fmt.Errorf("open scan cache: %w", err)
	}
	return sc, nil
}
