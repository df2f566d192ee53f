package cli

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deploader/pkg/loader"
)

// classpathSink collects the archives made available to the host.
type classpathSink struct {
	mu    sync.Mutex
	paths []string
}

func (s *classpathSink) AddArchive(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return nil
}

func (s *classpathSink) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// runCommand creates the run command.
func (c *CLI) runCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load every declared dependency",
		Long: `Scan the classpath and the mods folder for dependency manifests, then resolve
and fetch until nothing new is declared.

If a mod had to be installed, the process exits after printing a restart notice.`,
		Example: `  # Load dependencies for a client installation
  deploader run --home ~/.minecraft --client

  # Write the resulting library classpath to a file
  deploader run -o classpath.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := &classpathSink{}
			l, err := c.newLoader(sink)
			if err != nil {
				return err
			}
			defer l.Close()

			prog := newProgress(c.Logger)
			report, err := l.Run(cmd.Context())
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Dependency loading finished after %d rounds", report.Rounds))

			printReport(report)
			paths := sink.Paths()
			for _, p := range paths {
				printFile(p)
			}

			if output != "" {
				if err := writeClasspath(output, paths); err != nil {
					return err
				}
				printSuccess("Classpath written")
				printDetail("File: %s", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the library classpath to a file, one archive per line")

	return cmd
}

// printReport prints how each fetched artifact was satisfied.
func printReport(r loader.Report) {
	counts := make(map[string]int)
	for _, a := range r.Artifacts {
		counts[a.Source]++
	}
	if len(r.Artifacts) == 0 {
		printInfo("No dependencies declared")
		return
	}
	printSuccess("%d dependencies available", len(r.Artifacts))
	fmt.Println(formatStats(counts))
}

func writeClasspath(path string, entries []string) error {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(entries, "\n"))
	if len(entries) > 0 {
		buf.WriteByte('\n')
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write classpath: %w", err)
	}
	return nil
}
