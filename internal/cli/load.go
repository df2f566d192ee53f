package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deploader/pkg/deps"
)

// requester is recorded as the owner of artifacts loaded from the command line.
const requester = "command line"

// loadCommand creates the load command.
func (c *CLI) loadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <coordinate>...",
		Short: "Fetch libraries by coordinate",
		Long: `Fetch each coordinate as a library, regardless of scope, then resolve the
dependencies their manifests declare.

Coordinates are group:artifact:version[:classifier], where version is a plain
version or a range such as [1.0,2.0]->1.5.`,
		Example: `  deploader load --repo https://repo1.maven.org/maven2/ com.google.code.gson:gson:2.10.1`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs := make([]deps.Request, 0, len(args))
			for _, arg := range args {
				id, spec, err := deps.ParseCoordinate(arg)
				if err != nil {
					return err
				}
				reqs = append(reqs, deps.NewRequest(requester, id, spec, false, ""))
			}

			l, err := c.newLoader(nil)
			if err != nil {
				return err
			}
			defer l.Close()

			prog := newProgress(c.Logger)
			files, err := l.Load(cmd.Context(), reqs...)
			for _, f := range files {
				printFile(f)
			}
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Loaded %d files", len(files)))
			return nil
		},
	}
}
