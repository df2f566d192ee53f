package cli

import (
	"github.com/spf13/cobra"
)

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Show what the first loading round would fetch",
		Long: `Scan the installation and print the winning request per artifact without
fetching anything. Dependencies declared by fetched artifacts are not shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.newLoader(nil)
			if err != nil {
				return err
			}
			defer l.Close()

			plan := l.Plan(cmd.Context())
			if len(plan) == 0 {
				printInfo("No applicable dependencies declared")
				return nil
			}

			printTitle("Dependencies")
			for _, req := range plan {
				kind := "library"
				if req.Mod {
					kind = "mod"
				}
				printKeyValue(req.Coordinate(c.flags.dev), StyleDim.Render(kind+" in "+req.RangeString()+", requested by "+req.Requester))
			}

			local, remote := l.Repositories()
			if len(local)+len(remote) > 0 {
				printTitle("Repositories")
				for _, r := range local {
					printKeyValue("embedded", r.String())
				}
				for _, r := range remote {
					printKeyValue("remote", StyleLink.Render(r.String()))
				}
			}
			return nil
		},
	}
}
