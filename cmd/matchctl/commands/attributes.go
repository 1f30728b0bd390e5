package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/hostmatch/internal/cli"
)

var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "List the attribute catalog of a team",
	Long: `List the attributes, and their options, that queries for a team can
reference.

Examples:
  matchctl attributes --fixture catalog.yaml --team 10
  matchctl attributes --base-url http://localhost:8080 --team 10 --format yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		if teamID <= 0 {
			return fmt.Errorf("--team is required")
		}

		c, err := newBackend()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		attrs, err := c.ListAttributes(ctx, teamID, orgPtr())
		if err != nil {
			return fmt.Errorf("failed to list attributes: %w", err)
		}
		if quiet {
			return nil
		}
		if len(attrs) == 0 && out == cli.FormatTable {
			fmt.Fprintln(stdout, "No attributes found")
			return nil
		}
		return cli.PrintAttributes(stdout, attrs, out)
	},
}

func init() {
	rootCmd.AddCommand(attributesCmd)
}
