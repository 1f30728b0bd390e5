package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/cli"
)

var validateQuery string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a query against a team's attribute catalog",
	Long: `Check that a query is well formed and report rules that do not fit the
team's attribute catalog (unknown attributes, unsupported operators, operands
of the wrong shape). Such rules still evaluate, under the absence policy of
their operator.

Examples:
  matchctl validate --fixture catalog.yaml --team 10 --query q.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		sc, err := scope()
		if err != nil {
			return err
		}
		q, err := cli.ReadDocument(validateQuery)
		if err != nil {
			return err
		}
		if q == nil {
			return fmt.Errorf("query %s is empty", validateQuery)
		}

		c, err := newBackend()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := c.ValidateQuery(ctx, api.ValidateQueryRequest{ScopeRequest: sc, Query: q})
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if !quiet {
			if err := cli.PrintValidation(stdout, res, out); err != nil {
				return err
			}
		}
		if !res.Valid {
			return fmt.Errorf("query is invalid")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateQuery, "query", "", "Attribute query file")
	_ = validateCmd.MarkFlagRequired("query")
}
