package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/cli"
)

var (
	evalQuery          string
	evalFallback       string
	evalFallbackAction string
	evalRouteID        string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a route's attribute query against a team",
	Long: `Evaluate a primary attribute query, and the fallback protocol when it
matches nobody, against every member of a team.

Queries are JSON or YAML files ("-" reads stdin). A fallback action takes
priority over a fallback query.

Examples:
  matchctl eval --fixture catalog.yaml --team 10 --query q.json
  matchctl eval --fixture catalog.yaml --team 10 --query q.json --fallback f.json
  matchctl eval --team 10 --query q.yaml --fallback-action customPageMessage="No one is available"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		sc, err := scope()
		if err != nil {
			return err
		}
		route, err := routeFromFlags(evalRouteID, evalQuery, evalFallback, evalFallbackAction)
		if err != nil {
			return err
		}

		c, err := newBackend()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := c.Match(ctx, api.MatchRequest{ScopeRequest: sc, Route: route})
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintMatch(stdout, res, out)
	},
}

// routeFromFlags builds the wire route from query files and a type=value
// fallback action.
func routeFromFlags(id, queryPath, fallbackPath, fallbackAction string) (api.RouteRequest, error) {
	primary, err := cli.ReadDocument(queryPath)
	if err != nil {
		return api.RouteRequest{}, err
	}
	fallback, err := cli.ReadDocument(fallbackPath)
	if err != nil {
		return api.RouteRequest{}, err
	}
	action, err := cli.ParseFallbackAction(fallbackAction)
	if err != nil {
		return api.RouteRequest{}, err
	}
	return api.RouteRequest{
		ID:                           id,
		AttributesQueryValue:         primary,
		FallbackAttributesQueryValue: fallback,
		FallbackAction:               action,
	}, nil
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalQuery, "query", "", "Primary attribute query file")
	evalCmd.Flags().StringVar(&evalFallback, "fallback", "", "Fallback attribute query file")
	evalCmd.Flags().StringVar(&evalFallbackAction, "fallback-action", "", "Fallback action as type=value")
	evalCmd.Flags().StringVar(&evalRouteID, "route-id", "matchctl", "Route id used in logs")
	_ = evalCmd.MarkFlagRequired("query")
}
