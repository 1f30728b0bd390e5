package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/cli"
	"github.com/TimurManjosov/hostmatch/internal/roundrobin"
)

var (
	hostsFile           string
	hostsQuery          string
	hostsFallback       string
	hostsFallbackAction string
	hostsSeed           string
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Filter a round-robin host pool by an attribute segment",
	Long: `Keep the round-robin hosts selected by an attribute segment, plus fixed
hosts, and pick the lead host with the fewest recent bookings.

The hosts file is a list of {memberId, recentBookings, fixed}.

Examples:
  matchctl hosts --fixture catalog.yaml --team 10 --hosts hosts.yaml --query segment.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		sc, err := scope()
		if err != nil {
			return err
		}
		raw, err := cli.ReadDocument(hostsFile)
		if err != nil {
			return err
		}
		var hosts []roundrobin.Host
		if err := json.Unmarshal(raw, &hosts); err != nil {
			return fmt.Errorf("failed to parse hosts: %w", err)
		}
		route, err := routeFromFlags("matchctl", hostsQuery, hostsFallback, hostsFallbackAction)
		if err != nil {
			return err
		}

		c, err := newBackend()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		sel, err := c.FilterHosts(ctx, api.FilterHostsRequest{
			ScopeRequest: sc,
			Route:        route,
			Hosts:        hosts,
			Seed:         hostsSeed,
		})
		if err != nil {
			return fmt.Errorf("host filtering failed: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintSelection(stdout, sel, out)
	},
}

func init() {
	rootCmd.AddCommand(hostsCmd)

	hostsCmd.Flags().StringVar(&hostsFile, "hosts", "", "Host pool file (YAML or JSON)")
	hostsCmd.Flags().StringVar(&hostsQuery, "query", "", "Segment query file")
	hostsCmd.Flags().StringVar(&hostsFallback, "fallback", "", "Fallback segment query file")
	hostsCmd.Flags().StringVar(&hostsFallbackAction, "fallback-action", "", "Fallback action as type=value")
	hostsCmd.Flags().StringVar(&hostsSeed, "seed", "", "Tie-break seed for the lead host")
	_ = hostsCmd.MarkFlagRequired("hosts")
}
