package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/cli"
)

var (
	routeForm     string
	routeResponse string
	routeSet      []string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Route a routing-form response",
	Long: `Pick the routing-form route for a response and, for event-type
redirects, the team members its attribute logic selects.

The response file maps field ids to values; --set overrides single fields.
The team defaults to the form's teamId.

Examples:
  matchctl route --fixture catalog.yaml --form form.yaml --response resp.json
  matchctl route --fixture catalog.yaml --form form.yaml --set f-lang=fo-de`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		form, err := cli.LoadForm(routeForm)
		if err != nil {
			return err
		}
		resp, err := cli.LoadResponse(routeResponse, routeSet)
		if err != nil {
			return err
		}

		c, err := newBackend()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		dec, err := c.RouteForm(ctx, api.RouteFormRequest{
			TeamID:   teamID,
			OrgID:    orgPtr(),
			Form:     form,
			Response: resp,
		})
		if err != nil {
			return fmt.Errorf("routing failed: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintDecision(stdout, dec, out)
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().StringVar(&routeForm, "form", "", "Routing form file (YAML or JSON)")
	routeCmd.Flags().StringVar(&routeResponse, "response", "", "Form response file (YAML or JSON)")
	routeCmd.Flags().StringArrayVar(&routeSet, "set", nil, "Response value as field=value (repeatable)")
	_ = routeCmd.MarkFlagRequired("form")
}
