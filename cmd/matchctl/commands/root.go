package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/cli"
	"github.com/TimurManjosov/hostmatch/internal/client"
	"github.com/TimurManjosov/hostmatch/internal/logging"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/store"
)

var (
	// Global flags
	baseURL   string
	fixture   string
	profile   string
	format    string
	teamID    int64
	orgID     int64
	timeout   time.Duration
	noOrgReq  bool
	quiet     bool
	verbose   bool
	stdout    io.Writer = os.Stdout
	logOutput io.Writer = os.Stderr
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "matchctl",
	Short: "Evaluate attribute routing against a team's members",
	Long: `matchctl evaluates attribute queries against a team's members, either
locally against a YAML catalog fixture or remotely against a hostmatch server.

Examples:
  matchctl attributes --fixture catalog.yaml --team 10
  matchctl eval --fixture catalog.yaml --team 10 --query q.json
  matchctl eval --base-url http://localhost:8080 --team 10 --query q.json --fallback-action externalRedirectUrl=https://example.com
  matchctl validate --fixture catalog.yaml --team 10 --query q.json
  matchctl route --fixture catalog.yaml --form form.yaml --response resp.json`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of a hostmatch server (remote mode)")
	rootCmd.PersistentFlags().StringVar(&fixture, "fixture", "", "YAML catalog fixture (local mode)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Profile from ~/.hostmatch/config.yaml")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().Int64Var(&teamID, "team", 0, "Team id")
	rootCmd.PersistentFlags().Int64Var(&orgID, "org", 0, "Organization id (defaults to the team's)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Deadline for one command")
	rootCmd.PersistentFlags().BoolVar(&noOrgReq, "no-org-scope", false, "Local mode: evaluate teams without an organization")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log evaluation details to stderr")
}

// newBackend returns a client for the resolved target. Local targets run the
// API in-process over the fixture so both modes behave the same.
func newBackend() (*client.Client, error) {
	target, err := cli.ResolveTarget(profile, baseURL, fixture)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if target.Remote() {
		return client.NewClient(target.BaseURL), nil
	}

	st, err := store.LoadFixtureFile(target.Fixture)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}
	log := cliLogger()
	m := matching.NewMatcher(st,
		matching.WithLogger(log),
		matching.WithRequireOrgScope(!noOrgReq),
	)
	srv := api.NewServer(api.Options{
		Store:        st,
		Matcher:      m,
		Logger:       log,
		MatchTimeout: timeout,
		TieBreakSeed: "matchctl",
	})
	return client.NewInProcess(srv.Router()), nil
}

func cliLogger() zerolog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	log, _, err := logging.New(logging.Options{Level: level, Format: "console", Output: logOutput})
	if err != nil {
		return zerolog.Nop()
	}
	return log
}

func outputFormat() (cli.OutputFormat, error) {
	return cli.ParseFormat(format)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func scope() (api.ScopeRequest, error) {
	if teamID <= 0 {
		return api.ScopeRequest{}, fmt.Errorf("--team is required")
	}
	s := api.ScopeRequest{TeamID: teamID}
	if orgID > 0 {
		id := orgID
		s.OrgID = &id
	}
	return s, nil
}

func orgPtr() *int64 {
	if orgID <= 0 {
		return nil
	}
	id := orgID
	return &id
}
