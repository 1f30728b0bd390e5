package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/engine"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/routing"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// render writes v as JSON or YAML, or runs table for the table format.
func render(w io.Writer, v any, format OutputFormat, table func() error) error {
	switch format {
	case FormatJSON:
		return printJSON(w, v)
	case FormatYAML:
		return printYAML(w, v)
	case FormatTable:
		return table()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintAttributes outputs a team's attribute catalog.
func PrintAttributes(w io.Writer, attrs []attribute.Attribute, format OutputFormat) error {
	return render(w, map[string]any{"attributes": attrs}, format, func() error {
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Slug", "Name", "Type", "Options")
		for _, a := range attrs {
			opts := make([]string, 0, len(a.Options))
			for _, o := range a.Options {
				opts = append(opts, o.ID+"="+o.Value)
			}
			table.Append(a.ID, a.Slug, a.Name, string(a.Type), truncate(strings.Join(opts, ", "), 60))
		}
		return table.Render()
	})
}

// PrintMatch outputs one evaluation result.
func PrintMatch(w io.Writer, res *api.MatchResponse, format OutputFormat) error {
	return render(w, res, format, func() error {
		table := tablewriter.NewWriter(w)
		table.Header("Outcome", "Matched Members", "Logic Matched", "Checked Fallback", "Fallback Action")
		table.Append(
			string(res.Outcome),
			memberList(res.MatchedMemberIDs),
			strconv.FormatBool(res.AttributeLogicMatched),
			strconv.FormatBool(res.CheckedFallback),
			actionString(res.FallbackAction),
		)
		if err := table.Render(); err != nil {
			return err
		}
		return printRuleErrors(w, res.RuleErrors)
	})
}

// PrintValidation outputs the result of validating a query.
func PrintValidation(w io.Writer, res *api.ValidateQueryResponse, format OutputFormat) error {
	return render(w, res, format, func() error {
		if !res.Valid {
			_, err := fmt.Fprintf(w, "invalid query: %s\n", res.Error)
			return err
		}
		if _, err := fmt.Fprintf(w, "valid query: %d rule(s) over fields %s\n", res.RuleCount, strings.Join(res.Fields, ", ")); err != nil {
			return err
		}
		return printRuleErrors(w, res.RuleErrors)
	})
}

// PrintSelection outputs a filtered round-robin host pool.
func PrintSelection(w io.Writer, res *api.FilterHostsResponse, format OutputFormat) error {
	return render(w, res, format, func() error {
		table := tablewriter.NewWriter(w)
		table.Header("Member", "Recent Bookings", "Fixed", "Lead")
		for _, h := range res.Hosts {
			lead := ""
			if res.Lead != nil && res.Lead.MemberID == h.MemberID {
				lead = "*"
			}
			table.Append(strconv.FormatInt(h.MemberID, 10), strconv.Itoa(h.RecentBookings), strconv.FormatBool(h.Fixed), lead)
		}
		if err := table.Render(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "outcome: %s, filtered: %v\n", res.Match.Outcome, res.Filtered)
		return err
	})
}

// PrintDecision outputs a routing-form decision.
func PrintDecision(w io.Writer, d *routing.Decision, format OutputFormat) error {
	return render(w, d, format, func() error {
		table := tablewriter.NewWriter(w)
		table.Header("Route", "Fallback Route", "Action", "Value", "Members", "Logic Matched")
		members := "-"
		if d.MemberIDs != nil {
			members = memberList(d.MemberIDs)
		}
		table.Append(
			d.RouteID,
			strconv.FormatBool(d.FallbackRoute),
			string(d.Action.Type),
			truncate(d.Action.Value, 40),
			members,
			strconv.FormatBool(d.AttributeLogicMatched),
		)
		if err := table.Render(); err != nil {
			return err
		}
		for _, e := range d.ExpressionErrors {
			if _, err := fmt.Fprintf(w, "expression error: %s\n", e); err != nil {
				return err
			}
		}
		if d.Match != nil {
			return printRuleErrors(w, d.Match.RuleErrors)
		}
		return nil
	})
}

func printRuleErrors(w io.Writer, errs []*engine.RuleError) error {
	if len(errs) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("Rule", "Field", "Operator", "Problem")
	for _, re := range errs {
		msg := ""
		if re.Err != nil {
			msg = re.Err.Error()
		}
		table.Append(re.RuleID, re.Field, string(re.Operator), msg)
	}
	return table.Render()
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML goes through JSON so keys match the API's field names.
func printYAML(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return err
	}
	blockStyle(&node)

	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(&node)
}

// blockStyle undoes the flow style and quoting yaml.v3 keeps from JSON input.
// The encoder still quotes strings that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle | yaml.DoubleQuotedStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func memberList(ids []int64) string {
	if ids == nil {
		return "(not evaluated)"
	}
	if len(ids) == 0 {
		return "(none)"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return truncate(strings.Join(parts, ","), 60)
}

func actionString(fa *matching.FallbackAction) string {
	if fa == nil {
		return "-"
	}
	return string(fa.Type) + "=" + fa.Value
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
