package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/services"
)

type reportOptions struct {
	start     string
	end       string
	days      int
	teamLead  string
	limit     int
	sortBy    string
	sortOrder string
	search    string
	topBottom bool
	format    string

	now func() time.Time
}

// NewReportCmd creates the 'report' command printing a one-off ranking.
func NewReportCmd(opts *globalOptions) *cobra.Command {
	ro := &reportOptions{now: time.Now}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print agent rankings for a date window",
		Long: `Run a single aggregation pass and print the agent ranking.

Without --start/--end the window trails today by --days. --top-bottom
prints the best and worst performers across every team instead.`,
		Example: `  teamkpi report --days 7
  teamkpi report --start 2024-01-01 --end 2024-01-31 --sort calls
  teamkpi report --team-lead 6f1c... --format json
  teamkpi report --top-bottom --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, ro)
		},
	}

	f := cmd.Flags()
	f.StringVar(&ro.start, "start", "", "First day of the window (YYYY-MM-DD)")
	f.StringVar(&ro.end, "end", "", "Last day of the window (YYYY-MM-DD)")
	f.IntVar(&ro.days, "days", 30, "Length of the trailing window when --start/--end are omitted")
	f.StringVar(&ro.teamLead, "team-lead", "", "Restrict the ranking to one team lead's agents")
	f.IntVarP(&ro.limit, "limit", "n", 0, "Maximum rows to print (top-bottom defaults to 10)")
	f.StringVar(&ro.sortBy, "sort", string(domain.SortByEfficiency), "Sort key: name, calls, emails, efficiency, satisfaction")
	f.StringVar(&ro.sortOrder, "order", string(domain.SortDesc), "Sort order: asc, desc")
	f.StringVar(&ro.search, "search", "", "Only agents whose name contains this text")
	f.BoolVar(&ro.topBottom, "top-bottom", false, "Print the best and worst performers across all teams")
	f.StringVarP(&ro.format, "format", "o", "table", "Output format: table, json")

	return cmd
}

func (ro *reportOptions) window() (domain.AggregationWindow, error) {
	var teamLeadID *uuid.UUID
	if ro.teamLead != "" {
		id, err := uuid.Parse(ro.teamLead)
		if err != nil {
			return domain.AggregationWindow{}, fmt.Errorf("invalid --team-lead: %w", err)
		}
		teamLeadID = &id
	}

	trailing := domain.TrailingWindow(ro.now().UTC(), ro.days)
	start, end := ro.start, ro.end
	if start == "" {
		start = trailing.StartDate
	}
	if end == "" {
		end = trailing.EndDate
	}
	return domain.NewAggregationWindow(start, end, teamLeadID)
}

func runReport(ctx context.Context, out, errOut io.Writer, opts *globalOptions, ro *reportOptions) error {
	if ro.format != "table" && ro.format != "json" {
		return fmt.Errorf("unknown --format %q", ro.format)
	}
	if ro.topBottom && ro.teamLead != "" {
		return fmt.Errorf("--top-bottom ranks every team and cannot be combined with --team-lead")
	}

	window, err := ro.window()
	if err != nil {
		return err
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateSource(); err != nil {
		return err
	}
	logger := newLogger(cfg, errOut)

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	kpi := services.NewKPIService(b.source, b.directory, collectorConfig(cfg.Fetch), logger)

	if ro.topBottom {
		limit := ro.limit
		if limit <= 0 {
			limit = 10
		}
		result, err := kpi.TopBottom(ctx, limit, window)
		if err != nil {
			return err
		}
		if ro.format == "json" {
			return writeJSON(out, struct {
				Window domain.AggregationWindow `json:"window"`
				*domain.TopBottom
			}{window, result})
		}
		fmt.Fprintf(out, "Top %d (%s to %s)\n", limit, window.StartDate, window.EndDate)
		if err := writeRankingTable(out, result.Top); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nBottom %d\n", limit)
		return writeRankingTable(out, result.Bottom)
	}

	summaries, err := kpi.Summarize(ctx, window, domain.SummaryScope{TeamLeadID: window.TeamLeadID})
	if err != nil {
		return err
	}
	ranked, err := kpi.Rank(summaries, domain.RankOptions{
		SortBy:    domain.SortKey(ro.sortBy),
		SortOrder: domain.SortOrder(strings.ToLower(ro.sortOrder)),
		Filters:   domain.RankFilters{Search: ro.search},
	})
	if err != nil {
		return err
	}
	if ro.limit > 0 && len(ranked) > ro.limit {
		ranked = ranked[:ro.limit]
	}

	if ro.format == "json" {
		return writeJSON(out, struct {
			Window  domain.AggregationWindow `json:"window"`
			Entries []domain.RankingEntry    `json:"entries"`
		}{window, ranked})
	}
	fmt.Fprintf(out, "Agent ranking (%s to %s)\n", window.StartDate, window.EndDate)
	return writeRankingTable(out, ranked)
}

func writeRankingTable(out io.Writer, entries []domain.RankingEntry) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tAGENT\tGROUP\tCALLS\tEMAILS\tCHATS\tRESOLVED\tCSAT\tEFFICIENCY\tTREND")
	for _, e := range entries {
		group := e.GroupName
		if group == "" {
			group = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%.2f\t%d\t%s\n",
			e.PerformanceRank,
			e.AgentName,
			group,
			e.Totals.Calls,
			e.Totals.Emails,
			e.Totals.LiveChat,
			e.TicketsResolved,
			e.AvgCustomerSatisfaction,
			e.EfficiencyScore,
			e.Trend,
		)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
