// Package cli implements the teamkpi commands.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lorrc/team-kpi-backend/internal/config"
	"github.com/lorrc/team-kpi-backend/internal/infrastructure/logging"
)

// globalOptions are flags shared by every subcommand.
type globalOptions struct {
	envFile string
}

// NewRootCmd builds the teamkpi command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "teamkpi",
		Short: "Contact-center KPI aggregation and ranking",
		Long: `teamkpi joins the per-channel activity tables of a contact center
(calls, emails, live chat, escalations, QA assessments, survey tickets,
SLA and agent performance) against the agent directory, and serves daily
aggregates, per-agent summaries and rankings.

The serve command keeps the aggregates live: every change to a source
table schedules a debounced recomputation that is pushed to WebSocket
subscribers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file (default ./.env when present)")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewReportCmd(opts))

	return cmd
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.envFile != "" {
		return config.Load(o.envFile)
	}
	return config.Load()
}

func newLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	return logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      out,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})
}
