package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/agenda-dashboard/internal/app/bootstrap"
	appconfig "github.com/wolfman30/agenda-dashboard/internal/config"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

// App carries the persistent flags shared by every command.
type App struct {
	APIURL   string
	Timeout  time.Duration
	LogLevel string
}

// NewRootCmd builds the agendactl command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}
	defaults := appconfig.Load()

	cmd := &cobra.Command{
		Use:          "agendactl",
		Short:        "Inspect and export the staff agenda from the scheduling backend",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Is the backend reachable?
  agendactl check --api-url http://localhost:3001

  # Second page of cardiology records in the main building
  agendactl records --specialty cardiology --building "Main Tower" --page 2

  # Export the filtered board
  agendactl export --type Procedure --out procedures.xlsx
`),
	}

	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", defaults.BackendBaseURL, "Scheduling backend base URL (API_URL)")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", defaults.RequestTimeout, "Per-request timeout (API_TIMEOUT)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level (debug|info|warn|error)")

	cmd.AddCommand(newCheckCmd(app))
	cmd.AddCommand(newRecordsCmd(app))
	cmd.AddCommand(newFloorsCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	cmd.AddCommand(newDoctorsCmd(app))
	return cmd
}

// dashboardFor wires a controller against the configured backend. Logs go
// to stderr so stdout stays parseable.
func (a *App) dashboardFor(ctx context.Context, cmd *cobra.Command) (*bootstrap.Dashboard, error) {
	cfg := appconfig.Load()
	cfg.BackendBaseURL = strings.TrimRight(strings.TrimSpace(a.APIURL), "/")
	if a.Timeout > 0 {
		cfg.RequestTimeout = a.Timeout
		if cfg.ProbeTimeout > a.Timeout {
			cfg.ProbeTimeout = a.Timeout
		}
	}
	logger := logging.NewWithOptions(logging.Options{
		Level:  a.LogLevel,
		Format: "text",
		Writer: cmd.ErrOrStderr(),
	})
	return bootstrap.BuildDashboard(ctx, cfg, logger, nil)
}

// load connects and loads every collection, then waits for floor names. A
// partially failed load is reported and tolerated; a disconnected backend
// is not.
func (a *App) load(cmd *cobra.Command) (*bootstrap.Dashboard, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := a.dashboardFor(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := d.Controller.Retry(ctx); err != nil {
		if errors.Is(err, dashboard.ErrDisconnected) {
			_ = d.Close()
			return nil, errors.New(d.Controller.LastError())
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", d.Controller.LastError())
	}
	d.Controller.Wait()
	return d, nil
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
