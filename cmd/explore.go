package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/browser"
	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/engine"
	"github.com/kv9x/dowser-cli/internal/loadgen"
	"github.com/kv9x/dowser-cli/internal/observability"
	"github.com/kv9x/dowser-cli/internal/reporting"
)

// newExploreCmd creates and configures the `explore` command, the tool's main
// entry point: visit the routes, exercise the workflow catalogue, write the
// report.
func newExploreCmd() *cobra.Command {
	exploreCmd := &cobra.Command{
		Use:   "explore [base-url]",
		Short: "Explore a target app's routes and verify its basic workflows",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags override config file and environment values.
			bindings := map[string]string{
				"target.routes":      "routes",
				"target.login_route": "login-route",
				"engine.concurrency": "concurrency",
				"load.enabled":       "load",
				"load.virtual_users": "virtual-users",
				"load.duration":      "load-duration",
				"report.output":      "output",
				"report.format":      "format",
				"browser.headless":   "headless",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("target.base_url", args[0])

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			return runExplore(cmd.Context(), cfg)
		},
	}

	exploreCmd.Flags().StringSlice("routes", []string{"/"}, "routes to explore, relative to the base URL")
	exploreCmd.Flags().String("login-route", "", "route carrying the login form (default: probe every route)")
	exploreCmd.Flags().Int("concurrency", 4, "number of routes explored in parallel")
	exploreCmd.Flags().Bool("load", false, "run an HTTP load pass after exploration")
	exploreCmd.Flags().Int("virtual-users", 5, "virtual users for the load pass")
	exploreCmd.Flags().Duration("load-duration", 30*time.Second, "duration of the load pass")
	exploreCmd.Flags().StringP("output", "o", "dowser-report.json", "report output path (\"stdout\" for standard output)")
	exploreCmd.Flags().StringP("format", "f", "json", "report format: json or text")
	exploreCmd.Flags().Bool("headless", true, "run the browser headless")

	return exploreCmd
}

func runExplore(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()

	manager, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	newPage := func(ctx context.Context) (schemas.Page, error) {
		return manager.NewSession(ctx)
	}

	var client schemas.HTTPClient
	if cfg.Load.Enabled {
		client = loadgen.NewClient(cfg.Load.RequestTimeout)
	}

	eng := engine.New(cfg, newPage, client, logger, Version)
	report, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	reporter, err := reporting.New(cfg.Report.Format, cfg.Report.Output)
	if err != nil {
		return err
	}
	defer reporter.Close()
	if err := reporter.Write(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info("Exploration finished.",
		zap.Int("passed", report.Summary[schemas.WorkflowPassed]),
		zap.Int("skipped", report.Summary[schemas.WorkflowSkipped]),
		zap.Int("failed", report.Summary[schemas.WorkflowFailed]),
		zap.String("output", cfg.Report.Output))

	if report.Summary[schemas.WorkflowFailed] > 0 {
		return fmt.Errorf("%d workflow(s) failed", report.Summary[schemas.WorkflowFailed])
	}
	return nil
}
