package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/loadgen"
	"github.com/kv9x/dowser-cli/internal/observability"
	"github.com/kv9x/dowser-cli/internal/reporting"
)

// newLoadCmd creates the `load` command: the HTTP load pass run standalone,
// without browser exploration.
func newLoadCmd() *cobra.Command {
	loadCmd := &cobra.Command{
		Use:   "load [base-url]",
		Short: "Replay HTTP load against the target's routes and inspect response headers",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindings := map[string]string{
				"target.routes":      "routes",
				"load.virtual_users": "virtual-users",
				"load.duration":      "duration",
				"load.rate_per_user": "rate",
				"load.check_headers": "check-headers",
				"report.output":      "output",
				"report.format":      "format",
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
			viper.Set("load.enabled", true)

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			return runLoad(cmd.Context(), cfg)
		},
	}

	loadCmd.Flags().StringSlice("routes", []string{"/"}, "routes to hit, relative to the base URL")
	loadCmd.Flags().Int("virtual-users", 5, "concurrent virtual users")
	loadCmd.Flags().Duration("duration", 30*time.Second, "duration of the load pass")
	loadCmd.Flags().Float64("rate", 2.0, "requests per second per virtual user")
	loadCmd.Flags().Bool("check-headers", true, "inspect response security headers")
	loadCmd.Flags().StringP("output", "o", "dowser-report.json", "report output path (\"stdout\" for standard output)")
	loadCmd.Flags().StringP("format", "f", "json", "report format: json or text")

	return loadCmd
}

func runLoad(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()
	client := loadgen.NewClient(cfg.Load.RequestTimeout)

	urls := make([]string, 0, len(cfg.Target.Routes))
	for _, route := range cfg.Target.Routes {
		urls = append(urls, cfg.RouteURL(route))
	}

	started := time.Now()
	loadReport, err := loadgen.NewRunner(client, cfg.Load, logger).Run(ctx, urls)
	if err != nil {
		return fmt.Errorf("load run failed: %w", err)
	}

	report := &reporting.Report{
		Tool:     "dowser",
		Version:  Version,
		Target:   cfg.Target.BaseURL,
		Started:  started,
		Finished: time.Now(),
		Summary:  map[schemas.WorkflowStatus]int{},
		Load:     loadReport,
	}

	reporter, err := reporting.New(cfg.Report.Format, cfg.Report.Output)
	if err != nil {
		return err
	}
	defer reporter.Close()
	if err := reporter.Write(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info("Load pass finished.",
		zap.Int64("requests", loadReport.Stats.Requests),
		zap.Int64("failures", loadReport.Stats.Failures),
		zap.Int("findings", len(loadReport.Findings)),
		zap.String("output", cfg.Report.Output))
	return nil
}
