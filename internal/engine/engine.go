// Package engine fans the workflow catalogue out across the configured
// routes. Each route gets its own isolated browser session and its own
// orchestrator; instances never share page state.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/loadgen"
	"github.com/kv9x/dowser-cli/internal/recorder"
	"github.com/kv9x/dowser-cli/internal/reporting"
	"github.com/kv9x/dowser-cli/internal/workflow"
)

// PageFactory opens one isolated browser session. The engine calls it once
// per route worker and closes the session when the route is done.
type PageFactory func(ctx context.Context) (schemas.Page, error)

// Engine runs the exploration across routes with bounded concurrency, then
// optionally replays HTTP load, and assembles the final report.
type Engine struct {
	cfg     *config.Config
	newPage PageFactory
	client  schemas.HTTPClient
	rec     *recorder.Recorder
	logger  *zap.Logger
	version string
}

// New wires an Engine. client may be nil when load generation is disabled.
func New(cfg *config.Config, newPage PageFactory, client schemas.HTTPClient, logger *zap.Logger, version string) *Engine {
	return &Engine{
		cfg:     cfg,
		newPage: newPage,
		client:  client,
		rec:     recorder.New(logger),
		logger:  logger.Named("engine"),
		version: version,
	}
}

// Run explores every configured route and returns the assembled report.
// Workflow failures are verdicts, not errors; Run fails only when the
// machinery itself breaks (no session, canceled context).
func (e *Engine) Run(ctx context.Context) (*reporting.Report, error) {
	started := time.Now()
	e.logger.Info("Exploration started.",
		zap.String("target", e.cfg.Target.BaseURL),
		zap.Int("routes", len(e.cfg.Target.Routes)),
		zap.Int("concurrency", e.cfg.Engine.Concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Engine.Concurrency)

	for _, route := range e.cfg.Target.Routes {
		route := route
		g.Go(func() error {
			return e.exploreRoute(gctx, route)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("exploration aborted: %w", err)
	}

	report := &reporting.Report{
		Tool:      "dowser",
		Version:   e.version,
		Target:    e.cfg.Target.BaseURL,
		Started:   started,
		Summary:   e.rec.Summary(),
		Workflows: e.rec.Results(),
	}

	if e.cfg.Load.Enabled && e.client != nil {
		urls := make([]string, 0, len(e.cfg.Target.Routes))
		for _, route := range e.cfg.Target.Routes {
			urls = append(urls, e.cfg.RouteURL(route))
		}
		loadReport, err := loadgen.NewRunner(e.client, e.cfg.Load, e.logger).Run(ctx, urls)
		if err != nil {
			return nil, fmt.Errorf("load run failed: %w", err)
		}
		report.Load = loadReport
	}

	report.Finished = time.Now()
	return report, nil
}

// exploreRoute runs the workflow sequence for one route on a fresh session.
func (e *Engine) exploreRoute(ctx context.Context, route string) error {
	page, err := e.newPage(ctx)
	if err != nil {
		return fmt.Errorf("open session for route %s: %w", route, err)
	}
	defer page.Close(context.WithoutCancel(ctx))

	orch := workflow.New(e.cfg, page, e.rec, e.logger)

	e.withDeadline(ctx, func(wfCtx context.Context) {
		orch.RunRouteVisit(wfCtx, route)
	})

	// Login runs on the configured login route, or on every route when none
	// is configured; routes without a credential pair record a skip.
	if e.cfg.Target.LoginRoute == "" || e.cfg.Target.LoginRoute == route {
		e.withDeadline(ctx, func(wfCtx context.Context) {
			orch.RunLogin(wfCtx, route)
		})
	}

	e.withDeadline(ctx, func(wfCtx context.Context) {
		orch.RunCRUD(wfCtx, route)
	})

	return ctx.Err()
}

// withDeadline bounds one workflow invocation so a wedged page can never
// stall the whole run.
func (e *Engine) withDeadline(ctx context.Context, fn func(context.Context)) {
	wfCtx, cancel := context.WithTimeout(ctx, e.cfg.Engine.WorkflowDeadline)
	defer cancel()
	fn(wfCtx)
}
