package loadgen

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/config"
)

// Stats aggregates the outcome of one load run.
type Stats struct {
	Requests     int64         `json:"requests"`
	Failures     int64         `json:"failures"`
	StatusCounts map[int]int64 `json:"status_counts"`
	TotalLatency time.Duration `json:"total_latency"`
	MaxLatency   time.Duration `json:"max_latency"`
}

// AvgLatency is the mean latency over successful requests.
func (s *Stats) AvgLatency() time.Duration {
	ok := s.Requests - s.Failures
	if ok <= 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(ok)
}

// Report is the full load-run outcome: traffic statistics plus the passive
// header findings collected from responses, one set per distinct URL.
type Report struct {
	Stats    Stats           `json:"stats"`
	Findings []HeaderFinding `json:"findings,omitempty"`
}

// Runner replays GET traffic across the target routes with a fixed number of
// virtual users, each pacing itself with its own rate limiter.
type Runner struct {
	client schemas.HTTPClient
	cfg    config.LoadConfig
	logger *zap.Logger
}

// NewRunner builds a Runner around an HTTP collaborator.
func NewRunner(client schemas.HTTPClient, cfg config.LoadConfig, logger *zap.Logger) *Runner {
	return &Runner{client: client, cfg: cfg, logger: logger.Named("loadgen")}
}

// Run drives traffic against urls until the configured duration elapses or
// ctx is canceled, whichever comes first. The run itself never fails because
// individual requests did; transport errors are counted, not returned.
func (r *Runner) Run(ctx context.Context, urls []string) (*Report, error) {
	if len(urls) == 0 {
		return &Report{Stats: Stats{StatusCounts: map[int]int64{}}}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	var (
		mu        sync.Mutex
		stats     = Stats{StatusCounts: make(map[int]int64)}
		findings  []HeaderFinding
		inspected = make(map[string]bool, len(urls))
	)

	g, gctx := errgroup.WithContext(runCtx)
	for vu := 0; vu < r.cfg.VirtualUsers; vu++ {
		vu := vu
		g.Go(func() error {
			limiter := rate.NewLimiter(rate.Limit(r.cfg.RatePerUser), 1)
			for i := 0; ; i++ {
				if err := limiter.Wait(gctx); err != nil {
					return nil // run window closed
				}
				url := urls[(vu+i)%len(urls)]

				start := time.Now()
				resp, err := r.client.Do(gctx, "GET", url, nil, nil)
				elapsed := time.Since(start)

				mu.Lock()
				stats.Requests++
				if err != nil {
					stats.Failures++
					mu.Unlock()
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return nil
					}
					r.logger.Debug("Load request failed.", zap.String("url", url), zap.Error(err))
					continue
				}
				stats.StatusCounts[resp.Status]++
				stats.TotalLatency += elapsed
				if elapsed > stats.MaxLatency {
					stats.MaxLatency = elapsed
				}
				if r.cfg.CheckHeaders && !inspected[url] {
					inspected[url] = true
					findings = append(findings, InspectHeaders(url, resp.Headers)...)
				}
				mu.Unlock()
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("Load run completed.",
		zap.Int64("requests", stats.Requests),
		zap.Int64("failures", stats.Failures),
		zap.Duration("avg_latency", stats.AvgLatency()),
		zap.Int("header_findings", len(findings)))

	return &Report{Stats: stats, Findings: findings}, nil
}
