package loadgen_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/loadgen"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// net/http keeps idle connections in a background goroutine.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dowser", r.Header.Get("X-Probe"))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	client := loadgen.NewClient(2 * time.Second)
	resp, err := client.Do(context.Background(), "GET", srv.URL, map[string]string{"X-Probe": "dowser"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, "nosniff", resp.Headers.Get("X-Content-Type-Options"))
	assert.Equal(t, []byte("short and stout"), resp.Body)
}

func TestRunnerCollectsStatsAndFindings(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	cfg := config.LoadConfig{
		Enabled:      true,
		VirtualUsers: 3,
		Duration:     300 * time.Millisecond,
		RatePerUser:  50,
		CheckHeaders: true,
	}
	runner := loadgen.NewRunner(loadgen.NewClient(time.Second), cfg, zap.NewNop())

	report, err := runner.Run(context.Background(), []string{srv.URL + "/", srv.URL + "/items"})
	require.NoError(t, err)

	// A request cut off by the run deadline counts as a failure, so only the
	// completed ones are compared against the server's hit count.
	assert.Positive(t, hits.Load())
	assert.GreaterOrEqual(t, hits.Load(), report.Stats.Requests-report.Stats.Failures)
	assert.Positive(t, report.Stats.StatusCounts[http.StatusOK])
	assert.Positive(t, report.Stats.MaxLatency)
	assert.GreaterOrEqual(t, report.Stats.MaxLatency, report.Stats.AvgLatency())

	// A bare HTML response over plain HTTP yields CSP, nosniff and framing
	// findings for each distinct URL, exactly once per URL.
	assert.Len(t, report.Findings, 6)
}

func TestRunnerCountsTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	cfg := config.LoadConfig{
		Enabled:      true,
		VirtualUsers: 2,
		Duration:     150 * time.Millisecond,
		RatePerUser:  20,
	}
	runner := loadgen.NewRunner(loadgen.NewClient(time.Second), cfg, zap.NewNop())

	report, err := runner.Run(context.Background(), []string{srv.URL})
	require.NoError(t, err)
	assert.Positive(t, report.Stats.Requests)
	assert.Equal(t, report.Stats.Requests, report.Stats.Failures)
}

func TestRunnerNoURLs(t *testing.T) {
	runner := loadgen.NewRunner(loadgen.NewClient(time.Second), config.LoadConfig{}, zap.NewNop())
	report, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Stats.Requests)
}
