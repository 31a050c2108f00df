// Package reporting serializes a finished exploration run: workflow verdicts,
// the status tally, and the optional load/header findings.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/loadgen"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is the top-level output document for one run.
type Report struct {
	Tool      string                         `json:"tool"`
	Version   string                         `json:"version"`
	Target    string                         `json:"target"`
	Started   time.Time                      `json:"started"`
	Finished  time.Time                      `json:"finished"`
	Summary   map[schemas.WorkflowStatus]int `json:"summary"`
	Workflows []schemas.WorkflowResult       `json:"workflows"`
	Load      *loadgen.Report                `json:"load,omitempty"`
}

// Reporter writes one Report to an output.
type Reporter interface {
	Write(report *Report) error
	Close() error
}

type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error { return nil }

// New creates a reporter for the given format. An empty or "stdout" path
// writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdout := outputPath == "" || outputPath == "stdout"
	if isStdout {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "json":
		return &jsonReporter{w: writer}, nil
	case "text":
		return &textReporter{w: writer}, nil
	default:
		if !isStdout {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// -- JSON --

type jsonReporter struct {
	w io.WriteCloser
}

func (r *jsonReporter) Write(report *Report) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func (r *jsonReporter) Close() error { return r.w.Close() }

// -- Text --

type textReporter struct {
	w io.WriteCloser
}

func (r *textReporter) Write(report *Report) error {
	fmt.Fprintf(r.w, "%s %s - %s\n", report.Tool, report.Version, report.Target)
	fmt.Fprintf(r.w, "run: %s .. %s (%s)\n\n",
		report.Started.Format(time.RFC3339),
		report.Finished.Format(time.RFC3339),
		report.Finished.Sub(report.Started).Round(time.Millisecond))

	fmt.Fprintf(r.w, "workflows: %d passed, %d skipped, %d failed\n\n",
		report.Summary[schemas.WorkflowPassed],
		report.Summary[schemas.WorkflowSkipped],
		report.Summary[schemas.WorkflowFailed])

	for _, wf := range report.Workflows {
		fmt.Fprintf(r.w, "  [%-7s] %-12s %-20s %s\n", wf.Status, wf.Workflow, wf.Route, wf.Reason)
	}

	if report.Load != nil {
		s := report.Load.Stats
		fmt.Fprintf(r.w, "\nload: %d requests, %d failures, avg %s, max %s\n",
			s.Requests, s.Failures, s.AvgLatency().Round(time.Millisecond), s.MaxLatency.Round(time.Millisecond))
		for _, f := range report.Load.Findings {
			fmt.Fprintf(r.w, "  [%-6s] %-25s %s\n", f.Severity, f.Header, f.URL)
		}
	}
	return nil
}

func (r *textReporter) Close() error { return r.w.Close() }
