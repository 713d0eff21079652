package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"advisor/internal/events"
	"advisor/internal/pipeline"
	"advisor/pkg/errors"
)

const rule = "============================================================"

// console renders stage outputs to stdout as they complete and progress
// lines to stderr.
type console struct {
	mu       sync.Mutex
	out      io.Writer
	progress io.Writer
	quiet    bool
}

var _ pipeline.EventSink = (*console)(nil)

func newConsole(out, progress io.Writer, quiet bool) *console {
	return &console{out: out, progress: progress, quiet: quiet}
}

// Progress implements pipeline.ProgressFunc.
func (c *console) Progress(percent int, label string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.progress, "[%3d%%] %s\n", percent, label)
}

// StageCompleted prints the stage as soon as it is available.
func (c *console) StageCompleted(_ context.Context, _ string, out pipeline.StageOutput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printStage(out.Label, out.Text, stageSummary(out))
	return nil
}

// RunFinished prints the closing summary.
func (c *console) RunFinished(_ context.Context, run *pipeline.Run) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := run.FinishedAt.Sub(run.StartedAt).Round(time.Second)
	if run.State == pipeline.StateCompleted {
		fmt.Fprintf(c.out, "\n%s\nRun %s completed in %s (%d stages, $%.4f)\n",
			rule, run.ID, elapsed, len(run.Outputs), run.TotalCost())
		return nil
	}

	c.printFailure(run)
	return nil
}

func (c *console) printStage(label, text, summary string) {
	fmt.Fprintf(c.out, "\n%s\n%s\n%s\n\n%s\n", rule, strings.ToUpper(label), rule, text)
	if summary != "" {
		fmt.Fprintf(c.out, "\n_%s_\n", summary)
	}
}

func (c *console) printFailure(run *pipeline.Run) {
	label := string(run.FailedStage)
	if def, ok := pipeline.Lookup(run.FailedStage); ok {
		label = def.Label
	}

	fmt.Fprintf(c.out, "\n%s\n!! PIPELINE FAILED during %s\n%s\n", rule, label, rule)
	fmt.Fprintf(c.out, "run:        %s\n", run.ID)
	fmt.Fprintf(c.out, "stage:      %s\n", run.FailedStage)
	fmt.Fprintf(c.out, "completed:  %d of %d stages\n", len(run.Outputs), len(pipeline.Definitions()))
	if run.Err != nil {
		fmt.Fprintf(c.out, "cause:      %s\n", diagnose(run.Err))
		fmt.Fprintf(c.out, "detail:     %v\n", run.Err)
	}
}

func stageSummary(out pipeline.StageOutput) string {
	parts := []string{
		fmt.Sprintf("%d turns", out.Turns),
		fmt.Sprintf("%d tool calls", out.ToolCalls),
		humanize.Comma(int64(out.TokensUsed)) + " tokens",
		fmt.Sprintf("$%.4f", out.CostUSD),
		out.Duration.Round(100 * time.Millisecond).String(),
	}
	if out.Partial {
		parts = append(parts, "turn budget exhausted, draft output")
	}
	return strings.Join(parts, " · ")
}

var causes = map[string]string{
	"config":           "configuration (check credentials and model names)",
	"malformed_output": "model returned output that could not be parsed",
	"unknown_tool":     "model requested a tool that is not available",
	"rate_limit":       "model backend rate limit",
	"timeout":          "stage timed out",
	"canceled":         "interrupted",
	"unavailable":      "model backend unavailable",
	"invalid_input":    "invalid input",
	"internal":         "internal error",
}

// diagnose names the failure class so the banner tells the user what to fix.
func diagnose(err error) string {
	if cause, ok := causes[errors.Category(err)]; ok {
		return cause
	}
	return "model backend error"
}

// printEvent renders one consumed pipeline event as a single line.
func printEvent(w io.Writer, env events.Envelope) {
	switch {
	case env.Stage != nil:
		e := env.Stage
		fmt.Fprintf(w, "%s  %s  %-28s turns=%d tools=%d tokens=%s cost=$%.4f partial=%t bytes=%s\n",
			e.Timestamp.Format("15:04:05"), e.RunID, e.Label, e.Turns, e.ToolCalls,
			humanize.Comma(int64(e.TokensUsed)), e.CostUSD, e.Partial, humanize.Bytes(uint64(len(e.Text))))
	case env.Run != nil:
		e := env.Run
		line := fmt.Sprintf("%s  %s  run %s stages=%d cost=$%.4f duration=%dms",
			e.Timestamp.Format("15:04:05"), e.RunID, e.State, len(e.Stages), e.CostUSD, e.DurationMs)
		if e.FailedStage != "" {
			line += fmt.Sprintf(" failed_stage=%s cause=%s error=%q", e.FailedStage, e.Cause, e.Error)
		}
		fmt.Fprintln(w, line)
	}
}
