// Package cosim ties the model runner and the reference simulator into
// a single pass/fail co-simulation check.
package cosim

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rvcosim/rvcosim/arch"
	"github.com/rvcosim/rvcosim/loader"
	"github.com/rvcosim/rvcosim/model"
	"github.com/rvcosim/rvcosim/reftrace"
	"github.com/rvcosim/rvcosim/runner"
)

// ErrNoActivity marks a run whose captured registers are all zero. It
// usually indicates a load or wiring defect rather than an
// architectural bug, so it is surfaced distinctly from a mismatch.
var ErrNoActivity = errors.New(
	"no register writes detected from the model; the core may not be completing writeback")

// Harness configures one co-simulation comparison.
type Harness struct {
	// Model is the registered model name.
	Model string

	// Runner configures the model-side run.
	Runner runner.Spec

	// Ref configures the reference simulator.
	Ref reftrace.Config

	// RunnerOptions are applied to the runner (VCD, UART console, ...).
	RunnerOptions []runner.Option

	// Log receives phase diagnostics; nil uses the runner default.
	Log *log.Logger
}

// Result carries both snapshots of a completed comparison.
type Result struct {
	// Model is the hardware model's captured snapshot.
	Model *arch.Snapshot

	// Ref is the reference simulator's folded snapshot.
	Ref *arch.Snapshot
}

// ExitCode returns the model's captured exit register value, or 0 when
// none was captured.
func (r *Result) ExitCode() uint32 {
	if r.Model == nil || r.Model.ExitCode == nil {
		return 0
	}
	return *r.Model.ExitCode
}

// Run loads the program, resolves the watchpoint symbol, runs the model
// and the reference in sequence, and diffs the snapshots. The two runs
// share nothing but the resulting snapshots; they never execute
// concurrently.
func (h *Harness) Run(ctx context.Context, elfPath, watchpointSymbol string) (*Result, error) {
	prog, err := loader.Load(elfPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", elfPath, err)
	}

	spec := h.Runner
	if watchpointSymbol != "" {
		addr, found, err := loader.FindSymbol(elfPath, watchpointSymbol)
		if err != nil {
			return nil, fmt.Errorf("resolving watchpoint symbol %q: %w", watchpointSymbol, err)
		}
		if found {
			spec.Watchpoint = &addr
		} else if h.Log != nil {
			h.Log.Printf("Warning: symbol %q not found; running without a watchpoint", watchpointSymbol)
		}
	}

	m, err := model.New(h.Model)
	if err != nil {
		return nil, err
	}

	opts := h.RunnerOptions
	if h.Log != nil {
		opts = append(opts, runner.WithLogger(h.Log))
	}
	run, err := runner.New(m, spec, opts...)
	if err != nil {
		return nil, err
	}

	modelSnap, err := run.Run(prog)
	if err != nil {
		return nil, fmt.Errorf("model simulation failed: %w", err)
	}

	if !modelSnap.HasActivity() {
		return &Result{Model: modelSnap}, ErrNoActivity
	}

	refSnap, err := reftrace.Run(ctx, h.Ref, elfPath, spec.Watchpoint)
	if err != nil {
		return &Result{Model: modelSnap}, fmt.Errorf("reference simulation failed: %w", err)
	}

	result := &Result{Model: modelSnap, Ref: refSnap}
	if err := reftrace.Compare(modelSnap, refSnap); err != nil {
		return result, err
	}
	return result, nil
}
