// Package report accumulates per-feature-set results across one matrix run
// and renders the final pass/fail summary.
//
// The Aggregator is the only shared mutable state of a run: Record is safe
// to call from concurrent completions, and fail-fast cancellation is
// cooperative. Recording a failure sets a flag the orchestration layer
// polls before starting the next run; in-flight runs are not terminated.
package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/featuregrid/pkg/diag"
	"github.com/matzehuels/featuregrid/pkg/matrix"
)

// maxSampleCodes caps the distinct diagnostic codes kept per entry.
const maxSampleCodes = 5

// Options selects the run modes of the aggregator.
type Options struct {
	// Pedantic treats any warning as a failure for the success
	// determination, even when the subprocess exit code was zero.
	Pedantic bool

	// ErrorsOnly disables warning tallies and display entirely. The
	// subprocess is expected to have been invoked with warnings
	// suppressed; that is the runner's concern.
	ErrorsOnly bool

	// FailFast asks the orchestration layer to stop issuing runs after
	// the first recorded failure.
	FailFast bool
}

// Result is the recorded outcome for one matrix entry.
type Result struct {
	Entry    matrix.Entry
	Recorded bool // false until the entry's run completes
	Success  bool // exit status, adjusted for pedantic mode
	ExitCode int
	Warnings int
	Errors   int
	Codes    []string // sample diagnostic codes, first-seen order
}

// Report is the finalized summary of one matrix run, ordered by the
// matrix's canonical sequence regardless of completion order.
type Report struct {
	RunID     string
	Results   []Result
	Total     int // feature sets planned
	Completed int
	Succeeded int
	Failed    int
	Elapsed   time.Duration

	// FirstBadExit is the exit code of the first failing invocation, or
	// zero when every run succeeded. It becomes the process exit code.
	FirstBadExit int
}

// Success reports whether every completed run succeeded and nothing was
// left unrecorded by fail-fast.
func (r Report) Success() bool {
	return r.Failed == 0 && r.Completed == r.Total
}

// Aggregator accumulates results for a fixed set of matrix entries.
type Aggregator struct {
	mu      sync.Mutex
	opts    Options
	results []Result
	index   map[string]int // entry key -> results position
	stopped bool
	badExit int
	started time.Time
	runID   string
}

// NewAggregator creates an aggregator for the given run plan. The entry
// order fixes the report order.
func NewAggregator(entries []matrix.Entry, opts Options) *Aggregator {
	a := &Aggregator{
		opts:    opts,
		results: make([]Result, len(entries)),
		index:   make(map[string]int, len(entries)),
		started: time.Now(),
		runID:   uuid.NewString(),
	}
	for i, entry := range entries {
		a.results[i] = Result{Entry: entry}
		a.index[entry.Key()] = i
	}
	return a
}

// RunID returns the unique identifier of this run.
func (a *Aggregator) RunID() string {
	return a.runID
}

// Record stores the outcome of one completed feature-set run. Each line of
// tool output is classified; only first-of-block diagnostic lines count.
// Entries that were never part of the run plan are ignored.
func (a *Aggregator) Record(entry matrix.Entry, exitCode int, lines []string) {
	var warnings, errors int
	var codes []string
	seenCode := make(map[string]bool)

	for _, line := range lines {
		rec := diag.Classify(line)
		switch rec.Kind {
		case diag.Warning:
			if !a.opts.ErrorsOnly {
				warnings++
			}
		case diag.Error:
			errors++
			if rec.Code != "" && !seenCode[rec.Code] && len(codes) < maxSampleCodes {
				seenCode[rec.Code] = true
				codes = append(codes, rec.Code)
			}
		}
	}

	success := exitCode == 0
	if a.opts.Pedantic && (warnings > 0 || errors > 0) {
		success = false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	i, ok := a.index[entry.Key()]
	if !ok {
		return
	}
	a.results[i] = Result{
		Entry:    entry,
		Recorded: true,
		Success:  success,
		ExitCode: exitCode,
		Warnings: warnings,
		Errors:   errors,
		Codes:    codes,
	}

	if !success {
		if a.badExit == 0 {
			if exitCode != 0 {
				a.badExit = exitCode
			} else {
				// Pedantic failure with a clean exit still fails the run.
				a.badExit = 1
			}
		}
		if a.opts.FailFast {
			a.stopped = true
		}
	}
}

// Stopped reports whether fail-fast has triggered. The orchestration layer
// polls this before dispatching the next run.
func (a *Aggregator) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// Finalize snapshots the accumulated state into a Report. The result order
// is the matrix order, reproducible under parallel completion.
func (a *Aggregator) Finalize() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	rep := Report{
		RunID:        a.runID,
		Results:      append([]Result(nil), a.results...),
		Total:        len(a.results),
		Elapsed:      time.Since(a.started),
		FirstBadExit: a.badExit,
	}
	for _, res := range a.results {
		if !res.Recorded {
			continue
		}
		rep.Completed++
		if res.Success {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
	}
	return rep
}
