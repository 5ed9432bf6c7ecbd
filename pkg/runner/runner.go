// Package runner drives the external build tool once per combination
// matrix entry.
//
// The runner owns subprocess orchestration only: argument assembly,
// working directory selection, output capture, and sequential or parallel
// dispatch. Classification and bookkeeping of the captured output belong
// to the report aggregator, which the runner feeds one Record call per
// completed run. Fail-fast is cooperative: the dispatcher polls the
// aggregator before starting the next run and never terminates in-flight
// subprocesses.
//
// Default-feature handling lives here, not in the matrix: every entry is
// invoked with --no-default-features plus the entry's feature selection.
package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	ferrors "github.com/matzehuels/featuregrid/pkg/errors"
	"github.com/matzehuels/featuregrid/pkg/matrix"
	"github.com/matzehuels/featuregrid/pkg/report"
)

// Invocation pairs a matrix entry with the directory of its package
// manifest, which becomes the subprocess working directory.
type Invocation struct {
	Entry matrix.Entry
	Dir   string
}

// Outcome is the captured result of one subprocess run.
type Outcome struct {
	ExitCode int
	Lines    []string // captured stderr lines, raw
}

// ExecFunc executes one invocation. It is replaceable for tests.
type ExecFunc func(ctx context.Context, inv Invocation) (Outcome, error)

// Options configures a Runner.
type Options struct {
	// Tool is the build tool binary. Empty selects DefaultTool().
	Tool string

	// ToolArgs are the tool arguments before any "--" separator, e.g.
	// ["test"] or ["check", "--workspace"].
	ToolArgs []string

	// ExtraArgs follow a "--" separator and are passed through after it.
	ExtraArgs []string

	// Jobs is the number of parallel invocations; values below one mean
	// sequential execution.
	Jobs int

	// Silent suppresses live output; runs are captured only.
	Silent bool

	// Tee receives the subprocess stderr live when not silent.
	Tee io.Writer

	// Stdout is the subprocess stdout destination when not silent.
	Stdout io.Writer

	// OnStart is called before each invocation begins. It may be called
	// concurrently when Jobs exceeds one.
	OnStart func(Invocation)
}

// Runner executes a run plan against one aggregator.
type Runner struct {
	opts Options
	exec ExecFunc
}

// New creates a Runner. The zero Options value yields a sequential runner
// invoking DefaultTool() with live output on stderr/stdout.
func New(opts Options) *Runner {
	if opts.Tool == "" {
		opts.Tool = DefaultTool()
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.Tee == nil {
		opts.Tee = os.Stderr
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	r := &Runner{opts: opts}
	r.exec = r.invoke
	return r
}

// SetExec replaces the subprocess execution function. Tests use this to
// count and fake invocations.
func (r *Runner) SetExec(fn ExecFunc) {
	r.exec = fn
}

// SetOnStart installs the per-invocation start callback after
// construction. It must not be called once Run has started.
func (r *Runner) SetOnStart(fn func(Invocation)) {
	r.opts.OnStart = fn
}

// DefaultTool resolves the build tool binary: the FEATUREGRID_TOOL
// environment variable, then CARGO, then "cargo".
func DefaultTool() string {
	if tool := os.Getenv("FEATUREGRID_TOOL"); tool != "" {
		return tool
	}
	if tool := os.Getenv("CARGO"); tool != "" {
		return tool
	}
	return "cargo"
}

// SplitArgs splits a raw argument list at the first "--" into tool
// arguments and pass-through extras (separator dropped).
func SplitArgs(args []string) (toolArgs, extraArgs []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// Run dispatches every invocation, respecting fail-fast and context
// cancellation between dispatches. It returns the first subprocess spawn
// error, if any; non-zero tool exits are not errors here, they are
// recorded in the aggregator.
func (r *Runner) Run(ctx context.Context, invs []Invocation, agg *report.Aggregator) error {
	work := make(chan Invocation)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < r.opts.Jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inv := range work {
				// Re-check at pickup: the dispatcher may have committed
				// to this send before a concurrent failure was recorded.
				if ctx.Err() != nil || agg.Stopped() {
					continue
				}
				if r.opts.OnStart != nil {
					r.opts.OnStart(inv)
				}
				out, err := r.exec(ctx, inv)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					// A spawn failure still counts as a failed run so the
					// report stays complete and fail-fast can trigger.
					agg.Record(inv.Entry, 1, nil)
					continue
				}
				agg.Record(inv.Entry, out.ExitCode, out.Lines)
			}
		}()
	}

	for _, inv := range invs {
		if ctx.Err() != nil || agg.Stopped() {
			break
		}
		work <- inv
	}
	close(work)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

// commandArgs assembles the tool argument list for one feature set. With
// no tool arguments at all the tool runs bare, matching "print usage"
// behavior instead of selecting features for nothing.
func (r *Runner) commandArgs(set matrix.FeatureSet) []string {
	if len(r.opts.ToolArgs) == 0 && len(r.opts.ExtraArgs) == 0 {
		return nil
	}

	args := append([]string(nil), r.opts.ToolArgs...)
	if !r.opts.Silent && !hasColorFlag(args) {
		// Keep the tool's own colors in the live tee; the classifier
		// strips escapes before matching.
		args = append(args, "--color", "always")
	}
	args = append(args, "--no-default-features", "--features="+set.String())
	if len(r.opts.ExtraArgs) > 0 {
		args = append(args, "--")
		args = append(args, r.opts.ExtraArgs...)
	}
	return args
}

func hasColorFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--color" || strings.HasPrefix(arg, "--color=") {
			return true
		}
	}
	return false
}

// invoke runs the external tool for one entry, capturing stderr line by
// line and teeing it live unless silent.
func (r *Runner) invoke(ctx context.Context, inv Invocation) (Outcome, error) {
	cmd := exec.CommandContext(ctx, r.opts.Tool, r.commandArgs(inv.Entry.Features)...)
	cmd.Dir = inv.Dir
	if r.opts.Silent {
		cmd.Stdout = io.Discard
	} else {
		cmd.Stdout = r.opts.Stdout
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{}, ferrors.Wrap(ferrors.ErrCodeToolFailed, err, "start %s", r.opts.Tool)
	}
	if err := cmd.Start(); err != nil {
		return Outcome{}, ferrors.Wrap(ferrors.ErrCodeToolFailed, err, "start %s", r.opts.Tool)
	}

	var lines []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if !r.opts.Silent {
			io.WriteString(r.opts.Tee, line+"\n")
		}
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Outcome{ExitCode: exitErr.ExitCode(), Lines: lines}, nil
		}
		return Outcome{}, ferrors.Wrap(ferrors.ErrCodeToolFailed, err, "run %s", r.opts.Tool)
	}
	return Outcome{ExitCode: 0, Lines: lines}, nil
}
