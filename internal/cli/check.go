package cli

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/matzehuels/featuregrid/pkg/features"
	"github.com/matzehuels/featuregrid/pkg/manifest"
	"github.com/matzehuels/featuregrid/pkg/matrix"
	"github.com/matzehuels/featuregrid/pkg/report"
	"github.com/matzehuels/featuregrid/pkg/runner"
)

// checkOptions holds the flags of the check command.
type checkOptions struct {
	silent     bool
	pedantic   bool
	failFast   bool
	errorsOnly bool
	jobs       int
}

// checkCommand creates the check command, which runs the build tool once
// per feature combination and summarizes the results.
func (c *CLI) checkCommand() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check [tool arguments] [-- passthrough arguments]",
		Short: "Run the build tool once per feature combination",
		Long: `Run the build tool once per feature combination.

Arguments after the command name are passed to the build tool; arguments
after a "--" separator are passed through behind the tool's own "--".
Every run adds --no-default-features and the combination's --features
selection.

The tool is resolved from FEATUREGRID_TOOL, then CARGO, then "cargo".

Examples:

  featuregrid check build
  featuregrid check test --workspace -- --nocapture
  featuregrid check --fail-fast --jobs 4 check`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			return c.runCheck(ctx, args, opts)
		},
	}

	// Flag parsing stops at the first positional argument so tool flags
	// like "--workspace" pass through untouched.
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().BoolVarP(&opts.silent, "silent", "s", false, "hide tool output, show a progress indicator instead")
	cmd.Flags().BoolVar(&opts.pedantic, "pedantic", false, "treat warnings as failures")
	cmd.Flags().BoolVar(&opts.errorsOnly, "errors-only", false, "ignore warnings entirely")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "stop dispatching after the first failed run")
	cmd.Flags().IntVar(&opts.jobs, "jobs", 1, "number of parallel runs")

	return cmd
}

func (c *CLI) runCheck(ctx context.Context, args []string, opts checkOptions) error {
	logger := loggerFromContext(ctx)

	ws, err := c.workspace()
	if err != nil {
		return err
	}

	invs, err := planInvocations(ws)
	if err != nil {
		return err
	}

	entries := make([]matrix.Entry, len(invs))
	for i, inv := range invs {
		entries[i] = inv.Entry
	}
	agg := report.NewAggregator(entries, report.Options{
		Pedantic:   opts.pedantic,
		ErrorsOnly: opts.errorsOnly,
		FailFast:   opts.failFast,
	})
	logger.Debugf("run %s: planned %d runs across %d packages", agg.RunID(), len(invs), len(ws.Packages))

	toolArgs, extraArgs := runner.SplitArgs(args)
	run := runner.New(runner.Options{
		ToolArgs:  toolArgs,
		ExtraArgs: extraArgs,
		Jobs:      opts.jobs,
		Silent:    opts.silent,
	})

	var spinner *Spinner
	var started atomic.Int64
	total := len(invs)
	if opts.silent {
		spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Running 0/%d feature combinations...", total))
		spinner.Start()
		run.SetOnStart(func(inv runner.Invocation) {
			n := started.Add(1)
			spinner.SetMessage(fmt.Sprintf("Running %d/%d: %s %s", n, total, inv.Entry.Package, inv.Entry.Features.Display()))
		})
	} else {
		run.SetOnStart(func(inv runner.Invocation) {
			fmt.Fprintln(os.Stderr, StyleTitle.Render(fmt.Sprintf("    %s features = %s", inv.Entry.Package, inv.Entry.Features.Display())))
		})
	}

	runErr := run.Run(ctx, invs, agg)
	if spinner != nil {
		if runErr != nil {
			spinner.StopWithError("Run failed")
		} else {
			spinner.Stop()
		}
	}
	if runErr != nil {
		return runErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rep := agg.Finalize()
	report.Render(os.Stdout, rep, report.RenderOptions{
		Color:      stdoutIsTerminal(),
		ErrorsOnly: opts.errorsOnly,
	})

	if !rep.Success() {
		return &ExitError{Code: rep.FirstBadExit}
	}
	return nil
}

// planInvocations builds the combination matrix for every package in the
// workspace and pairs each entry with its package directory.
func planInvocations(ws *manifest.Workspace) ([]runner.Invocation, error) {
	var invs []runner.Invocation
	for _, pkg := range ws.Packages {
		names := features.Selectable(pkg.Features, pkg.OptionalDeps, pkg.Config.SkipOptionalDependencies)
		sets, err := matrix.Build(names, pkg.Config)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg.Name, err)
		}
		for _, entry := range matrix.Entries(pkg.Name, sets) {
			invs = append(invs, runner.Invocation{Entry: entry, Dir: pkg.Dir})
		}
	}
	return invs, nil
}

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
