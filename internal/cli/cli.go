// Package cli implements the featuregrid command-line interface.
//
// This package provides commands for running a build tool across every
// feature combination of a package, emitting the combination matrix as
// JSON for CI fan-out, and visualizing the feature dependency graph.
// The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
//   - check: run the build tool once per feature combination and summarize
//   - matrix: print the combination matrix as JSON
//   - graph: render the feature dependency graph (DOT, SVG, PNG)
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context.
package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/featuregrid/pkg/buildinfo"
	"github.com/matzehuels/featuregrid/pkg/manifest"
)

const (
	// appName is the application name used for display.
	appName = "featuregrid"

	// defaultManifest is the manifest file loaded when --manifest-path is
	// not given.
	defaultManifest = "Cargo.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	manifestPath string
	packages     []string
	onlyLib      bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Featuregrid runs build tools across feature combinations",
		Long:         `Featuregrid enumerates the feature combinations of a package, runs a build tool once per combination, and summarizes warnings and errors per run. It can also emit the combination matrix as JSON for CI fan-out.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.manifestPath, "manifest-path", defaultManifest, "path to the workspace or package manifest")
	root.PersistentFlags().StringSliceVarP(&c.packages, "package", "p", nil, "restrict to the named package(s)")
	root.PersistentFlags().BoolVar(&c.onlyLib, "only-packages-with-lib-target", false, "skip packages without a library target")

	root.AddCommand(c.checkCommand())
	root.AddCommand(c.matrixCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// workspace loads the manifest and applies the --package selection.
func (c *CLI) workspace() (*manifest.Workspace, error) {
	ws, err := manifest.Load(c.manifestPath)
	if err != nil {
		return nil, err
	}
	if c.onlyLib {
		ws.DropWithoutLibTarget()
	}
	if err := ws.Select(c.packages); err != nil {
		return nil, err
	}
	if len(ws.Packages) == 0 {
		return nil, fmt.Errorf("no packages found in %s", c.manifestPath)
	}
	return ws, nil
}

// ExitError carries a process exit code through the cobra error return.
// The check command uses it to propagate the first failing tool exit.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}
