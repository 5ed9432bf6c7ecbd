package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/featuregrid/pkg/features"
	"github.com/matzehuels/featuregrid/pkg/matrix"
)

// matrixCommand creates the matrix command, which prints the combination
// matrix as JSON for CI fan-out.
func (c *CLI) matrixCommand() *cobra.Command {
	var (
		pretty bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the feature combination matrix as JSON",
		Long: `Print the feature combination matrix as JSON.

Each element has the package name and a comma-separated feature
selection, ready for use as a CI job matrix:

  [{"name":"my-crate","features":"default"},{"name":"my-crate","features":"default,serde"}]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMatrix(pretty, output)
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func (c *CLI) runMatrix(pretty bool, output string) error {
	ws, err := c.workspace()
	if err != nil {
		return err
	}

	p := newProgress(c.Logger)
	var entries []matrix.Entry
	for _, pkg := range ws.Packages {
		names := features.Selectable(pkg.Features, pkg.OptionalDeps, pkg.Config.SkipOptionalDependencies)
		sets, err := matrix.Build(names, pkg.Config)
		if err != nil {
			return fmt.Errorf("package %s: %w", pkg.Name, err)
		}
		entries = append(entries, matrix.Entries(pkg.Name, sets)...)
	}
	p.done(fmt.Sprintf("Built matrix with %d combinations", len(entries)))

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return fmt.Errorf("encode matrix: %w", err)
	}
	data = append(data, '\n')

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Wrote matrix with %d combinations", len(entries))
	printFile(output)
	return nil
}
