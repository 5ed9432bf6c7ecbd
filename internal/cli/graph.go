package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/matzehuels/featuregrid/pkg/features"
	"github.com/matzehuels/featuregrid/pkg/manifest"
)

// graphCommand creates the graph command, which renders the feature
// dependency graph.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the feature dependency graph",
		Long: `Render the feature dependency graph.

Each feature becomes a node; an edge points from a feature to every
feature it enables. Implicit features (synthesized from optional
dependencies) are drawn with dashed outlines. Optional dependency
references ("dep:" edges) are drawn dashed and grey.

Formats: dot (default), svg, png.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), format, output)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot, svg, png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout for dot, features.<format> otherwise)")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, format, output string) error {
	switch format {
	case "dot", "svg", "png":
	default:
		return fmt.Errorf("unknown format %q (want dot, svg, or png)", format)
	}

	ws, err := c.workspace()
	if err != nil {
		return err
	}

	p := newProgress(c.Logger)
	dot := featureDOT(ws.Packages)

	if format == "dot" {
		if output == "" {
			fmt.Print(dot)
			return nil
		}
		if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		p.done("Wrote feature graph")
		printFile(output)
		return nil
	}

	img, err := renderDOT(ctx, dot, format)
	if err != nil {
		return err
	}
	if output == "" {
		output = "features." + format
	}
	if err := os.WriteFile(output, img, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	p.done("Rendered feature graph")
	printFile(output)
	return nil
}

// featureDOT converts the feature graphs of the given packages to
// Graphviz DOT. Multiple packages become clusters.
func featureDOT(pkgs []*manifest.Package) string {
	var buf bytes.Buffer
	buf.WriteString("digraph features {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12, margin=\"0.15,0.08\"];\n")
	buf.WriteString("\n")

	for i, pkg := range pkgs {
		indent := "  "
		if len(pkgs) > 1 {
			fmt.Fprintf(&buf, "  subgraph \"cluster_%s\" {\n", pkg.Name)
			fmt.Fprintf(&buf, "    label=%q;\n", pkg.Name)
			indent = "    "
		}
		writePackageDOT(&buf, pkg, indent)
		if len(pkgs) > 1 {
			buf.WriteString("  }\n")
		}
		if i < len(pkgs)-1 {
			buf.WriteString("\n")
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writePackageDOT(buf *bytes.Buffer, pkg *manifest.Package, indent string) {
	explicit, implicit := features.Split(pkg.Features, pkg.OptionalDeps)

	for _, f := range explicit {
		fmt.Fprintf(buf, "%s%s;\n", indent, nodeID(pkg.Name, f.Name))
	}
	for _, f := range implicit {
		fmt.Fprintf(buf, "%s%s [style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n", indent, nodeID(pkg.Name, f.Name))
	}

	names := make([]string, 0, len(pkg.Features))
	for name := range pkg.Features {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, dep := range pkg.Features[name] {
			if target, ok := strings.CutPrefix(dep, "dep:"); ok {
				fmt.Fprintf(buf, "%s%s -> %s [style=dashed, color=grey];\n",
					indent, nodeID(pkg.Name, name), nodeID(pkg.Name, target))
				continue
			}
			fmt.Fprintf(buf, "%s%s -> %s;\n",
				indent, nodeID(pkg.Name, name), nodeID(pkg.Name, dep))
		}
	}
}

func nodeID(pkg, feature string) string {
	return fmt.Sprintf("%q", pkg+"/"+feature)
}

// renderDOT renders a DOT graph to SVG or PNG using Graphviz.
func renderDOT(ctx context.Context, dot, format string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	out := graphviz.SVG
	if format == "png" {
		out = graphviz.PNG
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, out, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
