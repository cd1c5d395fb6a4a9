package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/solatis/formkeeper/internal/core/api"
	"github.com/solatis/formkeeper/internal/loader"
	"github.com/solatis/formkeeper/internal/rules"
	"github.com/solatis/formkeeper/internal/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type resolveOptions struct {
	specPath  string
	dataPath  string
	sets      []string
	deltaFrom string
	output    string
	maxDepth  int
}

func newResolveCmd() *cobra.Command {
	opts := &resolveOptions{}
	c := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a form specification against a data snapshot",
		Long: `Resolve compiles a specification file and prints the resolved form view
for a data snapshot. The snapshot is read from --data and adjusted with
--set; values given to --set are parsed as YAML scalars, so --set age=30
stores a number and --set agree=true a boolean.`,
		Example: `  formkeeper resolve --spec signup.yaml --set country=US --set age=30
  formkeeper resolve --spec signup.yaml --data now.json --delta-from before.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.OutOrStdout(), opts)
		},
	}

	c.Flags().StringVar(&opts.specPath, "spec", "", "form specification file (JSON or YAML)")
	c.Flags().StringVar(&opts.dataPath, "data", "", "data snapshot file (JSON or YAML)")
	c.Flags().StringArrayVar(&opts.sets, "set", nil, "set a snapshot value as path=value (repeatable)")
	c.Flags().StringVar(&opts.deltaFrom, "delta-from", "", "previous snapshot file; also print the merge patch from its view")
	c.Flags().StringVarP(&opts.output, "output", "o", "json", "output format (json, yaml)")
	c.Flags().IntVar(&opts.maxDepth, "max-condition-depth", types.MaxConditionDepth, "maximum all/any/not nesting")
	_ = c.MarkFlagRequired("spec")
	return c
}

func runResolve(out io.Writer, opts *resolveOptions) error {
	engine := rules.NewEngine(rules.Options{MaxConditionDepth: opts.maxDepth})
	form, err := compileFile(engine, opts.specPath)
	if err != nil {
		return err
	}

	data := types.Data{}
	if opts.dataPath != "" {
		if data, err = loader.LoadDataFile(opts.dataPath); err != nil {
			return err
		}
	}
	if err := applySets(data, opts.sets); err != nil {
		return err
	}

	view := engine.Resolve(form, data)
	if opts.deltaFrom == "" {
		return writeOutput(out, opts.output, view)
	}

	previous, err := loader.LoadDataFile(opts.deltaFrom)
	if err != nil {
		return err
	}
	delta, err := api.DiffViews(engine.Resolve(form, previous), view)
	if err != nil {
		return err
	}
	return writeOutput(out, opts.output, map[string]any{
		"view":  view,
		"delta": delta,
	})
}

// compileFile loads and compiles a spec, logging what the compile tolerated.
func compileFile(engine *rules.Engine, path string) (*rules.CompiledForm, error) {
	doc, err := loader.LoadSpecFile(path)
	if err != nil {
		return nil, err
	}
	form, err := engine.Compile(doc.Spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for _, field := range doc.UnknownFields {
		logger.Warn("unknown specification field ignored", "file", path, "field", field)
	}
	for _, target := range form.UnknownTargets {
		logger.Warn("change targets unknown name", "file", path, "target", target)
	}
	for _, w := range form.Warnings {
		logger.Warn("specification warning", "file", path, "location", w.Location, "message", w.Message)
	}
	return form, nil
}

// applySets writes each path=value assignment into data.
func applySets(data types.Data, sets []string) error {
	for _, set := range sets {
		path, raw, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: expected path=value", set)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("invalid --set %q: %w", set, err)
		}
		value, err := loader.Normalize(value)
		if err != nil {
			return fmt.Errorf("invalid --set %q: %w", set, err)
		}
		if err := rules.Set(data, path, value); err != nil {
			return fmt.Errorf("invalid --set %q: %w", set, err)
		}
	}
	return nil
}

// writeOutput prints v as indented JSON or as YAML. YAML goes through the
// JSON encoding so both formats share field names.
func writeOutput(out io.Writer, format string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	switch strings.ToLower(format) {
	case "json":
		_, err = fmt.Fprintln(out, string(raw))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (expected json or yaml)", format)
	}
}
