package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/solatis/formkeeper/internal/loader"
	"github.com/solatis/formkeeper/internal/rules"
	"github.com/solatis/formkeeper/internal/types"
	"github.com/spf13/cobra"
)

func newLintCmd() *cobra.Command {
	var (
		strict   bool
		maxDepth int
	)
	c := &cobra.Command{
		Use:   "lint FILE...",
		Short: "Check form specification files",
		Long: `Lint compiles each specification and reports structural problems,
ignored fields, changes targeting unknown names, malformed conditions and
the total condition cost. With --strict anything but a clean compile fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := rules.NewEngine(rules.Options{MaxConditionDepth: maxDepth})
			failed := 0
			for _, path := range args {
				if !lintFile(cmd.OutOrStdout(), engine, path, strict) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d specifications failed lint", failed, len(args))
			}
			return nil
		},
	}
	c.Flags().BoolVar(&strict, "strict", false, "treat unknown fields, unknown targets and warnings as failures")
	c.Flags().IntVar(&maxDepth, "max-condition-depth", types.MaxConditionDepth, "maximum all/any/not nesting")
	return c
}

// lintFile prints one line per finding and reports whether path passed.
func lintFile(out io.Writer, engine *rules.Engine, path string, strict bool) bool {
	doc, err := loader.LoadSpecFile(path)
	if err != nil {
		printProblems(out, path, err)
		return false
	}
	form, err := engine.Compile(doc.Spec)
	if err != nil {
		printProblems(out, path, err)
		return false
	}

	findings := 0
	for _, field := range doc.UnknownFields {
		fmt.Fprintf(out, "%s: unknown field %q\n", path, field)
		findings++
	}
	for _, target := range form.UnknownTargets {
		fmt.Fprintf(out, "%s: change targets unknown name %q\n", path, target)
		findings++
	}
	for _, w := range form.Warnings {
		fmt.Fprintf(out, "%s: warning: %s\n", path, w)
		findings++
	}

	if strict && findings > 0 {
		fmt.Fprintf(out, "%s: FAIL (%d findings, cost %d)\n", path, findings, form.Cost)
		return false
	}
	fmt.Fprintf(out, "%s: ok (cost %d)\n", path, form.Cost)
	return true
}

func printProblems(out io.Writer, path string, err error) {
	var specErr *types.SpecError
	if !errors.As(err, &specErr) {
		fmt.Fprintf(out, "%s: error: %v\n", path, err)
		return
	}
	for _, p := range specErr.Problems {
		fmt.Fprintf(out, "%s: error: %s\n", path, p)
	}
}
