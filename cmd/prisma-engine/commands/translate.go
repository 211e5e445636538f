package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-engine-go/cmd/prisma-engine/internal/ui"
	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
)

type translateOptions struct {
	dialect string
	all     bool
}

func newTranslateCommand() *cobra.Command {
	opts := &translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate <expression>",
		Short: "Render a filter expression for a database",
		Example: `  prisma-engine translate 'meta.tags[*] array_contains ["a"] AND NOT (name = "x" OR age >= 18)' --dialect postgres
  prisma-engine translate 'meta.deleted is AnyNull' --all`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&opts.dialect, "dialect", "d", "", "target dialect (postgres, mysql, sqlite, sqlserver, document)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "render for every dialect")
	return cmd
}

func runTranslate(cmd *cobra.Command, opts *translateOptions, expr string) error {
	node, err := filter.ParseExpr(expr)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	if opts.all {
		rows := make([][]string, 0, len(dialect.Names))
		for _, name := range dialect.Names {
			d, _ := dialect.For(name)
			frag, err := dialect.Translate(node, d)
			if err != nil {
				rows = append(rows, []string{string(name), "error: " + err.Error(), ""})
				continue
			}
			rows = append(rows, []string{string(name), frag.SQL, formatArgs(frag.Args)})
		}
		return ui.PrintTable(w, []string{"Dialect", "Fragment", "Args"}, rows)
	}

	name, err := chooseDialect(opts.dialect)
	if err != nil {
		return err
	}
	d, err := dialect.For(name)
	if err != nil {
		return err
	}
	frag, err := dialect.Translate(node, d)
	if err != nil {
		return err
	}
	ui.PrintCode(w, string(name), frag.SQL)
	if len(frag.Args) > 0 {
		fmt.Fprintf(w, "args: %s\n", formatArgs(frag.Args))
	}
	return nil
}

// chooseDialect resolves the --dialect flag, prompting on a terminal when it
// is missing.
func chooseDialect(flag string) (dialect.Name, error) {
	if flag != "" {
		return dialect.ParseName(flag)
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return dialect.Postgres, nil
	}
	options := make([]string, len(dialect.Names))
	for i, n := range dialect.Names {
		options[i] = string(n)
	}
	var answer string
	prompt := &survey.Select{
		Message: "Target dialect:",
		Options: options,
		Default: string(dialect.Postgres),
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return "", err
	}
	return dialect.Name(answer), nil
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
			continue
		}
		parts[i] = fmt.Sprint(a)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
