package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-engine-go/cmd/prisma-engine/internal/ui"
	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
)

func newCapabilitiesCommand() *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show which JSON operators each dialect supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			headers, rows := capabilityMatrix()
			w := cmd.OutOrStdout()
			if markdown {
				return ui.PrintMarkdown(w, markdownTable(headers, rows))
			}
			for _, row := range rows {
				for i := 1; i < len(row); i++ {
					row[i] = ui.Mark(row[i] == "yes")
				}
			}
			return ui.PrintTable(w, headers, rows)
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render as a markdown document")
	return cmd
}

// capabilityMatrix pivots dialect.Capabilities into one row per operation.
func capabilityMatrix() ([]string, [][]string) {
	headers := []string{"Operation"}
	column := make(map[dialect.Name]int, len(dialect.Names))
	for i, n := range dialect.Names {
		headers = append(headers, string(n))
		column[n] = i + 1
	}

	var rows [][]string
	index := make(map[string]int)
	for _, c := range dialect.Capabilities() {
		r, ok := index[c.Operation]
		if !ok {
			r = len(rows)
			index[c.Operation] = r
			row := make([]string, len(headers))
			row[0] = c.Operation
			rows = append(rows, row)
		}
		cell := "no"
		if c.Supported {
			cell = "yes"
		}
		rows[r][column[c.Dialect]] = cell
	}
	return headers, rows
}

func markdownTable(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("# Dialect capabilities\n\n")
	fmt.Fprintf(&b, "| %s |\n", strings.Join(headers, " | "))
	b.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s |\n", strings.Join(row, " | "))
	}
	return b.String()
}
