package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-engine-go/cmd/prisma-engine/internal/ui"
	"github.com/satishbabariya/prisma-engine-go/cmd/prisma-engine/internal/watch"
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/input"
	"github.com/satishbabariya/prisma-engine-go/internal/core/transaction"
	"github.com/satishbabariya/prisma-engine-go/pkg/client"
)

type queryOptions struct {
	file      string
	isolation string
	format    string
	watch     bool
}

func newQueryCommand(global *globalOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query [file]",
		Short: "Execute a JSON query document",
		Long: `Execute a JSON query document read from a file or stdin.

A JSON array of documents runs as one batch transaction: either every
query commits or none does.`,
		Example: `  echo '{"operation":"findMany","model":"User","filter":{"age":{"gte":18}}}' | prisma-engine query
  prisma-engine query batch.json --isolation serializable
  prisma-engine query report.json --format table --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.file = args[0]
			}
			return runQuery(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.isolation, "isolation", "", "isolation level of a batch (read committed, repeatable read, serializable, ...)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format (json, table)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-run the query file whenever it changes")
	return cmd
}

func runQuery(cmd *cobra.Command, global *globalOptions, opts *queryOptions) error {
	if opts.format != "json" && opts.format != "table" {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.watch && (opts.file == "" || opts.file == "-") {
		return fmt.Errorf("--watch needs a query file")
	}
	txOpts := transaction.DefaultOptions()
	if opts.isolation != "" {
		level, ok := transaction.ParseIsolationLevel(opts.isolation)
		if !ok {
			return fmt.Errorf("unknown isolation level %q", opts.isolation)
		}
		txOpts.IsolationLevel = level
	}

	ctx := cmd.Context()
	c, err := global.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Disconnect(ctx)

	once := func() error {
		doc, err := readDocument(cmd.InOrStdin(), opts.file)
		if err != nil {
			return err
		}
		return executeDocument(cmd, c, doc, txOpts, opts.format)
	}
	if !opts.watch {
		return once()
	}

	w, err := watch.New(opts.file, watch.DefaultDelay)
	if err != nil {
		return err
	}
	defer w.Close()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ui.PrintSuccess(cmd.ErrOrStderr(), "Watching %s for changes (Ctrl+C to stop)", opts.file)
	return w.Run(ctx, once)
}

// executeDocument runs one query document. A JSON array runs as a batch
// transaction.
func executeDocument(cmd *cobra.Command, c *client.Client, doc []byte, txOpts *transaction.Options, format string) error {
	ctx := cmd.Context()
	batch := bytes.HasPrefix(bytes.TrimSpace(doc), []byte("["))

	var queries []*domain.Query
	var results []*domain.ResultSet
	if batch {
		var err error
		if queries, err = input.DecodeBatch(doc); err != nil {
			return err
		}
		if results, err = c.Transaction(ctx, queries, txOpts); err != nil {
			return err
		}
	} else {
		q, err := input.Decode(doc)
		if err != nil {
			return err
		}
		rs, err := c.Execute(ctx, q)
		if err != nil {
			return err
		}
		queries = []*domain.Query{q}
		results = []*domain.ResultSet{rs}
	}

	w := cmd.OutOrStdout()
	if format == "table" {
		for i, rs := range results {
			if batch {
				ui.PrintSection(w, fmt.Sprintf("Query %d: %s %s", i, queries[i].Operation, queries[i].Model))
			}
			if err := printResultTable(w, rs); err != nil {
				return err
			}
		}
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if batch {
		return enc.Encode(results)
	}
	return enc.Encode(results[0])
}

func readDocument(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func printResultTable(w io.Writer, rs *domain.ResultSet) error {
	if len(rs.Rows) == 0 {
		ui.PrintSuccess(w, "%d row(s) affected", rs.RowsAffected)
		return nil
	}
	columns := rs.Columns
	if len(columns) == 0 {
		for name := range rs.Rows[0] {
			columns = append(columns, name)
		}
		sort.Strings(columns)
	}
	rows := make([][]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = cellText(row[col])
		}
		rows = append(rows, cells)
	}
	return ui.PrintTable(w, columns, rows)
}

func cellText(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case filter.Value:
		return filter.MustEncode(v)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
