package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/satishbabariya/prisma-engine-go/cmd/prisma-engine/internal/ui"
	"github.com/satishbabariya/prisma-engine-go/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-engine-go/internal/core/database/pool"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/input"
	"github.com/satishbabariya/prisma-engine-go/internal/debug"
	"github.com/satishbabariya/prisma-engine-go/pkg/client"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

type benchOptions struct {
	concurrency int
	requests    int
	sql         string
	file        string
	interval    time.Duration
	metrics     bool
}

func newBenchCommand(global *globalOptions) *cobra.Command {
	opts := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a workload against the connection pool",
		Long: `Run a workload of concurrent requests against the configured datasource
and report latency percentiles and pool pressure.

Requests run a raw statement (--sql) or a JSON query document (--file).
Requests that time out waiting for a connection are counted, not retried.`,
		Example: `  prisma-engine bench --url "sqlite:bench.db?connection_limit=4" --concurrency 32 --requests 2000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, global, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.concurrency, "concurrency", "c", 16, "number of concurrent workers")
	flags.IntVarP(&opts.requests, "requests", "n", 500, "total number of requests")
	flags.StringVar(&opts.sql, "sql", "SELECT 1", "raw statement each request runs")
	flags.StringVar(&opts.file, "file", "", "JSON query document each request runs")
	flags.DurationVar(&opts.interval, "sample-interval", 5*time.Millisecond, "pool statistics sampling interval")
	flags.BoolVar(&opts.metrics, "metrics", false, "print Prometheus metrics after the run")
	return cmd
}

// benchReport aggregates one run.
type benchReport struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    map[qerr.Kind]int

	maxInUse   int
	maxWaiting int
	final      pool.Stats
	elapsed    time.Duration
}

func (r *benchReport) record(d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors[qerr.KindOf(err)]++
		return
	}
	r.latencies = append(r.latencies, d)
}

func (r *benchReport) sample(s pool.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxInUse = max(r.maxInUse, s.InUse)
	r.maxWaiting = max(r.maxWaiting, s.Waiting)
}

// percentile returns the p-th percentile of sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)-1) * p)
	return sorted[i]
}

func runBench(cmd *cobra.Command, global *globalOptions, opts *benchOptions) error {
	if opts.concurrency < 1 || opts.requests < 1 {
		return fmt.Errorf("--concurrency and --requests must be positive")
	}

	work, err := benchWorkload(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var extra []client.Option
	var prom *telemetry.PrometheusTelemetry
	if opts.metrics {
		prom = telemetry.NewPrometheusTelemetry(&telemetry.Config{})
		extra = append(extra, client.WithTelemetry(prom))
	}
	c, err := global.connect(ctx, extra...)
	if err != nil {
		return err
	}
	defer c.Disconnect(ctx)

	report, err := bench(ctx, c, opts, work)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	sort.Slice(report.latencies, func(i, j int) bool { return report.latencies[i] < report.latencies[j] })
	ui.PrintSection(w, "Benchmark")
	rows := [][]string{
		{"requests", fmt.Sprint(opts.requests)},
		{"succeeded", fmt.Sprint(len(report.latencies))},
		{"elapsed", report.elapsed.Round(time.Millisecond).String()},
		{"p50", percentile(report.latencies, 0.50).String()},
		{"p95", percentile(report.latencies, 0.95).String()},
		{"p99", percentile(report.latencies, 0.99).String()},
		{"pool capacity", fmt.Sprint(report.final.Capacity)},
		{"max in use", fmt.Sprint(report.maxInUse)},
		{"max waiting", fmt.Sprint(report.maxWaiting)},
		{"acquire timeouts", fmt.Sprint(report.final.Timeouts)},
		{"connections created", fmt.Sprint(report.final.Created)},
	}
	kinds := make([]qerr.Kind, 0, len(report.errors))
	for k := range report.errors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		rows = append(rows, []string{"errors: " + k.String(), fmt.Sprint(report.errors[k])})
	}
	if err := ui.PrintTable(w, []string{"Metric", "Value"}, rows); err != nil {
		return err
	}
	if failed := opts.requests - len(report.latencies); failed > 0 {
		ui.PrintWarning(w, "%d of %d requests failed", failed, opts.requests)
	}

	if prom != nil {
		ui.PrintSection(w, "Metrics")
		return prom.WriteText(w)
	}
	return nil
}

// benchWorkload builds the function every request runs.
func benchWorkload(stdin io.Reader, opts *benchOptions) (func(context.Context, *client.Client) error, error) {
	if opts.file == "" {
		return func(ctx context.Context, c *client.Client) error {
			_, err := c.QueryRaw(ctx, opts.sql)
			return err
		}, nil
	}
	doc, err := readDocument(stdin, opts.file)
	if err != nil {
		return nil, err
	}
	q, err := input.Decode(doc)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, c *client.Client) error {
		_, err := c.Execute(ctx, q)
		return err
	}, nil
}

// bench submits every request to a worker pool while a sampler records pool
// pressure. Request errors are counted, not returned.
func bench(ctx context.Context, c *client.Client, opts *benchOptions, work func(context.Context, *client.Client) error) (*benchReport, error) {
	report := &benchReport{errors: make(map[qerr.Kind]int)}

	workers, err := ants.NewPool(opts.concurrency, ants.WithPanicHandler(func(v any) {
		debug.Error("bench worker panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer workers.Release()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		var wg sync.WaitGroup
		defer wg.Wait()
		start := time.Now()
		for i := 0; i < opts.requests; i++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			wg.Add(1)
			err := workers.Submit(func() {
				defer wg.Done()
				t := time.Now()
				err := work(gctx, c)
				report.record(time.Since(t), err)
			})
			if err != nil {
				wg.Done()
				return fmt.Errorf("failed to submit request: %w", err)
			}
		}
		wg.Wait()
		report.elapsed = time.Since(start)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if s, ok := c.Stats(); ok {
				report.sample(s)
			}
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.final, _ = c.Stats()
	debug.Info("benchmark finished", "requests", opts.requests, "elapsed", report.elapsed)
	return report, nil
}
