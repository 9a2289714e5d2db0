package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wbrown/janus-odata/odata/demo"
	"github.com/wbrown/janus-odata/odata/metrics"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

var (
	metricsAddr string
	holdMetrics bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay the demo workload through the plan cache",
	Long: `Replays the demo workload: a sequence of named requests, most of which
repeat an earlier shape with new literal values. Each step is reported as a
cache hit, a miss, or a binding failure (a literal that does not fit its
declared type; the request fails and the resident plan is kept), followed
by cache statistics.

With --metrics-addr the prometheus collectors are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.MetricsAddr
		if cmd.Flags().Changed("metrics-addr") {
			addr = metricsAddr
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		s := demo.NewSchema()
		db, err := openDatabase(s)
		if err != nil {
			return err
		}
		defer db.Close()

		var server *http.Server
		if addr != "" {
			metrics.HandleHTTP()
			server = &http.Server{Addr: addr}
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					fmt.Fprintln(os.Stderr, color.RedString("metrics server: %v", err))
				}
			}()
			fmt.Printf("Serving metrics on http://%s/metrics\n\n", addr)
			defer server.Close()
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"#", "Query", "Outcome", "Rows", "Time"})

		for i, inv := range demo.Workload() {
			q, ok := demo.Lookup(inv.Query)
			if !ok {
				return fmt.Errorf("workload step %d: unknown query %s", i+1, inv.Query)
			}

			before := db.CacheStats()
			start := time.Now()
			res, err := db.Query(ctx, q.Request(s, inv.Args))
			elapsed := time.Since(start)

			result, rows := outcome(before, db.CacheStats()), "-"
			var bindErr *uricompare.BindingError
			switch {
			case errors.As(err, &bindErr):
				// Reported like any other step; the literal is at fault
				result = color.YellowString("binding failure")
			case err != nil:
				return fmt.Errorf("workload step %d (%s): %w", i+1, inv.Query, err)
			default:
				rows = strconv.Itoa(len(res.Rows))
			}

			table.Append([]string{
				strconv.Itoa(i + 1),
				inv.Query,
				result,
				rows,
				elapsed.Round(time.Microsecond).String(),
			})
		}
		table.Render()

		fmt.Println()
		printStats(db.CacheStats())

		if server != nil && holdMetrics {
			fmt.Println("\nWaiting for interrupt...")
			<-ctx.Done()
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().BoolVar(&holdMetrics, "hold", false, "Keep serving metrics after the workload until interrupted")
}

// outcome classifies one lookup from the statistics around it
func outcome(before, after planner.CacheStats) string {
	switch {
	case after.Hits > before.Hits:
		return color.GreenString("hit")
	case after.BindingFailures > before.BindingFailures:
		return color.YellowString("binding failure")
	default:
		return color.RedString("miss")
	}
}

func printStats(stats planner.CacheStats) {
	lookups := stats.Hits + stats.Misses
	rate := 0.0
	if lookups > 0 {
		rate = float64(stats.Hits) / float64(lookups) * 100
	}
	fmt.Println("=== Plan cache ===")
	fmt.Printf("  Lookups:          %d\n", lookups)
	fmt.Printf("  Hits:             %s (%.1f%%)\n", color.GreenString("%d", stats.Hits), rate)
	fmt.Printf("  Misses:           %s\n", color.RedString("%d", stats.Misses))
	fmt.Printf("  Binding failures: %s\n", color.YellowString("%d", stats.BindingFailures))
	fmt.Printf("  Inserts:          %d\n", stats.Inserts)
	fmt.Printf("  Resident plans:   %d in %d buckets\n", stats.Size, stats.Buckets)
}
