package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vcfid/internal/bench"
	"github.com/inodb/vcfid/internal/duckdb"
)

func newBenchCmd() *cobra.Command {
	var (
		inputPath  string
		iterations int
		workers    int
		dbPath     string
		noStore    bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the rewriter against an input file",
		Long: `Bench runs the rewriter over the input several times, streaming the
output into a checksum instead of a file, and reports the best wall
time, allocation volume, and throughput. Runs are recorded in a DuckDB
database for later comparison with 'bench report'.`,
		Example: `  vcfid bench -i big.vcf
  vcfid bench -i big.vcf --iterations 10 --workers 8
  vcfid bench report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return fmt.Errorf("--input is required")
			}
			if iterations == 0 {
				iterations = viper.GetInt("bench.iterations")
			}
			if dbPath == "" {
				dbPath = viper.GetString("bench.db")
			}

			logger := buildLogger()
			defer logger.Sync()

			runner := bench.NewRunner(iterations)
			runner.Workers = workers
			runner.SetLogger(logger)

			res, err := runner.Run(inputPath)
			if err != nil {
				return err
			}

			fmt.Printf("input:       %s (%d bytes, %d lines, %d records)\n",
				res.Input, res.InputBytes, res.Lines, res.Records)
			fmt.Printf("best time:   %s over %d iterations\n", res.BestTime, res.Iterations)
			fmt.Printf("throughput:  %.1f MB/s\n", res.Throughput())
			fmt.Printf("allocations: %d bytes\n", res.AllocBytes)
			fmt.Printf("output md5:  %s\n", res.MD5)

			if noStore {
				return nil
			}
			store, err := duckdb.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open bench database: %w", err)
			}
			defer store.Close()
			if err := store.WriteRun(res); err != nil {
				return fmt.Errorf("record bench run: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input VCF file to benchmark against")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Number of timed passes (0 for config default)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Use the parallel pipeline with this many workers (0 for sequential)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Bench history database path (default from config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not record this run")

	cmd.AddCommand(newBenchReportCmd())

	return cmd
}

func newBenchReportCmd() *cobra.Command {
	var (
		dbPath    string
		inputPath string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show recorded benchmark runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = viper.GetString("bench.db")
			}
			store, err := duckdb.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open bench database: %w", err)
			}
			defer store.Close()

			var runs []duckdb.Run
			if inputPath != "" {
				runs, err = store.ListRunsForInput(inputPath)
			} else {
				runs, err = store.ListRuns(limit)
			}
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No recorded runs.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tINPUT\tLINES\tWORKERS\tBEST(ms)\tMB/s\tMD5")
			for _, r := range runs {
				mode := "seq"
				if r.Workers > 0 {
					mode = fmt.Sprintf("%d", r.Workers)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.1f\t%.1f\t%s\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"),
					r.Input, r.Lines, mode, r.BestTimeMS, r.ThroughputMB,
					shortMD5(r.MD5))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Bench history database path (default from config)")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Only show runs for this input")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 for all)")

	return cmd
}

func shortMD5(sum string) string {
	if len(sum) > 8 {
		return sum[:8] + "..."
	}
	return sum
}
