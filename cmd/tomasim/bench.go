package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/benchmarks"
	"github.com/sarchlab/tomasim/timing/latency"
)

func newBenchCmd(logger func() (*slog.Logger, error)) *cobra.Command {
	var (
		csv        bool
		jsonOut    bool
		core       bool
		timingPath string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the micro-programs across a sweep of machine configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger()
			if err != nil {
				return err
			}

			config := benchmarks.DefaultConfig()
			config.Output = cmd.OutOrStdout()
			config.Logger = log
			if timingPath != "" {
				config.Timing, err = latency.LoadConfig(timingPath)
				if err != nil {
					return err
				}
			}

			harness := benchmarks.NewHarness(config)
			if core {
				harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
			} else {
				harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			}

			results, err := harness.RunAll()
			if err != nil {
				return err
			}

			switch {
			case jsonOut:
				return harness.PrintJSON(results)
			case csv:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&csv, "csv", false, "Print results as CSV")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&core, "core", false, "Run only the core benchmark subset")
	cmd.Flags().StringVar(&timingPath, "timing-config", "", "Timing configuration JSON file")
	cmd.MarkFlagsMutuallyExclusive("csv", "json")

	return cmd
}
