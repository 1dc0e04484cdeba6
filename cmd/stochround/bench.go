package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-stochround/internal/bench"
	"github.com/example/go-stochround/internal/stochastic"
)

func newBenchCmd() *cobra.Command {
	var modes []string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Demonstrate accumulation stagnation and stochastic drift",
		Long: "bench repeatedly adds a small increment into a low-precision accumulator\n" +
			"and reports where each rounding mode ends up relative to the exact sum.\n" +
			"With the default increment well below half a ULP, nearest rounding never moves.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			adder, err := stochastic.NewFromPrecision(cfg.Rounding.Precision, cfg.Rounding.Seed)
			if err != nil {
				return err
			}

			results := make([]bench.Result, 0, len(modes))

			for _, m := range modes {
				mode, err := bench.ParseMode(m)
				if err != nil {
					return err
				}

				r, err := bench.Run(adder, mode, cfg.Bench.Start, cfg.Bench.Increment, cfg.Bench.Steps)
				if err != nil {
					return err
				}

				results = append(results, r)
			}

			switch cfg.Bench.Format {
			case "json":
				bench.FormatJSON(results, os.Stdout)
			case "table":
				bench.FormatTable(results, os.Stdout)
			default:
				return fmt.Errorf("--bench-format must be 'table' or 'json'")
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&modes, "modes", []string{"nearest", "uniform", "biased"}, "Rounding modes to run")

	return cmd
}
