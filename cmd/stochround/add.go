package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-stochround/internal/safetensors"
	"github.com/example/go-stochround/internal/stochastic"
	"github.com/example/go-stochround/internal/tensor"
)

func newAddCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "add <x.safetensors> <y.safetensors>",
		Short: "Stochastically add two safetensors files tensor by tensor",
		Long: "add loads matching tensor names from both files and writes their\n" +
			"stochastically rounded elementwise sum. Each result keeps the dtype of\n" +
			"the tensor from the first file; a wider dtype in the second file takes\n" +
			"the widen-then-round path.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if strings.TrimSpace(output) == "" {
				return fmt.Errorf("--output is required for add")
			}

			return runAdd(args[0], args[1], output, cfg.Rounding.Seed, cfg.Rounding.Biased)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output .safetensors path (required)")

	return cmd
}

func runAdd(xPath, yPath, outPath string, seed uint64, biased bool) error {
	xStore, err := safetensors.OpenStore(xPath)
	if err != nil {
		return err
	}

	yStore, err := safetensors.OpenStore(yPath)
	if err != nil {
		return err
	}

	names := xStore.Names()
	if len(names) == 0 {
		return fmt.Errorf("no tensors found in %s", xPath)
	}

	results := make([]safetensors.Named, 0, len(names))

	for _, name := range names {
		x, err := xStore.Tensor(name)
		if err != nil {
			return err
		}

		y, err := yStore.Tensor(name)
		if err != nil {
			return err
		}

		adder, err := stochastic.New(x.Format(), seed)
		if err != nil {
			return err
		}

		sum, err := addTensors(adder, x, y, biased)
		if err != nil {
			return fmt.Errorf("add tensor %q: %w", name, err)
		}

		slog.Info("added tensor",
			"name", name,
			"shape", sum.Shape(),
			"precision", sum.Format().Name(),
			"biased", biased,
		)

		results = append(results, safetensors.Named{Name: name, Tensor: sum})
	}

	if err := safetensors.WriteFile(outPath, results); err != nil {
		return err
	}

	slog.Info("wrote output", "path", outPath, "tensors", len(results))

	return nil
}

// addTensors narrows y to x's format first when y is the narrower operand,
// since the adder only accepts a matching or wider second operand.
func addTensors(adder *stochastic.Adder, x, y *tensor.Tensor, biased bool) (*tensor.Tensor, error) {
	if y.Format().Bits() < x.Format().Bits() {
		widened, err := y.Cast(x.Format())
		if err != nil {
			return nil, err
		}

		y = widened
	}

	return adder.Add(x, y, biased)
}
