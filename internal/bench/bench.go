// Package bench provides the accumulation experiment behind the stochround
// bench command: repeatedly adding a small increment into a low-precision
// accumulator and comparing nearest rounding (which stagnates once the
// increment drops below half a ULP) against uniform and biased stochastic
// rounding.
package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/example/go-stochround/internal/stochastic"
)

// Mode selects the rounding rule used for one accumulation run.
type Mode string

const (
	ModeNearest Mode = "nearest"
	ModeUniform Mode = "uniform"
	ModeBiased  Mode = "biased"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNearest, ModeUniform, ModeBiased:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("bench: unknown mode %q (want nearest|uniform|biased)", s)
	}
}

// Result holds the outcome of one accumulation run.
type Result struct {
	Mode     Mode
	Steps    int
	Final    float64 // accumulator after all steps, at the adder's format
	Exact    float64 // start + increment*steps in float64
	Drift    float64 // Final - Exact
	AltSteps int     // steps where the result departed from nearest rounding
}

// Run accumulates steps additions of increment into start using the given
// mode. The adder supplies the format and seed; the step number doubles as
// the element index, so a run is fully reproducible for a fixed seed.
func Run(adder *stochastic.Adder, mode Mode, start, increment float64, steps int) (Result, error) {
	if adder == nil {
		return Result{}, fmt.Errorf("bench: adder must not be nil")
	}

	if steps < 1 {
		return Result{}, fmt.Errorf("bench: steps must be at least 1, got %d", steps)
	}

	f := adder.Format()
	acc := f.Quantize(start)
	inc := f.Quantize(increment)
	alt := 0

	for i := 0; i < steps; i++ {
		nearest := f.Quantize(acc + inc)

		if mode == ModeNearest {
			acc = nearest
			continue
		}

		v := adder.AddScalar(acc, inc, int64(i), mode == ModeBiased)
		if v != nearest {
			alt++
		}

		acc = v
	}

	exact := f.Quantize(start) + float64(steps)*f.Quantize(increment)

	return Result{
		Mode:     mode,
		Steps:    steps,
		Final:    acc,
		Exact:    exact,
		Drift:    acc - exact,
		AltSteps: alt,
	}, nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of run results to w.
func FormatTable(results []Result, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-8s  %8s  %14s  %14s  %12s  %10s\n", "Mode", "Steps", "Final", "Exact", "Drift", "AltSteps")
	fmt.Fprintln(sb, strings.Repeat("-", 76))

	for _, r := range results {
		fmt.Fprintf(sb, "%-8s  %8d  %14.8g  %14.8g  %12.4g  %10d\n",
			r.Mode, r.Steps, r.Final, r.Exact, r.Drift, r.AltSteps)
	}

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs []jsonRun `json:"runs"`
}

type jsonRun struct {
	Mode        string  `json:"mode"`
	Steps       int     `json:"steps"`
	Final       float64 `json:"final"`
	Exact       float64 `json:"exact"`
	Drift       float64 `json:"drift"`
	AltSteps    int     `json:"alt_steps"`
	AltFraction float64 `json:"alt_fraction"`
}

// FormatJSON writes a JSON report of run results to w.
func FormatJSON(results []Result, w io.Writer) {
	jr := jsonReport{Runs: make([]jsonRun, len(results))}

	for i, r := range results {
		frac := 0.0
		if r.Steps > 0 {
			frac = float64(r.AltSteps) / float64(r.Steps)
		}

		jr.Runs[i] = jsonRun{
			Mode:        string(r.Mode),
			Steps:       r.Steps,
			Final:       r.Final,
			Exact:       r.Exact,
			Drift:       r.Drift,
			AltSteps:    r.AltSteps,
			AltFraction: frac,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}

// RelativeDrift returns |drift| / |exact|, or |drift| when exact is zero.
// Used by tests and the CLI to gate on accumulation quality.
func RelativeDrift(r Result) float64 {
	if r.Exact == 0 {
		return math.Abs(r.Drift)
	}

	return math.Abs(r.Drift / r.Exact)
}
