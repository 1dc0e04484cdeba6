// Package config loads stochround configuration from defaults, a config
// file, environment variables and command-line flags, in increasing order of
// precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-stochround/internal/floatformat"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Rounding RoundingConfig `mapstructure:"rounding"`
	Bench    BenchConfig    `mapstructure:"bench"`
}

type RoundingConfig struct {
	Precision string `mapstructure:"precision"`
	Seed      uint64 `mapstructure:"seed"`
	Biased    bool   `mapstructure:"biased"`
}

type BenchConfig struct {
	Steps     int     `mapstructure:"steps"`
	Start     float64 `mapstructure:"start"`
	Increment float64 `mapstructure:"increment"`
	Format    string  `mapstructure:"format"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Rounding: RoundingConfig{
			Precision: "bf16",
			Seed:      42,
			Biased:    false,
		},
		Bench: BenchConfig{
			Steps:     10000,
			Start:     1.0,
			Increment: 0.0009765625, // 2^-10, an eighth of a bf16 ULP at 1.0
			Format:    "table",
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
	fs.String("rounding-precision", defaults.Rounding.Precision, "Output precision: f16|bf16|f32|f64")
	fs.Uint64("rounding-seed", defaults.Rounding.Seed, "Seed for the deterministic rounding draws")
	fs.Bool("rounding-biased", defaults.Rounding.Biased, "Bias the rounding probability by the exact error")
	fs.Int("bench-steps", defaults.Bench.Steps, "Accumulation steps per bench run")
	fs.Float64("bench-start", defaults.Bench.Start, "Accumulator start value for bench runs")
	fs.Float64("bench-increment", defaults.Bench.Increment, "Increment added per bench step")
	fs.String("bench-format", defaults.Bench.Format, "Bench output format: table|json")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetEnvPrefix("STOCHROUND")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("stochround")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations that would fail later at construction
// time, so bad precision tags and bench parameters surface immediately.
func Validate(cfg Config) error {
	if _, err := floatformat.Parse(cfg.Rounding.Precision); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if cfg.Bench.Steps < 1 {
		return fmt.Errorf("config: bench steps must be at least 1, got %d", cfg.Bench.Steps)
	}

	if cfg.Bench.Format != "table" && cfg.Bench.Format != "json" {
		return fmt.Errorf("config: bench format must be 'table' or 'json', got %q", cfg.Bench.Format)
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("rounding.precision", c.Rounding.Precision)
	v.SetDefault("rounding.seed", c.Rounding.Seed)
	v.SetDefault("rounding.biased", c.Rounding.Biased)
	v.SetDefault("bench.steps", c.Bench.Steps)
	v.SetDefault("bench.start", c.Bench.Start)
	v.SetDefault("bench.increment", c.Bench.Increment)
	v.SetDefault("bench.format", c.Bench.Format)
}

// bindFlags binds each flag to its config key, so a changed flag outranks the
// config file while an untouched flag's default ranks below it.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"log_level":          "log-level",
		"rounding.precision": "rounding-precision",
		"rounding.seed":      "rounding-seed",
		"rounding.biased":    "rounding-biased",
		"bench.steps":        "bench-steps",
		"bench.start":        "bench-start",
		"bench.increment":    "bench-increment",
		"bench.format":       "bench-format",
	}

	for key, name := range bindings {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}

		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}

	return nil
}
