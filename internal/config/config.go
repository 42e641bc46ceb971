// Package config loads the ldpc_eval configuration.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/hashicorp/logutils"
	"github.com/spf13/viper"

	"github.com/observe-l/nrcoding/ldpc"
)

// Config is the evaluation setup.
type Config struct {
	Code    CodeConfig    `mapstructure:"code"`
	Sim     SimConfig     `mapstructure:"sim"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type CodeConfig struct {
	BaseGraph int    `mapstructure:"base_graph"`
	Z         int    `mapstructure:"z"`
	K         int    `mapstructure:"k"`
	F         int    `mapstructure:"f"`
	C         int    `mapstructure:"c"`
	Qm        int    `mapstructure:"qm"`
	Layers    int    `mapstructure:"layers"`
	G         int    `mapstructure:"g"` // total coded bits per transport block
	TBSLBRM   uint32 `mapstructure:"tbslbrm"`
}

type SimConfig struct {
	Runs       int     `mapstructure:"runs"`
	FlipProb   float64 `mapstructure:"flip_prob"`
	Amplitude  int     `mapstructure:"amplitude"`
	RVSequence []int   `mapstructure:"rv_sequence"`
	Workers    int     `mapstructure:"workers"`
	Seed       int64   `mapstructure:"seed"`
	Key        uint64  `mapstructure:"key"`
}

type OutputConfig struct {
	Report  string `mapstructure:"report"`
	DumpTB  string `mapstructure:"dump_tb"` // zstd record dump, empty disables
	HarqDB  string `mapstructure:"harq_db"` // soft-buffer checkpoint, empty disables
}

type LoggingConfig struct {
	Level string `mapstructure:"level"` // DEBUG, INFO, WARN, ERROR
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // promhttp listen address, empty disables
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("code.base_graph", 1)
	v.SetDefault("code.z", 64)
	v.SetDefault("code.k", 22*64)
	v.SetDefault("code.f", 0)
	v.SetDefault("code.c", 4)
	v.SetDefault("code.qm", 4)
	v.SetDefault("code.layers", 1)
	v.SetDefault("code.g", 4*2400)
	v.SetDefault("code.tbslbrm", 0)

	v.SetDefault("sim.runs", 200)
	v.SetDefault("sim.flip_prob", 0.02)
	v.SetDefault("sim.amplitude", 8)
	v.SetDefault("sim.rv_sequence", []int{0, 2, 3, 1})
	v.SetDefault("sim.workers", 0)
	v.SetDefault("sim.seed", 42)
	v.SetDefault("sim.key", 0)

	v.SetDefault("output.report", "docs/reports/ldpc_eval.md")
	v.SetDefault("logging.level", "INFO")
}

// Load reads configFile (YAML/JSON/TOML) when it exists, applies NRC_*
// environment overrides and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ldpc_eval")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	v.SetEnvPrefix("NRC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// defaults only
		} else if os.IsNotExist(err) {
			// explicit file missing, defaults only
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Params returns the coding parameters for redundancy version rv.
func (c *Config) Params(rv int) ldpc.CodingParams {
	return ldpc.CodingParams{
		BaseGraph: c.Code.BaseGraph,
		Z:         c.Code.Z,
		K:         c.Code.K,
		F:         c.Code.F,
		C:         c.Code.C,
		TBSLBRM:   c.Code.TBSLBRM,
		RV:        rv,
		Qm:        c.Code.Qm,
		Layers:    c.Code.Layers,
	}
}

func (c *Config) validate() error {
	if err := c.Params(0).Validate(); err != nil {
		return err
	}
	if _, err := ldpc.SplitCodedBits(c.Code.G, c.Code.C, c.Code.Qm, c.Code.Layers); err != nil {
		return err
	}
	if c.Sim.Runs <= 0 {
		return fmt.Errorf("sim.runs must be positive, got %d", c.Sim.Runs)
	}
	if c.Sim.FlipProb < 0 || c.Sim.FlipProb > 1 {
		return fmt.Errorf("sim.flip_prob %v outside [0,1]", c.Sim.FlipProb)
	}
	if c.Sim.Amplitude <= 0 || c.Sim.Amplitude > 127 {
		return fmt.Errorf("sim.amplitude %d outside (0,127]", c.Sim.Amplitude)
	}
	if len(c.Sim.RVSequence) == 0 {
		return fmt.Errorf("sim.rv_sequence is empty")
	}
	for _, rv := range c.Sim.RVSequence {
		if rv < 0 || rv > 3 {
			return fmt.Errorf("sim.rv_sequence: rv %d outside 0..3", rv)
		}
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level %q not one of DEBUG, INFO, WARN, ERROR", c.Logging.Level)
	}
	return nil
}

// SetupLogging routes the standard logger through a level filter writing to
// w. Lines are tagged "[DEBUG]", "[INFO]", "[WARN]" or "[ERROR]".
func SetupLogging(level string, w io.Writer) *logutils.LevelFilter {
	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"},
		MinLevel: logutils.LogLevel(strings.ToUpper(level)),
		Writer:   w,
	}
	log.SetOutput(filter)
	return filter
}
