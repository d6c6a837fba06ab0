package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
		File   string `yaml:"file"`
	} `yaml:"logging"`
	Engine struct {
		Window          int  `yaml:"window"`
		PrimeSamples    bool `yaml:"prime_samples"`
		CheckInvariants bool `yaml:"check_invariants"`
	} `yaml:"engine"`
	Replay struct {
		Input         string `yaml:"input"`
		WriteInterval int64  `yaml:"write_interval"`
	} `yaml:"replay"`
	Output struct {
		CSVDir      string `yaml:"csv_dir"`
		PebbleDir   string `yaml:"pebble_dir"`
		MetricsFile string `yaml:"metrics_file"`
	} `yaml:"output"`
}

func defaultConfig() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Engine.Window = 100
	c.Engine.PrimeSamples = true
	c.Engine.CheckInvariants = false
	c.Replay.Input = "orders_in.csv"
	c.Replay.WriteInterval = 1000
	c.Output.CSVDir = "out"
	return c
}

// Load applies, in order: defaults, .env (envPath or ./.env), the YAML file
// named by AUCTION_CONFIG, then individual environment overrides.
func Load(envPath string) (Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	} else {
		_ = godotenv.Load() // a missing ./.env is fine
	}

	c := defaultConfig()
	if path := os.Getenv("AUCTION_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func applyEnv(c *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Pretty = v == "pretty"
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		// edge case: explicit opt-out values disable file logging
		if v == "none" || v == "disabled" {
			v = ""
		}
		c.Logging.File = v
	}
	if v := os.Getenv("AUCTION_INPUT"); v != "" {
		c.Replay.Input = v
	}
	if v := os.Getenv("AUCTION_OUTPUT_DIR"); v != "" {
		c.Output.CSVDir = v
	}
	if v := os.Getenv("AUCTION_PEBBLE_DIR"); v != "" {
		c.Output.PebbleDir = v
	}
	if v := os.Getenv("AUCTION_METRICS_FILE"); v != "" {
		c.Output.MetricsFile = v
	}
	if v := os.Getenv("AUCTION_WRITE_INTERVAL"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("AUCTION_WRITE_INTERVAL: %w", err)
		}
		c.Replay.WriteInterval = n
	}
	if v := os.Getenv("AUCTION_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUCTION_WINDOW: %w", err)
		}
		c.Engine.Window = n
	}
	if v := os.Getenv("AUCTION_CHECK_INVARIANTS"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("AUCTION_CHECK_INVARIANTS: %w", err)
		}
		c.Engine.CheckInvariants = b
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Engine.Window < 2 {
		errs = append(errs, fmt.Errorf("engine.window must be at least 2, got %d", c.Engine.Window))
	}
	if c.Replay.WriteInterval <= 0 {
		errs = append(errs, fmt.Errorf("replay.write_interval must be positive, got %d", c.Replay.WriteInterval))
	}
	if c.Replay.Input == "" {
		errs = append(errs, errors.New("replay.input is required"))
	}
	return errors.Join(errs...)
}
