// Package config loads the settings shared by the placenet executables.
package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config captures the runtime knobs for the server and the command-line trainer.
type Config struct {
	Addr string `yaml:"addr"`

	// DataPath is the placement CSV. If empty, SyntheticSize records are generated instead.
	DataPath      string  `yaml:"data_path"`
	SyntheticSize int     `yaml:"synthetic_size"`
	TestFraction  float64 `yaml:"test_fraction"`
	Seed          int64   `yaml:"seed"`

	ModelDir  string `yaml:"model_dir"`
	SessionDB string `yaml:"session_db"`

	GridSteps int           `yaml:"grid_steps"`
	ImageSize int           `yaml:"image_size"`
	Pace      time.Duration `yaml:"pace"`

	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Mode         string  `yaml:"mode"`
	ReportEvery  int     `yaml:"report_every"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Addr         string
	DataPath     string
	ModelDir     string
	SessionDB    string
	Seed         int64
	Epochs       int
	LearningRate float64
	Mode         string
	ReportEvery  int
}

// Default returns the Config used when no file is given.
func Default() *Config {
	return &Config{
		Addr:          ":5000",
		SyntheticSize: 200,
		TestFraction:  0.2,
		Seed:          42,
		ModelDir:      "models",
		SessionDB:     "sessions.db",
		GridSteps:     50,
		ImageSize:     200,
		Pace:          10 * time.Millisecond,
		Epochs:        1000,
		LearningRate:  0.01,
		Mode:          "batch",
		ReportEvery:   10,
	}
}

// Load reads and validates a Config. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open config")
	}
	defer f.Close()

	cfg, err := parse(f, Default())
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.DataPath != "" {
		c.DataPath = o.DataPath
	}
	if o.ModelDir != "" {
		c.ModelDir = o.ModelDir
	}
	if o.SessionDB != "" {
		c.SessionDB = o.SessionDB
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Mode != "" {
		c.Mode = o.Mode
	}
	if o.ReportEvery > 0 {
		c.ReportEvery = o.ReportEvery
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("Config is nil")
	}
	if c.DataPath == "" && c.SyntheticSize < 2 {
		return errors.Errorf("synthetic_size must be >= 2 when no data_path is set (got %d)", c.SyntheticSize)
	}
	if !(c.TestFraction > 0 && c.TestFraction < 1) {
		return errors.Errorf("test_fraction must be within (0, 1) (got %v)", c.TestFraction)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if !(c.LearningRate > 0) {
		return errors.Errorf("learning_rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.Mode != "batch" && c.Mode != "online" {
		return errors.Errorf("mode must be batch or online (got %q)", c.Mode)
	}
	if c.GridSteps < 2 {
		return errors.Errorf("grid_steps must be >= 2 (got %d)", c.GridSteps)
	}
	if c.ImageSize < 0 || c.Pace < 0 || c.ReportEvery < 0 {
		return errors.New("image_size, pace and report_every must not be negative")
	}
	if c.ModelDir == "" {
		c.ModelDir = "models"
	}
	return nil
}

func parse(r io.Reader, cfg *Config) (*Config, error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("line %d: missing ':'", lineNo)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")

		var err error
		switch key {
		case "addr":
			cfg.Addr = value
		case "data_path":
			cfg.DataPath = value
		case "synthetic_size":
			cfg.SyntheticSize, err = strconv.Atoi(value)
		case "test_fraction":
			cfg.TestFraction, err = strconv.ParseFloat(value, 64)
		case "seed":
			cfg.Seed, err = strconv.ParseInt(value, 10, 64)
		case "model_dir":
			cfg.ModelDir = value
		case "session_db":
			cfg.SessionDB = value
		case "grid_steps":
			cfg.GridSteps, err = strconv.Atoi(value)
		case "image_size":
			cfg.ImageSize, err = strconv.Atoi(value)
		case "pace":
			cfg.Pace, err = time.ParseDuration(value)
		case "epochs":
			cfg.Epochs, err = strconv.Atoi(value)
		case "learning_rate":
			cfg.LearningRate, err = strconv.ParseFloat(value, 64)
		case "mode":
			cfg.Mode = value
		case "report_every":
			cfg.ReportEvery, err = strconv.Atoi(value)
		default:
			return nil, errors.Errorf("line %d: unknown key %s", lineNo, key)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: %s", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
