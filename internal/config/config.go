package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zeusync/btcore/internal/core/observability/log"
	"gopkg.in/yaml.v3"
)

// Config describes a simulation host: which trees to load, how many agents run
// them and how they are ticked.
type Config struct {
	LogLevel string `json:"log_level" yaml:"log_level"`

	// AssetsDir holds the YAML/JSON tree files. RootTree names the asset every
	// agent starts on.
	AssetsDir string `json:"assets_dir" yaml:"assets_dir"`
	RootTree  string `json:"root_tree" yaml:"root_tree"`
	Watch     bool   `json:"watch" yaml:"watch"`

	Agents   int           `json:"agents" yaml:"agents"`
	Ticks    uint64        `json:"ticks" yaml:"ticks"`
	TickRate time.Duration `json:"tick_rate" yaml:"tick_rate"`
	Workers  int           `json:"workers" yaml:"workers"`
	Shards   int           `json:"shards" yaml:"shards"`

	// TelemetryAddr enables the websocket event stream when set.
	TelemetryAddr string `json:"telemetry_addr,omitempty" yaml:"telemetry_addr,omitempty"`
}

func Default() *Config {
	return &Config{
		LogLevel:  "info",
		AssetsDir: "configs/trees",
		RootTree:  "guard",
		Agents:    16,
		Ticks:     100,
		TickRate:  50 * time.Millisecond,
		Shards:    16,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func Decode(r io.Reader) (*Config, error) {
	c := Default()
	if err := yaml.NewDecoder(r).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the config. Ticks 0 runs until the host is stopped; TickRate 0
// ticks as fast as possible.
func (c *Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.AssetsDir == "" {
		errs = append(errs, errors.New("assets_dir is required"))
	}
	if c.RootTree == "" {
		errs = append(errs, errors.New("root_tree is required"))
	}
	if c.Agents < 0 {
		errs = append(errs, fmt.Errorf("agents must not be negative, got %d", c.Agents))
	}
	if c.TickRate < 0 {
		errs = append(errs, fmt.Errorf("tick_rate must not be negative, got %s", c.TickRate))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Shards < 0 {
		errs = append(errs, fmt.Errorf("shards must not be negative, got %d", c.Shards))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level is the parsed LogLevel.
func (c *Config) Level() log.Level {
	l, _ := log.ParseLevel(c.LogLevel)
	return l
}
