package corun

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "2s". Negative values are rejected.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must be >= 0", raw)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// ProcessorConfig configures a TaskProcessor.
type ProcessorConfig struct {
	// Name appears in log events.
	Name string `yaml:"name"`
	// Workers is the fixed worker pool size. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// BlockingLimit bounds concurrent RunBlocking calls. 0 means the
	// default of 64.
	BlockingLimit int `yaml:"blocking_limit"`
	// QueueWarnSize, when positive, logs a warning whenever the ready
	// queue grows past it. 0 disables the check.
	QueueWarnSize int `yaml:"queue_warn_size"`
	// ShutdownTimeout bounds how long Shutdown waits for live tasks to
	// drain before giving up and logging an error. 0 means wait
	// forever.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Validate checks the configuration for out-of-range values.
func (c ProcessorConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("processor %q: workers must be >= 0, got %d", c.Name, c.Workers)
	}
	if c.BlockingLimit < 0 {
		return fmt.Errorf("processor %q: blocking_limit must be >= 0, got %d", c.Name, c.BlockingLimit)
	}
	if c.QueueWarnSize < 0 {
		return fmt.Errorf("processor %q: queue_warn_size must be >= 0, got %d", c.Name, c.QueueWarnSize)
	}
	return nil
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.Name == "" {
		c.Name = "main"
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.BlockingLimit == 0 {
		c.BlockingLimit = 64
	}
	return c
}

// LoadProcessorConfig reads a ProcessorConfig from a YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadProcessorConfig(path string) (ProcessorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProcessorConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseProcessorConfig(data)
}

// ParseProcessorConfig parses a ProcessorConfig from YAML bytes.
func ParseProcessorConfig(data []byte) (ProcessorConfig, error) {
	var cfg ProcessorConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return ProcessorConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ProcessorConfig{}, err
	}
	return cfg, nil
}
