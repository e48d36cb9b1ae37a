// Package scanline glues the frame-horizon candidate tracker to the
// long-horizon aggregation registry: raw per-frame detections go in, a stable
// set of deduplicated items comes out.
package scanline

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/scanline/scanline-go/aggregate"
	"github.com/scanline/scanline-go/track"
)

// Config combines the tuning knobs of both pipeline stages.
type Config struct {
	Tracker     track.Config     `yaml:"tracker"`
	Aggregation aggregate.Config `yaml:"aggregation"`
}

// DefaultConfig returns the default tuning for both stages.
func DefaultConfig() Config {
	return Config{
		Tracker:     track.DefaultConfig(),
		Aggregation: aggregate.DefaultConfig(),
	}
}

// Validate checks both stage configurations.
func (cfg Config) Validate() error {
	if err := cfg.Tracker.Validate(); err != nil {
		return err
	}
	return cfg.Aggregation.Validate()
}

// LoadConfig reads a Config from a YAML file. Missing keys keep their
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "can't read config file %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "can't parse config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config file %s", path)
	}
	return cfg, nil
}
