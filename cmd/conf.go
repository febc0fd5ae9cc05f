package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/meta-n4vn33t/ndppd/api"
	"github.com/meta-n4vn33t/ndppd/metrics"
	"github.com/meta-n4vn33t/ndppd/mirror"
)

// Config is the daemon's top-level configuration. The api and metrics
// sections are optional: leaving one out keeps that server from running
// altogether. The mirror always runs; a missing section means its defaults.
type Config struct {
	LogLevel string `yaml:"logLevel"`

	Mirror  *mirror.Config  `yaml:"mirror"`
	Api     *api.Config     `yaml:"api"`
	Metrics *metrics.Config `yaml:"metrics"`
}

func (c Config) String() string {
	m, err := yaml.MarshalWithOptions(c, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return "marshalling error..."
	}
	return string(m)
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := &config{
		LogLevel: "info",
	}

	if err := yaml.Unmarshal(b, def); err != nil {
		return err
	}

	*c = Config(*def)

	return nil
}

func ReadConf(path string) (*Config, error) {
	r, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading the configuration file: %w", err)
	}

	conf := Config{}
	if err := yaml.Unmarshal(r, &conf); err != nil {
		return nil, fmt.Errorf("error unmarshaling the configuration: %w", err)
	}

	return &conf, nil
}
