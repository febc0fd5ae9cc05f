package mirror

import (
	"github.com/goccy/go-yaml"
)

type Config struct {
	// DumpGraceMilliseconds is how long a requested kernel dump may sit
	// unfinished before the monitor gives up on its completion marker and
	// lets queries request a fresh one.
	DumpGraceMilliseconds int `yaml:"dumpGraceMilliseconds"`
}

var DefaultConfig = Config{
	DumpGraceMilliseconds: 5000,
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := config(DefaultConfig)

	if err := yaml.Unmarshal(b, &def); err != nil {
		return err
	}

	*c = Config(def)

	return nil
}
