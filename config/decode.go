package config

import (
	"bytes"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "BRIDGE"

func parseYaml(out interface{}, blob []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("can't parse yaml: %w", err)
	}
	return nil
}

func parseEnv(out interface{}) error {
	if err := envconfig.Process(envPrefix, out); err != nil {
		return fmt.Errorf("can't read environment: %w", err)
	}
	return nil
}
