package node

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// LoadConfig decodes a YAML document into a Config, layered over
// DefaultConfig() so an omitted option keeps its default rather than
// zeroing out. The document is parsed into a generic map first and handed
// to mapstructure.Decode so the same decode path also accepts CLI-flag
// overrides (ApplyOverrides) without a second parser.
func LoadConfig(data []byte) (*Config, error) {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg := DefaultConfig()
	if err := decodeInto(&cfg, raw); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// LoadConfigFile reads path and decodes it with LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadConfig(data)
}

// ApplyOverrides decodes overrides (e.g. gathered from CLI flags in
// cmd/massa-node/main.go, one entry per flag explicitly set) onto an
// already-loaded cfg. Keys absent from overrides leave the existing field
// untouched, matching the teacher's override-merge pattern but routed
// through mapstructure instead of a hand-rolled field walk.
func ApplyOverrides(cfg *Config, overrides map[string]interface{}) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := decodeInto(cfg, overrides); err != nil {
		return fmt.Errorf("config: apply overrides: %w", err)
	}
	return nil
}

// decodeInto runs a weakly-typed mapstructure decode of raw onto cfg,
// tolerating YAML's string/int ambiguity (e.g. a duration given as
// "500ms" or CLI flags that arrive as strings) via DecodeHook.
func decodeInto(cfg *Config, raw map[string]interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           cfg,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
