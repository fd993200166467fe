package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pipeworks/stategraph/graph"
	"github.com/pipeworks/stategraph/log"
)

// Options are the engine settings an application can keep in a config
// file instead of code.
type Options struct {
	// MaxSteps caps the supersteps of a single execution. Zero means the
	// engine default.
	MaxSteps int `yaml:"max_steps" json:"max_steps"`

	// Permissive relaxes strict compile and merge policies.
	Permissive bool `yaml:"permissive" json:"permissive"`

	// LogLevel sets the package-level log level: debug, info, warn,
	// error, or none. Empty leaves the current level untouched.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// FromFile loads options from a file, auto-detecting the format by
// extension. Supported extensions: .yaml, .yml, .json.
func FromFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Options{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into Options.
func FromYAML(data []byte) (Options, error) {
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("parse yaml: %w", err)
	}
	return o, nil
}

// FromJSON parses JSON data into Options.
func FromJSON(data []byte) (Options, error) {
	var o Options
	if err := json.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("parse json: %w", err)
	}
	return o, nil
}

// RunConfig converts the options into a per-invocation graph.Config.
func (o Options) RunConfig() *graph.Config {
	return &graph.Config{MaxSteps: o.MaxSteps}
}

// CompileOptions converts the options into compile options.
func (o Options) CompileOptions() []graph.CompileOption {
	if o.Permissive {
		return []graph.CompileOption{graph.Permissive()}
	}
	return nil
}

// Apply installs the options' ambient settings, currently the log level.
func (o Options) Apply() {
	if o.LogLevel != "" {
		log.SetLogLevel(log.ParseLevel(o.LogLevel))
	}
}
