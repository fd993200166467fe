// Package config loads engine options (superstep ceiling, strictness,
// log level) from YAML or JSON files and converts them into the graph
// package's run and compile configuration.
package config
