// Package config holds the explicit pipeline configuration object. There is
// no environment-derived global state; everything a run needs arrives in one
// decoded Pipeline value (the DSN may reference ${VAR} placeholders, which
// are expanded at load time).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"complaintsetl/internal/star"
)

// Pipeline is one complete run configuration.
type Pipeline struct {
	// Job names the run for logs and metric tags. Defaults to "complaints".
	Job string `json:"job,omitempty"`

	Source  Source     `json:"source"`
	Model   star.Model `json:"model,omitempty"`
	Storage Storage    `json:"storage"`
	Runtime Runtime    `json:"runtime,omitempty"`
}

// Source describes where and how to read the tabular input.
type Source struct {
	// Kind selects the parser: "csv" or "html".
	Kind string `json:"kind"`

	// Path is the input file.
	Path string `json:"path"`

	// Options are parser-specific ("comma", "lazy_quotes", "trim_space",
	// "table_index", ...).
	Options Options `json:"options,omitempty"`
}

// Storage addresses the relational sink.
type Storage struct {
	// Kind selects a registered backend: "postgres", "sqlite", "mssql".
	Kind string `json:"kind"`

	// DSN is backend-specific; ${VAR} references are expanded from the
	// environment at load time so credentials stay out of the file.
	DSN string `json:"dsn"`
}

// Runtime tunes execution without changing observable table contents.
type Runtime struct {
	// BatchSize bounds rows per INSERT statement. Zero means the backend
	// default (1000).
	BatchSize int `json:"batch_size,omitempty"`
}

// Load reads and decodes a JSON pipeline config.
//
// Fields left empty get usable defaults: the reference complaints model and
// the "complaints" job name.
func Load(path string) (*Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a JSON pipeline config from memory.
func Parse(raw []byte) (*Pipeline, error) {
	var p Pipeline
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if p.Job == "" {
		p.Job = "complaints"
	}
	if p.Model.StagingTable == "" && len(p.Model.Axes) == 0 {
		p.Model = star.Reference()
	}
	p.Model = p.Model.WithDefaults()
	p.Storage.DSN = os.ExpandEnv(p.Storage.DSN)

	return &p, nil
}
