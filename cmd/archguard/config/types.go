// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the per-user ARCHGUARD settings file.
package config

import (
	"path/filepath"
	"runtime"
)

// CurrentConfigVersion is written into newly created config files.
const CurrentConfigVersion = "1"

type ArchguardConfig struct {
	// Meta: schema information for the file itself
	Meta MetaConfig `yaml:"meta"`

	// Analysis: defaults for analyze/check flags
	Analysis AnalysisConfig `yaml:"analysis"`

	// History: local snapshot store used for trend tracking
	History HistoryConfig `yaml:"history"`

	// Influx: trend export target
	Influx InfluxConfig `yaml:"influx"`

	// Logging: process logger settings
	Logging LoggingConfig `yaml:"logging"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type AnalysisConfig struct {
	Policy          string `yaml:"policy"`            // e.g. policy.yaml
	Extractor       string `yaml:"extractor"`         // regex | treesitter
	Workers         int    `yaml:"workers"`           // 0 = number of CPUs
	FailOn          string `yaml:"fail_on,omitempty"` // empty = never fail
	ContinueOnError bool   `yaml:"continue_on_error"`
}

type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Path         string `yaml:"path"`
	MaxSnapshots int    `yaml:"max_snapshots"`
}

type InfluxConfig struct {
	URL    string `yaml:"url,omitempty"`
	Org    string `yaml:"org,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`

	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `yaml:"token_env"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the settings written on first run. dir is the
// directory holding the config file.
func DefaultConfig(dir string) ArchguardConfig {
	return ArchguardConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		Analysis: AnalysisConfig{
			Policy:    "policy.yaml",
			Extractor: "regex",
			Workers:   runtime.NumCPU(),
		},
		History: HistoryConfig{
			Enabled:      false,
			Path:         filepath.Join(dir, "history"),
			MaxSnapshots: 100,
		},
		Influx: InfluxConfig{
			TokenEnv: "INFLUXDB_TOKEN",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}
