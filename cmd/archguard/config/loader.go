// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "ARCHGUARD_CONFIG"

var (
	// Global is a singleton instance
	Global ArchguardConfig
	once   sync.Once
)

// Load ensures the config is loaded into the Global variable.
//
// A .env file in the working directory is loaded into the environment
// first; variables that are already set win.
func Load() error {
	var err error
	once.Do(func() {
		_ = godotenv.Load()
		var path string
		path, err = Path()
		if err != nil {
			return
		}
		Global, err = LoadFrom(path)
	})
	return err
}

// Path returns the config file location: $ARCHGUARD_CONFIG, or
// ~/.archguard/archguard.yaml.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".archguard", "archguard.yaml"), nil
}

// LoadFrom reads the config at path, creating it with defaults when it
// does not exist. When the file cannot be created the defaults are used in
// memory.
func LoadFrom(path string) (ArchguardConfig, error) {
	if _, err := os.Stat(path); err != nil {
		slog.Info("first run detected, creating config", slog.String("path", path))
		if err := createDefault(path); err != nil {
			slog.Warn("could not create config, using defaults",
				slog.String("path", path), slog.String("error", err.Error()))
			return DefaultConfig(filepath.Dir(path)), nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ArchguardConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig(filepath.Dir(path))
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ArchguardConfig{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig(dir))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
