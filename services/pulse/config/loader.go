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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPulse/services/pulse/telemetry"
)

// maxConfigSize caps config reads; anything larger is not a config file.
const maxConfigSize = 1 << 20

// ErrConfigTooLarge indicates a config file over the size cap.
var ErrConfigTooLarge = errors.New("config file too large")

// DefaultConfig returns the engine defaults used when no config file is
// given. Component-level zero values fall through to each package's own
// defaults.
func DefaultConfig() Config {
	return Config{
		Telemetry: telemetry.DefaultConfig(),
		Server:    ServerSection{MetricsAddr: ":9464"},
	}
}

// Load reads a YAML config file. Unknown keys are rejected so typos fail
// at startup instead of silently using defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(raw) > maxConfigSize {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigTooLarge, path)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
