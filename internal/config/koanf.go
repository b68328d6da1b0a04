// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/animatch/config.yaml",
	"/etc/animatch/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "ANIMATCH_CONFIG"

// envPrefix namespaces all environment overrides.
const envPrefix = "ANIMATCH_"

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. ANIMATCH_* environment variables (highest priority)
//
// ANIMATCH_PROVIDERS_MAL_CREDENTIAL maps to providers.mal.credential,
// ANIMATCH_RATE_LIMIT_YOUTUBE_REQUESTS to rate_limit.youtube.requests.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sectionPrefixes maps the leading env-var token(s) to config sections whose
// names contain underscores, which a naive underscore-to-dot split would
// mangle.
var sectionPrefixes = map[string]string{
	"rate_limit": "rate_limit",
}

// envTransform maps ANIMATCH_SECTION_FIELD to section.field. Nested provider
// sections get a second split: ANIMATCH_PROVIDERS_MAL_CREDENTIAL becomes
// providers.mal.credential.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	for prefix, section := range sectionPrefixes {
		if strings.HasPrefix(key, prefix+"_") {
			rest := strings.TrimPrefix(key, prefix+"_")
			return section + "." + splitProviderField(rest)
		}
	}

	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 1 {
		return key
	}
	section, rest := parts[0], parts[1]
	switch section {
	case "providers":
		return section + "." + splitProviderField(rest)
	default:
		return section + "." + rest
	}
}

// splitProviderField splits "mal_credential" into "mal.credential", keeping
// multi-word field names ("base_url", "smooth_rps") intact.
func splitProviderField(rest string) string {
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) == 1 {
		return rest
	}
	return parts[0] + "." + parts[1]
}

// sliceConfigPaths are fields that arrive from the environment as
// comma-separated strings but unmarshal into slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
