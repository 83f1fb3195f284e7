package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces synapse environment overrides.
	envPrefix = "SYNAPSE_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load reads configuration from an optional JSON file, then overrides with
// SYNAPSE_* environment variables, on top of the built-in defaults.
//
// Environment variables map to config keys by splitting on the first
// underscore after the prefix:
//
//	SYNAPSE_THRESHOLDS_RECOMMENDATION_MIN_SCORE -> thresholds.recommendation_min_score
//	SYNAPSE_OUTPUT_REPORT_FORMAT                -> output.report_format
//
// An empty path skips the file layer. A missing file is not an error; a
// malformed file is.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := loadFile(k, configPath); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// SECTION_FIELD_NAME -> section.field_name: sections never contain
		// underscores, field names do.
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal onto a defaults-initialized struct so absent keys keep their
	// built-in values, including true-by-default booleans.
	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// loadFile loads one size-capped JSON config file into k.
// A file that does not exist is silently skipped.
func loadFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(rawbytes.Provider(content), kjson.Parser()); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
