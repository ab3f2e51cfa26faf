// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ugurkocde/IntuneAutomation-sub001/constants"
)

// Config is the application configuration, loaded from an optional yaml file
// and overridden by environment variables.
type Config struct {
	Azure AzureConfig `yaml:"azure"`
	Graph GraphConfig `yaml:"graph"`
	Log   LogConfig   `yaml:"log"`
}

// AzureConfig holds tenant credentials for the client-credentials grant. JWT,
// when set, bypasses token acquisition entirely.
type AzureConfig struct {
	TenantId     string `yaml:"tenant_id"`
	ClientId     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	JWT          string `yaml:"jwt"`
	Authority    string `yaml:"authority"`
}

// GraphConfig tunes the request layer.
type GraphConfig struct {
	Url string `yaml:"url"`

	// MaxRetries bounds retries of a throttled request. 0 retries forever,
	// which matches the remote service's own guidance but risks an
	// indefinite hang under sustained throttling.
	MaxRetries int `yaml:"max_retries"`

	// PageDelay is the minimum spacing between page requests of one
	// listing walk.
	PageDelay Duration `yaml:"page_delay"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Duration is a yaml-friendly time.Duration accepting "30s", "2m" etc.
type Duration time.Duration

func (s *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*s = Duration(d)
	return nil
}

func (s Duration) Get() time.Duration {
	return time.Duration(s)
}

// Load reads path (when it exists), applies environment overrides, then
// defaults. A missing file is not an error; the environment alone can carry
// a full configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env + defaults
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	overrideString(&cfg.Azure.TenantId, "AZURE_TENANT_ID")
	overrideString(&cfg.Azure.ClientId, "AZURE_CLIENT_ID")
	overrideString(&cfg.Azure.ClientSecret, "AZURE_CLIENT_SECRET")
	overrideString(&cfg.Azure.JWT, "AZURE_JWT")
	overrideString(&cfg.Azure.Authority, "AZURE_AUTHORITY")
	overrideString(&cfg.Graph.Url, "GRAPH_URL")
	overrideInt(&cfg.Graph.MaxRetries, "GRAPH_MAX_RETRIES")
	overrideString(&cfg.Log.Level, "LOG_LEVEL")

	if cfg.Azure.Authority == "" {
		cfg.Azure.Authority = constants.DefaultAuthorityUrl
	}
	if cfg.Graph.Url == "" {
		cfg.Graph.Url = constants.DefaultGraphUrl
	}
	if cfg.Graph.PageDelay.Get() <= 0 {
		cfg.Graph.PageDelay = Duration(100 * time.Millisecond)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks that enough credential material is present to reach the
// service.
func (s *Config) Validate() error {
	if s.Azure.JWT != "" {
		return nil
	}
	if s.Azure.TenantId == "" || s.Azure.ClientId == "" || s.Azure.ClientSecret == "" {
		return fmt.Errorf("config: tenant_id, client_id and client_secret are required unless a jwt is supplied")
	}
	return nil
}

func overrideString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func overrideInt(target *int, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}
