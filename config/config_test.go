// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://graph.microsoft.com", cfg.Graph.Url)
	assert.Equal(t, "https://login.microsoftonline.com", cfg.Azure.Authority)
	assert.Equal(t, 100*time.Millisecond, cfg.Graph.PageDelay.Get())
	assert.Equal(t, 0, cfg.Graph.MaxRetries, "retries default to unbounded")
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYamlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
azure:
  tenant_id: tenant-1
  client_id: client-1
  client_secret: s3cret
graph:
  max_retries: 5
  page_delay: 250ms
log:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", cfg.Azure.TenantId)
	assert.Equal(t, 5, cfg.Graph.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Graph.PageDelay.Get())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("azure:\n  tenant_id: from-file\n"), 0o600))

	t.Setenv("AZURE_TENANT_ID", "from-env")
	t.Setenv("GRAPH_MAX_RETRIES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Azure.TenantId)
	assert.Equal(t, 7, cfg.Graph.MaxRetries)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.Azure.JWT = "token"
	assert.NoError(t, cfg.Validate(), "a pre-acquired token is sufficient by itself")

	cfg = &Config{}
	cfg.Azure.TenantId = "t"
	cfg.Azure.ClientId = "c"
	assert.Error(t, cfg.Validate(), "secret missing")
	cfg.Azure.ClientSecret = "s"
	assert.NoError(t, cfg.Validate())
}

func TestDurationRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("graph:\n  page_delay: soon\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
