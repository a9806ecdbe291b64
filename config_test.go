package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleConfig = `
prod:
  type: snowflake
  account: "{{ env_var('BENCH_ACCOUNT') }}"
  user: "{{ env_var('BENCH_USER', 'analyst') }}"
  password: "{{env_var('BENCH_PASSWORD')}}"
  role: TRANSFORMER
  warehouse: "{{ env_var('BENCH_WAREHOUSE', '') }}"
  database: ANALYTICS
  schema: PUBLIC
  threads: 4
  client_session_keep_alive: true
  connect_timeout: 15
  reuse_connections: true
Staging:
  account: staging-account
  user: stage
  password: hunter2
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("BENCH_ACCOUNT", "xy12345.us-east-1")
	t.Setenv("BENCH_PASSWORD", "s3cret")

	config, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	prod, err := config.Profile("prod")
	require.NoError(t, err)
	require.Equal(t, "snowflake", prod.Type)
	require.Equal(t, "xy12345.us-east-1", prod.Account)
	require.Equal(t, "analyst", prod.User)
	require.Equal(t, "s3cret", prod.Password)
	require.Equal(t, "TRANSFORMER", prod.Role)
	require.Equal(t, "", prod.Warehouse)
	require.Equal(t, "ANALYTICS", prod.Database)
	require.Equal(t, 4, prod.Threads)
	require.NotNil(t, prod.ClientSessionKeepAlive)
	require.True(t, *prod.ClientSessionKeepAlive)
	require.Equal(t, 15, prod.ConnectTimeout)
	require.True(t, prod.ReuseConnections)

	defaulted, err := config.Profile("")
	require.NoError(t, err)
	require.Equal(t, prod, defaulted)
}

func TestLoadConfigEnvOverridesDefault(t *testing.T) {
	t.Setenv("BENCH_ACCOUNT", "acct")
	t.Setenv("BENCH_PASSWORD", "pw")
	t.Setenv("BENCH_USER", "loader")

	config, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	prod, err := config.Profile("prod")
	require.NoError(t, err)
	require.Equal(t, "loader", prod.User)
}

func TestLoadConfigMissingEnv(t *testing.T) {
	t.Setenv("BENCH_ACCOUNT", "acct")
	t.Setenv("BENCH_PASSWORD", "")
	os.Unsetenv("BENCH_PASSWORD")

	_, err := LoadConfig(writeConfig(t, sampleConfig))
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorContains(t, err, "BENCH_PASSWORD")
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	require.ErrorIs(t, err, ErrConfig)
}

func TestProfileLookup(t *testing.T) {
	t.Parallel()
	config, err := LoadConfig(writeConfig(t, `
Staging:
  account: staging-account
  user: stage
  password: hunter2
`))
	require.NoError(t, err)

	staging, err := config.Profile("STAGING")
	require.NoError(t, err)
	require.Equal(t, "staging-account", staging.Account)

	_, err = config.Profile("prod")
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorContains(t, err, "profile 'prod' not found")
	require.ErrorContains(t, err, "staging")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("BENCH_HOST", "example.test")
	t.Setenv("BENCH_ABSENT", "")
	os.Unsetenv("BENCH_ABSENT")

	expanded, err := expandEnvVars("https://{{ env_var('BENCH_HOST') }}:{{ env_var('BENCH_ABSENT', '443') }}")
	require.NoError(t, err)
	require.Equal(t, "https://example.test:443", expanded)

	plain, err := expandEnvVars("no templates here")
	require.NoError(t, err)
	require.Equal(t, "no templates here", plain)

	_, err = expandEnvVars("{{ env_var('BENCH_ABSENT') }}")
	require.ErrorContains(t, err, "BENCH_ABSENT")
}
