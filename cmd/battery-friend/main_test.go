package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "battery-friend version dev\n", out.String())
}

func TestDefaultFlags(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.True(t, strings.HasSuffix(cfg.DefValue, filepath.Join("battery-friend", "config.toml")))
	assert.Equal(t, "BAT0", cmd.PersistentFlags().Lookup("battery").DefValue)
	assert.Equal(t, "false", cmd.PersistentFlags().Lookup("disable-autoreload").DefValue)
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[rules.low]
from = 0
to = 20
summary = "Battery at {percent}%"
`), 0o644))

	supply := filepath.Join(dir, "power_supply", "BAT1")
	require.NoError(t, os.MkdirAll(supply, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(supply, "capacity"), []byte("15\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(supply, "status"), []byte("Discharging\n"), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"check", "--config", cfgPath, "--battery", "BAT1", "--sysfs-root", filepath.Join(dir, "power_supply")})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "battery: 15% Discharging")
	assert.Contains(t, out.String(), "Battery at 15%")
}

func TestDaemonFailsOnMissingConfig(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.toml")})
	assert.Error(t, cmd.Execute())
}
