package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8090", cfg.ListenAddress)
	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "info", cfg.LogLevel)
	require.Positive(t, cfg.RequestsPerMinute)
	require.Positive(t, cfg.RequestBurst)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// the persisted default loads back unchanged
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, reloaded.ListenAddress)
}

func TestLoadParsesAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `ListenAddress = ":9000"
AdminAddress = "0x0101010101010101010101010101010101010101"
TokenAddress = "0202020202020202020202020202020202020202"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)

	admin, ok, err := cfg.Admin()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(0x01), admin[0])

	token, ok, err := cfg.Token()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(0x02), token[19])
}

func TestLoadRejectsMalformedAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`AdminAddress = "nothex"`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestUnsetAddressesAreOptional(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	require.NoError(t, cfg.Validate())

	_, ok, err := cfg.Admin()
	require.NoError(t, err)
	require.False(t, ok)
}
