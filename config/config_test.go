package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"paylinkchain/crypto"
)

func testAddress(seed byte) string {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength)).String()
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(1), cfg.ChainID)
	require.Equal(t, 1024, cfg.MaxSaltLength)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPC.Address, reloaded.RPC.Address)
	require.Equal(t, filepath.Join(cfg.DataDir, "events.db"), reloaded.EventLog.Path)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	admin := testAddress(0x01)
	contents := `ChainID = 7
NetworkName = "paylink-test"
DataDir = "/var/lib/paylink"
MaxSaltLength = 256

[rpc]
Address = "127.0.0.1:9000"
RateLimitPerSecond = 5.0
RateLimitBurst = 10

[genesis]
Admin = "` + admin + `"

[[genesis.Allocations]]
Token = "usdc"
Address = "` + admin + `"
Amount = "1000000"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(7), cfg.ChainID)
	require.Equal(t, 256, cfg.MaxSaltLength)
	require.Equal(t, "127.0.0.1:9000", cfg.RPC.Address)
	require.Equal(t, 10, cfg.RPC.RateLimitBurst)
	require.Equal(t, "/var/lib/paylink/state", cfg.StatePath())
	require.Len(t, cfg.Genesis.Allocations, 1)

	token, to, amount, err := cfg.Genesis.Allocations[0].Parse()
	require.NoError(t, err)
	require.True(t, token.Equal(crypto.ContractAddress("token:usdc")))
	require.Equal(t, admin, to.String())
	require.Equal(t, "1000000", amount.String())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `chain_id: 3
data_dir: ./data
max_salt_length: 64
logging:
  level: debug
eventlog:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(3), cfg.ChainID)
	require.Equal(t, 64, cfg.MaxSaltLength)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.False(t, cfg.EventLog.Enabled)
	// Unset sections keep their defaults.
	require.Equal(t, ":8545", cfg.RPC.Address)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenPeers = \"abc\"\n"), 0o644))
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ListenPeers") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chain", func(c *Config) { c.ChainID = 0 }},
		{"salt limit too large", func(c *Config) { c.MaxSaltLength = 2048 }},
		{"salt limit zero", func(c *Config) { c.MaxSaltLength = 0 }},
		{"burst missing", func(c *Config) { c.RPC.RateLimitBurst = 0 }},
		{"bad sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }},
		{"bad admin", func(c *Config) { c.Genesis.Admin = "not-an-address" }},
		{"bad allocation", func(c *Config) {
			c.Genesis.Allocations = []Allocation{{Token: "usdc", Address: testAddress(1), Amount: "-5"}}
		}},
	}
	require.NoError(t, Default().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
