package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ChainID           uint64    `toml:"ChainID" yaml:"chain_id"`
	NetworkName       string    `toml:"NetworkName" yaml:"network_name"`
	Environment       string    `toml:"Environment" yaml:"environment"`
	DataDir           string    `toml:"DataDir" yaml:"data_dir"`
	MaxSaltLength     int       `toml:"MaxSaltLength" yaml:"max_salt_length"`
	AllowStateMigrate bool      `toml:"AllowStateMigrate" yaml:"allow_state_migrate"`
	Logging           Logging   `toml:"logging" yaml:"logging"`
	RPC               RPC       `toml:"rpc" yaml:"rpc"`
	Telemetry         Telemetry `toml:"telemetry" yaml:"telemetry"`
	EventLog          EventLog  `toml:"eventlog" yaml:"eventlog"`
	Genesis           Genesis   `toml:"genesis" yaml:"genesis"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		ChainID:       1,
		NetworkName:   "paylink-local",
		Environment:   "dev",
		DataDir:       "./paylink-data",
		MaxSaltLength: 1024,
		Logging:       Logging{Level: "info"},
		RPC: RPC{
			Address:              ":8545",
			RateLimitPerSecond:   20,
			RateLimitBurst:       40,
			OperatorJWTSecretEnv: "PAYLINK_OPERATOR_JWT_SECRET",
			OperatorJWTIssuer:    "paylink-ops",
			ReadTimeoutSecs:      15,
			WriteTimeoutSecs:     15,
			EventBuffer:          64,
			MaxStreams:           64,
		},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true, SampleRatio: 1},
		EventLog:  EventLog{Enabled: true},
		Genesis:   Genesis{Allocations: []Allocation{}},
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load loads the configuration from the given path. TOML is the native format;
// files ending in .yaml or .yml are decoded as YAML. A missing file is created
// with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
		}
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "paylink-local"
	}
	if cfg.Genesis.Allocations == nil {
		cfg.Genesis.Allocations = []Allocation{}
	}
	if strings.TrimSpace(cfg.EventLog.Path) == "" {
		cfg.EventLog.Path = filepath.Join(cfg.DataDir, "events.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.EventLog.Path = filepath.Join(cfg.DataDir, "events.db")
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

// StatePath is the LevelDB directory under DataDir.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}
