package config

// Logging selects log verbosity and an optional rotating file sink.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}

// RPC configures the JSON-RPC and websocket server.
type RPC struct {
	Address            string  `toml:"Address" yaml:"address"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond" yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `toml:"RateLimitBurst" yaml:"rate_limit_burst"`
	// OperatorJWTSecretEnv names the environment variable holding the HMAC
	// secret for operator bearer tokens. Operator endpoints are disabled when
	// it is empty or unset.
	OperatorJWTSecretEnv string `toml:"OperatorJWTSecretEnv" yaml:"operator_jwt_secret_env"`
	OperatorJWTIssuer    string `toml:"OperatorJWTIssuer" yaml:"operator_jwt_issuer"`
	ReadTimeoutSecs      int    `toml:"ReadTimeoutSecs" yaml:"read_timeout_secs"`
	WriteTimeoutSecs     int    `toml:"WriteTimeoutSecs" yaml:"write_timeout_secs"`
	EventBuffer          int    `toml:"EventBuffer" yaml:"event_buffer"`
	// WSOrigins lists host patterns allowed to open /ws/events from a
	// browser. Empty allows same-origin requests only.
	WSOrigins  []string `toml:"WSOrigins" yaml:"ws_origins"`
	MaxStreams int      `toml:"MaxStreams" yaml:"max_streams"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}

// EventLog configures the SQLite event history index.
type EventLog struct {
	Enabled bool   `toml:"Enabled" yaml:"enabled"`
	Path    string `toml:"Path" yaml:"path"`
}

// Allocation credits an account with a token balance at first start.
type Allocation struct {
	Token   string `toml:"Token" yaml:"token"`
	Address string `toml:"Address" yaml:"address"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// Genesis is applied once, when the state store is empty.
type Genesis struct {
	Admin       string       `toml:"Admin" yaml:"admin"`
	Allocations []Allocation `toml:"Allocations" yaml:"allocations"`
}
