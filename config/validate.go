package config

import (
	"fmt"
	"math/big"
	"strings"

	"paylinkchain/crypto"
)

// Validate checks ranges and parses every address and amount so a bad file
// fails at startup rather than mid-genesis.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("ChainID must be non-zero")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir required")
	}
	if c.MaxSaltLength < 1 || c.MaxSaltLength > 1024 {
		return fmt.Errorf("MaxSaltLength must be within 1..1024, got %d", c.MaxSaltLength)
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must be non-negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst required when RateLimitPerSecond is set")
	}
	if c.RPC.MaxStreams < 0 {
		return fmt.Errorf("rpc: MaxStreams must be non-negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within 0..1")
	}
	if admin := strings.TrimSpace(c.Genesis.Admin); admin != "" {
		if _, err := crypto.DecodeAddress(admin); err != nil {
			return fmt.Errorf("genesis.Admin: %w", err)
		}
	}
	for i, alloc := range c.Genesis.Allocations {
		if _, _, _, err := alloc.Parse(); err != nil {
			return fmt.Errorf("genesis.Allocations[%d]: %w", i, err)
		}
	}
	return nil
}

// Parse resolves the allocation's token label, recipient and amount. Token
// is either a bech32 contract address or a label hashed with
// crypto.ContractAddress.
func (a Allocation) Parse() (crypto.Address, crypto.Address, *big.Int, error) {
	token, err := ResolveToken(a.Token)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, nil, err
	}
	to, err := crypto.DecodeAddress(a.Address)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, nil, fmt.Errorf("address: %w", err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(a.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return crypto.Address{}, crypto.Address{}, nil, fmt.Errorf("amount %q must be a positive integer", a.Amount)
	}
	return token, to, amount, nil
}

// ResolveToken accepts a bech32 address or a token label.
func ResolveToken(raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("token required")
	}
	if addr, err := crypto.DecodeAddress(trimmed); err == nil {
		return addr, nil
	}
	return crypto.ContractAddress("token:" + strings.ToLower(trimmed)), nil
}
