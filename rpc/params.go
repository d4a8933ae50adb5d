package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"paylinkchain/config"
	"paylinkchain/crypto"
	"paylinkchain/native/commitment"
)

// decodeParams unmarshals the single params object of req into dst.
func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected", nil)
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(field, raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, invalidParams(field+" required", nil)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, invalidParams("invalid "+field, err.Error())
	}
	return addr, nil
}

func parseOptionalAddress(field, raw string) (crypto.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return crypto.Address{}, nil
	}
	return parseAddress(field, raw)
}

func parseToken(raw string) (crypto.Address, error) {
	token, err := config.ResolveToken(raw)
	if err != nil {
		return crypto.Address{}, invalidParams("invalid token", err.Error())
	}
	return token, nil
}

// parseAmount accepts a signed decimal string. Range checks are left to the
// contract so callers see the contract's error kind.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams("amount required", nil)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams("amount must be a base-10 integer", raw)
	}
	return amount, nil
}

func decodeHex(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	return hex.DecodeString(trimmed)
}

func parseSalt(raw string) ([]byte, error) {
	salt, err := decodeHex(raw)
	if err != nil {
		return nil, invalidParams("salt must be hex encoded", err.Error())
	}
	return salt, nil
}

func parseCommitment(raw string) (commitment.Hash, error) {
	var out commitment.Hash
	decoded, err := decodeHex(raw)
	if err != nil {
		return out, invalidParams("commitment must be hex encoded", err.Error())
	}
	if len(decoded) != len(out) {
		return out, invalidParams(fmt.Sprintf("commitment must be %d bytes", len(out)), len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
