// Package commitment binds an owner, an amount and a secret salt into a
// 32-byte digest used as the escrow lookup key.
//
// The digest is SHA-256(owner ‖ amount ‖ salt) where owner is the address's
// canonical encoding and amount is a 16-byte big-endian two's complement
// integer. The construction is binding but not hiding: an adversary who can
// enumerate plausible (owner, amount, salt) tuples can recover them, so salts
// must carry real entropy.
package commitment

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"paylinkchain/crypto"
	"paylinkchain/native/common"
)

const (
	// MaxSaltLength is the hard ceiling on salt size.
	MaxSaltLength = 1024
	// AmountLength is the width of the encoded amount.
	AmountLength = 16
)

// Hash is a commitment digest.
type Hash [32]byte

var (
	maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minAmount = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	errSaltLimit = errors.New("commitment: salt limit must be within 1..1024")
)

// MaxAmount returns the largest encodable amount (2^127 - 1).
func MaxAmount() *big.Int { return new(big.Int).Set(maxAmount) }

// Scheme computes commitments under a fixed salt limit. The same limit governs
// creation and verification.
type Scheme struct {
	maxSalt int
}

// NewScheme returns a scheme with the given salt limit. Zero selects the
// default of MaxSaltLength.
func NewScheme(maxSalt int) (*Scheme, error) {
	if maxSalt == 0 {
		maxSalt = MaxSaltLength
	}
	if maxSalt < 1 || maxSalt > MaxSaltLength {
		return nil, fmt.Errorf("%w: got %d", errSaltLimit, maxSalt)
	}
	return &Scheme{maxSalt: maxSalt}, nil
}

// Default is the scheme with the full 1024 byte salt allowance.
var Default = &Scheme{maxSalt: MaxSaltLength}

// MaxSalt reports the configured salt limit.
func (s *Scheme) MaxSalt() int {
	if s == nil || s.maxSalt == 0 {
		return MaxSaltLength
	}
	return s.maxSalt
}

// EncodeAmount renders amount as 16-byte big-endian two's complement. Values
// outside the signed 128-bit range are rejected.
func EncodeAmount(amount *big.Int) ([AmountLength]byte, error) {
	var out [AmountLength]byte
	if amount == nil {
		return out, common.NewError(common.KindInvalidAmount, "amount")
	}
	if amount.Cmp(maxAmount) > 0 || amount.Cmp(minAmount) < 0 {
		return out, common.NewError(common.KindInvalidAmount, "amount")
	}
	if amount.Sign() >= 0 {
		amount.FillBytes(out[:])
		return out, nil
	}
	// 2^128 + amount yields the two's complement bit pattern.
	wrapped := new(big.Int).Lsh(big.NewInt(1), 128)
	wrapped.Add(wrapped, amount)
	wrapped.FillBytes(out[:])
	return out, nil
}

// Create derives the commitment for (owner, amount, salt). Negative amounts and
// oversize salts are rejected; zero amounts and empty salts are accepted.
func (s *Scheme) Create(owner crypto.Address, amount *big.Int, salt []byte) (Hash, error) {
	if amount == nil || amount.Sign() < 0 {
		return Hash{}, common.NewError(common.KindInvalidAmount, "amount")
	}
	if len(salt) > s.MaxSalt() {
		return Hash{}, common.NewError(common.KindInvalidSalt, "salt")
	}
	encoded, err := EncodeAmount(amount)
	if err != nil {
		return Hash{}, err
	}
	h := sha256.New()
	h.Write(owner.CanonicalBytes())
	h.Write(encoded[:])
	h.Write(salt)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Verify recomputes the commitment and compares in constant time. Any input
// Create would reject yields false.
func (s *Scheme) Verify(commitment Hash, owner crypto.Address, amount *big.Int, salt []byte) bool {
	computed, err := s.Create(owner, amount, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(computed[:], commitment[:]) == 1
}

// Create uses the default scheme.
func Create(owner crypto.Address, amount *big.Int, salt []byte) (Hash, error) {
	return Default.Create(owner, amount, salt)
}

// Verify uses the default scheme.
func Verify(commitment Hash, owner crypto.Address, amount *big.Int, salt []byte) bool {
	return Default.Verify(commitment, owner, amount, salt)
}
