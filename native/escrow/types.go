package escrow

import (
	"fmt"
	"math/big"

	"paylinkchain/crypto"
)

// Status represents the lifecycle states of a commitment-keyed escrow.
type Status uint8

const (
	StatusPending Status = iota
	StatusSpent
	StatusExpired
)

// StatusNotFound is reported by CommitmentState for unknown commitments. It is
// never stored.
const StatusNotFound Status = 0xff

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSpent:
		return "spent"
	case StatusExpired:
		return "expired"
	case StatusNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether the status value may be persisted.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSpent, StatusExpired:
		return true
	default:
		return false
	}
}

// Entry is the persisted record for one commitment. ExpiresAt of zero means
// the entry never expires.
type Entry struct {
	Token     crypto.Address
	Amount    *big.Int
	Owner     crypto.Address
	Status    Status
	CreatedAt uint64
	ExpiresAt uint64
}

// Clone returns a deep copy of the entry so callers can safely mutate the copy
// without affecting the stored instance.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// ExpiredAt reports whether the entry's deadline has passed at now.
func (e *Entry) ExpiredAt(now uint64) bool {
	return e != nil && e.ExpiresAt > 0 && now >= e.ExpiresAt
}

// SanitizeEntry validates a record before it is written, returning a clone.
func SanitizeEntry(e *Entry) (*Entry, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow entry")
	}
	clone := e.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow amount must be non-negative")
	}
	if clone.Owner.IsZero() {
		return nil, fmt.Errorf("escrow owner required")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid escrow status: %d", clone.Status)
	}
	return clone, nil
}

// View is the privacy-aware projection returned by EscrowDetails. Amount and
// Owner are nil when Hidden is set.
type View struct {
	Commitment [32]byte
	Token      crypto.Address
	Amount     *big.Int
	Owner      *crypto.Address
	Status     Status
	CreatedAt  uint64
	ExpiresAt  uint64
	Expired    bool
	Hidden     bool
}

// saturatingAdd returns a+b clamped to the uint64 range.
func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}
