package state

import (
	"fmt"

	"paylinkchain/native/escrow"
)

func escrowEntryKey(commitment [32]byte) []byte {
	return namespacedKey(nsEscrowEntry, commitment[:])
}

var escrowCounterKey = namespacedKey(nsEscrowCounter, nil)

// EscrowPut writes the entry for commitment.
func (m *Manager) EscrowPut(commitment [32]byte, entry *escrow.Entry) error {
	if entry == nil {
		return fmt.Errorf("state: nil escrow entry")
	}
	return m.KVPut(escrowEntryKey(commitment), entry)
}

// EscrowGet loads the entry for commitment. The boolean is false when the
// commitment has never been stored.
func (m *Manager) EscrowGet(commitment [32]byte) (*escrow.Entry, bool, error) {
	entry := new(escrow.Entry)
	ok, err := m.KVGet(escrowEntryKey(commitment), entry)
	if err != nil || !ok {
		return nil, false, err
	}
	return entry, true, nil
}

// EscrowHas reports whether commitment has a stored entry.
func (m *Manager) EscrowHas(commitment [32]byte) (bool, error) {
	return m.KVGet(escrowEntryKey(commitment), nil)
}

// EscrowCounter returns the number of escrows ever created.
func (m *Manager) EscrowCounter() (uint64, error) {
	var count uint64
	if _, err := m.KVGet(escrowCounterKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// EscrowCounterIncrement bumps the counter and returns the new value.
func (m *Manager) EscrowCounterIncrement() (uint64, error) {
	count, err := m.EscrowCounter()
	if err != nil {
		return 0, err
	}
	count++
	if err := m.KVPut(escrowCounterKey, count); err != nil {
		return 0, err
	}
	return count, nil
}
