package state

import (
	"errors"
	"fmt"
	"math"
)

// StateVersion identifies the expected on-disk schema layout. Increment this
// constant whenever breaking changes are made to the stored structure.
const StateVersion uint32 = 1

var (
	stateVersionKey = namespacedKey(nsStateVersion, nil)
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// SetStateVersion records the provided schema version in state.
func (m *Manager) SetStateVersion(version uint32) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion returns the stored schema version and a boolean indicating
// whether the value was present.
func (m *Manager) StateVersion() (uint32, bool, error) {
	if m == nil {
		return 0, false, fmt.Errorf("state: manager unavailable")
	}
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// EnsureStateVersion stamps a fresh store with StateVersion and verifies an
// existing one matches. When allowMigrate is true, mismatches are tolerated so
// operators can perform manual migrations. The stamp is committed immediately.
func EnsureStateVersion(m *Manager, allowMigrate bool) error {
	if m == nil {
		return fmt.Errorf("state: manager must not be nil")
	}
	version, ok, err := m.StateVersion()
	if err != nil {
		return err
	}
	if !ok {
		if err := m.SetStateVersion(StateVersion); err != nil {
			return err
		}
		return m.Commit()
	}
	if version == StateVersion || allowMigrate {
		return nil
	}
	return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
}

var genesisKey = namespacedKey(nsGenesis, nil)

// GenesisApplied reports whether the genesis allocations have been written.
func (m *Manager) GenesisApplied() (bool, error) {
	return m.KVGet(genesisKey, nil)
}

// MarkGenesisApplied records that genesis ran.
func (m *Manager) MarkGenesisApplied() error {
	return m.KVPut(genesisKey, true)
}
