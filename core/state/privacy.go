package state

import (
	"paylinkchain/crypto"
	"paylinkchain/native/privacy"
)

func privacyLevelKey(account crypto.Address) []byte {
	return namespacedKey(nsPrivacyLevel, account.CanonicalBytes())
}

func privacyHistoryKey(account crypto.Address) []byte {
	return namespacedKey(nsPrivacyHistory, account.CanonicalBytes())
}

func privacyEnabledKey(account crypto.Address) []byte {
	return namespacedKey(nsPrivacyEnabled, account.CanonicalBytes())
}

// PrivacyLevelGet returns the current numeric level for account.
func (m *Manager) PrivacyLevelGet(account crypto.Address) (uint32, bool, error) {
	var level uint32
	ok, err := m.KVGet(privacyLevelKey(account), &level)
	if err != nil || !ok {
		return 0, false, err
	}
	return level, true, nil
}

func (m *Manager) PrivacyLevelPut(account crypto.Address, level uint32) error {
	return m.KVPut(privacyLevelKey(account), level)
}

// PrivacyHistoryGet returns the account's level changes, oldest first. A
// missing record yields an empty slice.
func (m *Manager) PrivacyHistoryGet(account crypto.Address) ([]privacy.Change, error) {
	var history []privacy.Change
	ok, err := m.KVGet(privacyHistoryKey(account), &history)
	if err != nil {
		return nil, err
	}
	if !ok || history == nil {
		return []privacy.Change{}, nil
	}
	return history, nil
}

// PrivacyHistoryAppend adds change at the end of the account's history.
func (m *Manager) PrivacyHistoryAppend(account crypto.Address, change privacy.Change) error {
	history, err := m.PrivacyHistoryGet(account)
	if err != nil {
		return err
	}
	history = append(history, change)
	return m.KVPut(privacyHistoryKey(account), history)
}

// PrivacyEnabledGet returns the boolean privacy flag for account.
func (m *Manager) PrivacyEnabledGet(account crypto.Address) (bool, bool, error) {
	var enabled bool
	ok, err := m.KVGet(privacyEnabledKey(account), &enabled)
	if err != nil || !ok {
		return false, false, err
	}
	return enabled, true, nil
}

func (m *Manager) PrivacyEnabledPut(account crypto.Address, enabled bool) error {
	return m.KVPut(privacyEnabledKey(account), enabled)
}
