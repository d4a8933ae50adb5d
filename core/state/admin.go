package state

import (
	"paylinkchain/crypto"
	"paylinkchain/native/admin"
)

var (
	adminAddressKey = namespacedKey(nsAdminAddress, nil)
	adminPausedKey  = namespacedKey(nsAdminPaused, nil)
	adminCodeKey    = namespacedKey(nsAdminCode, nil)
)

// AdminGet returns the stored admin. The boolean is false before
// initialisation.
func (m *Manager) AdminGet() (crypto.Address, bool, error) {
	var addr crypto.Address
	ok, err := m.KVGet(adminAddressKey, &addr)
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	return addr, true, nil
}

func (m *Manager) AdminPut(addr crypto.Address) error {
	return m.KVPut(adminAddressKey, addr)
}

// PausedGet returns the pause flag; an unset flag reads as false.
func (m *Manager) PausedGet() (bool, error) {
	var paused bool
	if _, err := m.KVGet(adminPausedKey, &paused); err != nil {
		return false, err
	}
	return paused, nil
}

func (m *Manager) PausedPut(paused bool) error {
	return m.KVPut(adminPausedKey, paused)
}

// ContractCodeGet returns the current code pointer.
func (m *Manager) ContractCodeGet() (admin.Code, bool, error) {
	var code admin.Code
	ok, err := m.KVGet(adminCodeKey, &code)
	if err != nil || !ok {
		return admin.Code{}, false, err
	}
	return code, true, nil
}

func (m *Manager) ContractCodePut(code admin.Code) error {
	return m.KVPut(adminCodeKey, code)
}
