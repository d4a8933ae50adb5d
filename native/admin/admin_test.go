package admin

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"paylinkchain/core/events"
	"paylinkchain/crypto"
	"paylinkchain/native/common"
)

type memState struct {
	admin    crypto.Address
	hasAdmin bool
	paused   bool
	code     Code
	hasCode  bool
}

func (m *memState) AdminGet() (crypto.Address, bool, error) { return m.admin, m.hasAdmin, nil }
func (m *memState) AdminPut(a crypto.Address) error {
	m.admin, m.hasAdmin = a, true
	return nil
}
func (m *memState) PausedGet() (bool, error) { return m.paused, nil }
func (m *memState) PausedPut(p bool) error {
	m.paused = p
	return nil
}
func (m *memState) ContractCodeGet() (Code, bool, error) { return m.code, m.hasCode, nil }
func (m *memState) ContractCodePut(c Code) error {
	m.code, m.hasCode = c, true
	return nil
}

func addr(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func newController() (*Controller, *memState, *events.Recorder) {
	st := &memState{}
	rec := &events.Recorder{}
	c := NewController()
	c.SetState(st)
	c.SetEmitter(rec)
	return c, st, rec
}

func TestAuthorizeMatrix(t *testing.T) {
	admin := addr(1)
	other := addr(2)
	cases := []struct {
		name   string
		stored crypto.Address
		ok     bool
		caller crypto.Address
		auth   common.Auth
		allow  bool
	}{
		{"uninitialised", crypto.Address{}, false, admin, common.NewAuth(admin), false},
		{"wrong caller", admin, true, other, common.NewAuth(other), false},
		{"unsigned", admin, true, admin, common.NewAuth(other), false},
		{"admin signed", admin, true, admin, common.NewAuth(admin), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.stored, tc.ok, tc.caller, tc.auth)
			if tc.allow && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allow && !errors.Is(err, common.ErrUnauthorized) {
				t.Fatalf("expected Unauthorized, got %v", err)
			}
		})
	}
}

func TestInitializeOnce(t *testing.T) {
	c, _, rec := newController()
	require.NoError(t, c.Initialize(addr(1)))
	if err := c.Initialize(addr(2)); !errors.Is(err, common.ErrAlreadyInitialized) {
		t.Fatalf("expected AlreadyInitialized, got %v", err)
	}
	got, ok, err := c.Admin()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(addr(1)))
	require.Len(t, rec.Events(), 1)
}

func TestGatedOperationsBeforeInitialize(t *testing.T) {
	c, _, _ := newController()
	auth := common.NewAuth(addr(1))
	if err := c.SetPaused(auth, addr(1), true); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if _, err := c.Upgrade(auth, addr(1), [32]byte{1}); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized for upgrade without admin, got %v", err)
	}
}

func TestSetPausedIdempotent(t *testing.T) {
	c, st, _ := newController()
	admin := addr(1)
	require.NoError(t, c.Initialize(admin))
	auth := common.NewAuth(admin)

	require.NoError(t, c.SetPaused(auth, admin, true))
	require.NoError(t, c.SetPaused(auth, admin, true))
	require.True(t, st.paused)
	paused, err := c.IsPaused()
	require.NoError(t, err)
	require.True(t, paused)

	if err := c.SetPaused(common.NewAuth(addr(2)), addr(2), false); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	require.True(t, st.paused)
}

func TestSetAdminRotation(t *testing.T) {
	c, _, _ := newController()
	oldAdmin, newAdmin := addr(1), addr(2)
	require.NoError(t, c.Initialize(oldAdmin))
	require.NoError(t, c.SetAdmin(common.NewAuth(oldAdmin), oldAdmin, newAdmin))

	if err := c.SetPaused(common.NewAuth(oldAdmin), oldAdmin, true); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("previous admin must lose control, got %v", err)
	}
	require.NoError(t, c.SetPaused(common.NewAuth(newAdmin), newAdmin, true))
}

func TestUpgrade(t *testing.T) {
	c, _, rec := newController()
	admin := addr(1)
	require.NoError(t, c.Initialize(admin))
	auth := common.NewAuth(admin)

	if _, err := c.Upgrade(auth, admin, [32]byte{}); !errors.Is(err, common.ErrInvalidCodeHash) {
		t.Fatalf("expected InvalidCodeHash, got %v", err)
	}
	code, err := c.Upgrade(auth, admin, [32]byte{0xab})
	require.NoError(t, err)
	require.Equal(t, uint64(1), code.Version)
	code, err = c.Upgrade(auth, admin, [32]byte{0xcd})
	require.NoError(t, err)
	require.Equal(t, uint64(2), code.Version)

	current, err := c.Code()
	require.NoError(t, err)
	require.Equal(t, byte(0xcd), current.Hash[0])

	last := rec.Events()[len(rec.Events())-1]
	require.Equal(t, EventTypeUpgraded, last.Type)
	require.Equal(t, "2", last.Attributes["version"])
}
