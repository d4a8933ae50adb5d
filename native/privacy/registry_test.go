package privacy

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
	levels  map[string]uint32
	history map[string][]Change
	enabled map[string]bool
}

func newMemState() *memState {
	return &memState{
		levels:  make(map[string]uint32),
		history: make(map[string][]Change),
		enabled: make(map[string]bool),
	}
}

func (m *memState) PrivacyLevelGet(a crypto.Address) (uint32, bool, error) {
	v, ok := m.levels[a.String()]
	return v, ok, nil
}

func (m *memState) PrivacyLevelPut(a crypto.Address, level uint32) error {
	m.levels[a.String()] = level
	return nil
}

func (m *memState) PrivacyHistoryGet(a crypto.Address) ([]Change, error) {
	return append([]Change{}, m.history[a.String()]...), nil
}

func (m *memState) PrivacyHistoryAppend(a crypto.Address, c Change) error {
	m.history[a.String()] = append(m.history[a.String()], c)
	return nil
}

func (m *memState) PrivacyEnabledGet(a crypto.Address) (bool, bool, error) {
	v, ok := m.enabled[a.String()]
	return v, ok, nil
}

func (m *memState) PrivacyEnabledPut(a crypto.Address, v bool) error {
	m.enabled[a.String()] = v
	return nil
}

func newRegistry(now *uint64) (*Registry, *events.Recorder) {
	r := NewRegistry()
	rec := &events.Recorder{}
	r.SetState(newMemState())
	r.SetEmitter(rec)
	r.SetNowFunc(func() uint64 { return *now })
	return r, rec
}

func acct(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func TestEnablePrivacyHistory(t *testing.T) {
	now := uint64(100)
	r, rec := newRegistry(&now)
	alice := acct(1)
	auth := common.NewAuth(alice)

	_, ok, err := r.PrivacyStatus(alice)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.EnablePrivacy(auth, alice, 1))
	now = 200
	require.NoError(t, r.EnablePrivacy(auth, alice, 3))
	now = 300
	require.NoError(t, r.EnablePrivacy(auth, alice, 3))

	level, ok, err := r.PrivacyStatus(alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(3), level)

	history, err := r.PrivacyHistory(alice)
	require.NoError(t, err)
	require.Equal(t, []Change{{1, 100}, {3, 200}, {3, 300}}, history)
	require.Len(t, rec.Events(), 3)
	require.Equal(t, EventTypeLevelSet, rec.Events()[0].Type)

	// The boolean flag is untouched by level changes.
	enabled, err := r.GetPrivacy(alice)
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestEnablePrivacyRejects(t *testing.T) {
	now := uint64(1)
	r, _ := newRegistry(&now)
	alice := acct(1)

	err := r.EnablePrivacy(common.NewAuth(acct(2)), alice, 1)
	require.True(t, errors.Is(err, common.ErrUnauthorized))

	err = r.EnablePrivacy(common.NewAuth(alice), alice, MaxLevel+1)
	require.True(t, errors.Is(err, common.ErrInvalidPrivacyLevel))

	history, err := r.PrivacyHistory(alice)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSetPrivacyToggle(t *testing.T) {
	now := uint64(1)
	r, rec := newRegistry(&now)
	alice := acct(1)
	auth := common.NewAuth(alice)

	if err := r.SetPrivacy(auth, alice, false); !errors.Is(err, common.ErrPrivacyAlreadySet) {
		t.Fatalf("expected PrivacyAlreadySet for default false, got %v", err)
	}
	require.NoError(t, r.SetPrivacy(auth, alice, true))
	if err := r.SetPrivacy(auth, alice, true); !errors.Is(err, common.ErrPrivacyAlreadySet) {
		t.Fatalf("expected PrivacyAlreadySet, got %v", err)
	}
	enabled, err := r.GetPrivacy(alice)
	require.NoError(t, err)
	require.True(t, enabled)

	require.NoError(t, r.SetPrivacy(auth, alice, false))
	if err := r.SetPrivacy(common.NewAuth(acct(2)), alice, true); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	require.Len(t, rec.Events(), 2)
	require.Equal(t, "true", rec.Events()[0].Attributes["enabled"])

	_, ok, err := r.PrivacyStatus(alice)
	require.NoError(t, err)
	require.False(t, ok, "toggle must not create a numeric level")
}
