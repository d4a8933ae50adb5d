// Package privacy tracks per-account privacy preferences: a numeric level with
// an append-only change history, and an independent boolean flag consulted by
// escrow views.
package privacy

import (
	"errors"
	"strconv"
	"time"

	"paylinkchain/core/events"
	"paylinkchain/core/types"
	"paylinkchain/crypto"
	"paylinkchain/native/common"
)

const (
	EventTypeLevelSet = "privacy.level_set"
	EventTypeToggled  = "privacy.toggled"
)

var errNilState = errors.New("privacy registry: state not configured")

type registryState interface {
	PrivacyLevelGet(account crypto.Address) (uint32, bool, error)
	PrivacyLevelPut(account crypto.Address, level uint32) error
	PrivacyHistoryGet(account crypto.Address) ([]Change, error)
	PrivacyHistoryAppend(account crypto.Address, change Change) error
	PrivacyEnabledGet(account crypto.Address) (bool, bool, error)
	PrivacyEnabledPut(account crypto.Address, enabled bool) error
}

// Registry applies privacy updates against contract state.
type Registry struct {
	state   registryState
	emitter events.Emitter
	nowFn   func() uint64
}

func NewRegistry() *Registry {
	return &Registry{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

func (r *Registry) SetState(state registryState) { r.state = state }

// SetNowFunc overrides the ledger clock.
func (r *Registry) SetNowFunc(now func() uint64) {
	if now == nil {
		r.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	r.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) emit(evt *types.Event) {
	if r.emitter != nil && evt != nil {
		r.emitter.Emit(events.Wrapped{Evt: evt})
	}
}

func (r *Registry) ready() error {
	if r == nil || r.state == nil {
		return common.Internal("privacy", errNilState)
	}
	return nil
}

// EnablePrivacy sets account's numeric level and records the change.
func (r *Registry) EnablePrivacy(auth common.Auth, account crypto.Address, level uint32) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := common.RequireAuth(auth, account); err != nil {
		return err
	}
	if level > MaxLevel {
		return common.NewError(common.KindInvalidPrivacyLevel, "level")
	}
	now := r.nowFn()
	if err := r.state.PrivacyLevelPut(account, level); err != nil {
		return common.Internal("privacy.level", err)
	}
	if err := r.state.PrivacyHistoryAppend(account, Change{Level: level, Timestamp: now}); err != nil {
		return common.Internal("privacy.history", err)
	}
	r.emit(&types.Event{Type: EventTypeLevelSet, Attributes: map[string]string{
		"account":   account.String(),
		"level":     strconv.FormatUint(uint64(level), 10),
		"timestamp": strconv.FormatUint(now, 10),
	}})
	return nil
}

// SetPrivacy toggles the boolean flag. Writing the current value is rejected
// with PrivacyAlreadySet; an account that never set the flag reads as false.
func (r *Registry) SetPrivacy(auth common.Auth, owner crypto.Address, enabled bool) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := common.RequireAuth(auth, owner); err != nil {
		return err
	}
	current, _, err := r.state.PrivacyEnabledGet(owner)
	if err != nil {
		return common.Internal("privacy.enabled", err)
	}
	if current == enabled {
		return common.ErrPrivacyAlreadySet
	}
	if err := r.state.PrivacyEnabledPut(owner, enabled); err != nil {
		return common.Internal("privacy.enabled", err)
	}
	r.emit(&types.Event{Type: EventTypeToggled, Attributes: map[string]string{
		"owner":   owner.String(),
		"enabled": strconv.FormatBool(enabled),
	}})
	return nil
}

// GetPrivacy returns the boolean flag.
func (r *Registry) GetPrivacy(owner crypto.Address) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	enabled, _, err := r.state.PrivacyEnabledGet(owner)
	if err != nil {
		return false, common.Internal("privacy.enabled", err)
	}
	return enabled, nil
}

// PrivacyStatus returns the current level; ok is false when no level was
// ever set.
func (r *Registry) PrivacyStatus(account crypto.Address) (uint32, bool, error) {
	if err := r.ready(); err != nil {
		return 0, false, err
	}
	level, ok, err := r.state.PrivacyLevelGet(account)
	if err != nil {
		return 0, false, common.Internal("privacy.level", err)
	}
	return level, ok, nil
}

// PrivacyHistory returns every level change, oldest first.
func (r *Registry) PrivacyHistory(account crypto.Address) ([]Change, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	history, err := r.state.PrivacyHistoryGet(account)
	if err != nil {
		return nil, common.Internal("privacy.history", err)
	}
	return history, nil
}
