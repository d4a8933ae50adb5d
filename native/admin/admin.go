// Package admin implements the contract control plane: one-time
// initialisation, the pause switch, admin rotation and code upgrades.
package admin

import (
	"encoding/hex"
	"errors"
	"strconv"

	"paylinkchain/core/events"
	"paylinkchain/core/types"
	"paylinkchain/crypto"
	"paylinkchain/native/common"
)

const (
	EventTypeInitialized = "admin.initialized"
	EventTypePaused      = "admin.paused"
	EventTypeChanged     = "admin.changed"
	EventTypeUpgraded    = "admin.upgraded"
)

var errNilState = errors.New("admin: state not configured")

type controlState interface {
	AdminGet() (crypto.Address, bool, error)
	AdminPut(addr crypto.Address) error
	PausedGet() (bool, error)
	PausedPut(paused bool) error
	ContractCodeGet() (Code, bool, error)
	ContractCodePut(code Code) error
}

// Authorize is the single gate for privileged operations. It fails when no
// admin is stored, when caller is not the stored admin, or when caller did not
// sign the call.
func Authorize(stored crypto.Address, ok bool, caller crypto.Address, auth common.Auth) error {
	if !ok || stored.IsZero() {
		return common.ErrUnauthorized
	}
	if !caller.Equal(stored) {
		return common.ErrUnauthorized
	}
	return common.RequireAuth(auth, caller)
}

// Controller applies administrative operations against contract state.
type Controller struct {
	state   controlState
	emitter events.Emitter
}

func NewController() *Controller {
	return &Controller{emitter: events.NoopEmitter{}}
}

func (c *Controller) SetState(state controlState) { c.state = state }

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (c *Controller) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

func (c *Controller) emit(kind string, attrs map[string]string) {
	if c.emitter != nil {
		c.emitter.Emit(events.Wrapped{Evt: &types.Event{Type: kind, Attributes: attrs}})
	}
}

func (c *Controller) ready() error {
	if c == nil || c.state == nil {
		return common.Internal("admin", errNilState)
	}
	return nil
}

func (c *Controller) authorize(caller crypto.Address, auth common.Auth) error {
	stored, ok, err := c.state.AdminGet()
	if err != nil {
		return common.Internal("admin.get", err)
	}
	return Authorize(stored, ok, caller, auth)
}

// Initialize records the first admin. It succeeds exactly once. The deploying
// transaction is trusted, so no signature from admin is required.
func (c *Controller) Initialize(admin crypto.Address) error {
	if err := c.ready(); err != nil {
		return err
	}
	_, ok, err := c.state.AdminGet()
	if err != nil {
		return common.Internal("admin.get", err)
	}
	if ok {
		return common.ErrAlreadyInitialized
	}
	if admin.IsZero() {
		return common.NewError(common.KindUnauthorized, "admin")
	}
	if err := c.state.AdminPut(admin); err != nil {
		return common.Internal("admin.put", err)
	}
	c.emit(EventTypeInitialized, map[string]string{"admin": admin.String()})
	return nil
}

// SetPaused flips the pause switch. Setting the current value again is a
// no-op that still succeeds.
func (c *Controller) SetPaused(auth common.Auth, caller crypto.Address, paused bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.authorize(caller, auth); err != nil {
		return err
	}
	if err := c.state.PausedPut(paused); err != nil {
		return common.Internal("admin.paused", err)
	}
	c.emit(EventTypePaused, map[string]string{
		"admin":  caller.String(),
		"paused": strconv.FormatBool(paused),
	})
	return nil
}

// SetAdmin hands control to newAdmin.
func (c *Controller) SetAdmin(auth common.Auth, caller, newAdmin crypto.Address) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.authorize(caller, auth); err != nil {
		return err
	}
	if newAdmin.IsZero() {
		return common.NewError(common.KindUnauthorized, "new_admin")
	}
	if err := c.state.AdminPut(newAdmin); err != nil {
		return common.Internal("admin.put", err)
	}
	c.emit(EventTypeChanged, map[string]string{
		"previous": caller.String(),
		"admin":    newAdmin.String(),
	})
	return nil
}

// Upgrade replaces the code pointer with codeHash and bumps the version.
func (c *Controller) Upgrade(auth common.Auth, caller crypto.Address, codeHash [32]byte) (Code, error) {
	if err := c.ready(); err != nil {
		return Code{}, err
	}
	if err := c.authorize(caller, auth); err != nil {
		return Code{}, err
	}
	if codeHash == ([32]byte{}) {
		return Code{}, common.NewError(common.KindInvalidCodeHash, "code_hash")
	}
	current, _, err := c.state.ContractCodeGet()
	if err != nil {
		return Code{}, common.Internal("admin.code", err)
	}
	next := Code{Hash: codeHash, Version: current.Version + 1}
	if err := c.state.ContractCodePut(next); err != nil {
		return Code{}, common.Internal("admin.code", err)
	}
	c.emit(EventTypeUpgraded, map[string]string{
		"admin":    caller.String(),
		"codeHash": hex.EncodeToString(codeHash[:]),
		"version":  strconv.FormatUint(next.Version, 10),
	})
	return next, nil
}

// Admin returns the stored admin; ok is false before initialisation.
func (c *Controller) Admin() (crypto.Address, bool, error) {
	if err := c.ready(); err != nil {
		return crypto.Address{}, false, err
	}
	addr, ok, err := c.state.AdminGet()
	if err != nil {
		return crypto.Address{}, false, common.Internal("admin.get", err)
	}
	return addr, ok, nil
}

func (c *Controller) IsPaused() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	paused, err := c.state.PausedGet()
	if err != nil {
		return false, common.Internal("admin.paused", err)
	}
	return paused, nil
}

// Code returns the current code pointer; the zero value before any upgrade.
func (c *Controller) Code() (Code, error) {
	if err := c.ready(); err != nil {
		return Code{}, err
	}
	code, _, err := c.state.ContractCodeGet()
	if err != nil {
		return Code{}, common.Internal("admin.code", err)
	}
	return code, nil
}
