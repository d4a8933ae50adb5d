// Package token provides the fungible token interface the escrow engine moves
// value through, and a native ledger implementation backed by contract state.
package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"paylinkchain/core/events"
	"paylinkchain/core/types"
	"paylinkchain/crypto"
)

// EventTypeTransfer is emitted for every balance movement.
const (
	EventTypeTransfer = "token.transfer"
	EventTypeMint     = "token.mint"
)

var (
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	ErrOverflow            = errors.New("token: balance overflow")
	errNilState            = errors.New("token: state not configured")
)

// Transferer moves amount of token from one account to another. Failures
// abort the calling operation.
type Transferer interface {
	Transfer(token, from, to crypto.Address, amount *big.Int) error
}

// PrivateTransferer moves value without publishing the parties or amount.
// Callers use it when an account involved has privacy enabled.
type PrivateTransferer interface {
	Transferer
	TransferPrivate(token, from, to crypto.Address, amount *big.Int) error
}

type ledgerState interface {
	TokenBalanceGet(token, account crypto.Address) (*uint256.Int, bool, error)
	TokenBalancePut(token, account crypto.Address, balance *uint256.Int) error
}

// Ledger keeps uint256 balances per (token, account) in contract state.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger creates a ledger over state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func toU256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrOverflow
	}
	return value, nil
}

// BalanceOf returns account's balance of token.
func (l *Ledger) BalanceOf(token, account crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	balance, _, err := l.state.TokenBalanceGet(token, account)
	if err != nil {
		return nil, err
	}
	return balance.ToBig(), nil
}

// Mint credits account with amount of token. Used for genesis allocations and
// operator top-ups.
func (l *Ledger) Mint(token, account crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	value, err := toU256(amount)
	if err != nil {
		return err
	}
	balance, _, err := l.state.TokenBalanceGet(token, account)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(balance, value)
	if overflow {
		return ErrOverflow
	}
	if err := l.state.TokenBalancePut(token, account, next); err != nil {
		return err
	}
	l.emit(EventTypeMint, token, crypto.Address{}, account, amount)
	return nil
}

// Transfer implements Transferer.
func (l *Ledger) Transfer(token, from, to crypto.Address, amount *big.Int) error {
	moved, err := l.move(token, from, to, amount)
	if err != nil || !moved {
		return err
	}
	l.emit(EventTypeTransfer, token, from, to, amount)
	return nil
}

// TransferPrivate implements PrivateTransferer. Balances move exactly as in
// Transfer; the emitted event names only the token.
func (l *Ledger) TransferPrivate(token, from, to crypto.Address, amount *big.Int) error {
	moved, err := l.move(token, from, to, amount)
	if err != nil || !moved || l.emitter == nil {
		return err
	}
	l.emitter.Emit(events.Wrapped{Evt: &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"token":   token.String(),
		"private": "true",
	}}})
	return nil
}

func (l *Ledger) move(token, from, to crypto.Address, amount *big.Int) (bool, error) {
	if l == nil || l.state == nil {
		return false, errNilState
	}
	value, err := toU256(amount)
	if err != nil {
		return false, err
	}
	fromBalance, _, err := l.state.TokenBalanceGet(token, from)
	if err != nil {
		return false, err
	}
	if fromBalance.Lt(value) {
		return false, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance.Dec(), value.Dec())
	}
	if from.Equal(to) {
		return false, nil
	}
	toBalance, _, err := l.state.TokenBalanceGet(token, to)
	if err != nil {
		return false, err
	}
	nextTo, overflow := new(uint256.Int).AddOverflow(toBalance, value)
	if overflow {
		return false, ErrOverflow
	}
	nextFrom := new(uint256.Int).Sub(fromBalance, value)
	if err := l.state.TokenBalancePut(token, from, nextFrom); err != nil {
		return false, err
	}
	if err := l.state.TokenBalancePut(token, to, nextTo); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) emit(kind string, token, from, to crypto.Address, amount *big.Int) {
	if l.emitter == nil {
		return
	}
	attrs := map[string]string{
		"token":  token.String(),
		"to":     to.String(),
		"amount": amount.String(),
	}
	if !from.IsZero() {
		attrs["from"] = from.String()
	}
	l.emitter.Emit(events.Wrapped{Evt: &types.Event{Type: kind, Attributes: attrs}})
}
