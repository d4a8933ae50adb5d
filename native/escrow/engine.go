package escrow

import (
	"errors"
	"math/big"
	"time"

	"paylinkchain/core/events"
	"paylinkchain/core/types"
	"paylinkchain/crypto"
	"paylinkchain/native/commitment"
	"paylinkchain/native/common"
	"paylinkchain/native/token"
)

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNilTokens = errors.New("escrow engine: token transferer not configured")
)

type engineState interface {
	EscrowPut(commitment [32]byte, entry *Entry) error
	EscrowGet(commitment [32]byte) (*Entry, bool, error)
	EscrowHas(commitment [32]byte) (bool, error)
	EscrowCounter() (uint64, error)
	EscrowCounterIncrement() (uint64, error)
	PausedGet() (bool, error)
	PrivacyEnabledGet(account crypto.Address) (bool, bool, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine runs the commitment-keyed escrow state machine. Funds move between
// depositors and the custody account through the configured token
// transferer; every write goes through the state backend so the caller can
// commit or discard them as a unit.
type Engine struct {
	state   engineState
	tokens  token.Transferer
	scheme  *commitment.Scheme
	custody crypto.Address
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates an escrow engine holding funds at custody. Callers can
// override the emitter via SetEmitter.
func NewEngine(custody crypto.Address) *Engine {
	return &Engine{
		custody: custody,
		scheme:  commitment.Default,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the token contract interface.
func (e *Engine) SetTransferer(t token.Transferer) { e.tokens = t }

// SetScheme overrides the commitment scheme, e.g. to tighten the salt limit.
func (e *Engine) SetScheme(s *commitment.Scheme) {
	if s == nil {
		s = commitment.Default
	}
	e.scheme = s
}

// SetNowFunc overrides the ledger clock. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Custody returns the account holding escrowed funds.
func (e *Engine) Custody() crypto.Address { return e.custody }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return common.Internal("escrow", errNilState)
	}
	if e.tokens == nil {
		return common.Internal("escrow", errNilTokens)
	}
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return common.NewError(common.KindInvalidAmount, "amount")
	}
	return nil
}

// Deposit locks amount of token from owner under the commitment derived from
// (owner, amount, salt). A zero timeout creates an entry that never expires.
func (e *Engine) Deposit(auth common.Auth, tokenAddr crypto.Address, amount *big.Int, owner crypto.Address, salt []byte, timeout uint64) (commitment.Hash, error) {
	if err := e.ready(); err != nil {
		return commitment.Hash{}, err
	}
	if err := common.Guard(e.state); err != nil {
		return commitment.Hash{}, err
	}
	if err := common.RequireAuth(auth, owner); err != nil {
		return commitment.Hash{}, err
	}
	if err := validAmount(amount); err != nil {
		return commitment.Hash{}, err
	}
	c, err := e.scheme.Create(owner, amount, salt)
	if err != nil {
		return commitment.Hash{}, err
	}
	if err := e.open(c, owner, tokenAddr, amount, timeout); err != nil {
		return commitment.Hash{}, err
	}
	return c, nil
}

// DepositWithCommitment locks funds under a commitment computed off-chain. The
// depositor is recorded as owner and is the only account able to refund.
func (e *Engine) DepositWithCommitment(auth common.Auth, from, tokenAddr crypto.Address, amount *big.Int, c commitment.Hash, timeout uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.state); err != nil {
		return err
	}
	if err := common.RequireAuth(auth, from); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if _, err := commitment.EncodeAmount(amount); err != nil {
		return err
	}
	return e.open(c, from, tokenAddr, amount, timeout)
}

func (e *Engine) open(c commitment.Hash, owner, tokenAddr crypto.Address, amount *big.Int, timeout uint64) error {
	exists, err := e.state.EscrowHas(c)
	if err != nil {
		return common.Internal("escrow.has", err)
	}
	if exists {
		return common.ErrEscrowAlreadyExists
	}
	private, err := e.private(owner)
	if err != nil {
		return err
	}
	if err := e.transfer(private, tokenAddr, owner, e.custody, amount); err != nil {
		return common.Internal("token.transfer", err)
	}
	now := e.now()
	entry := &Entry{
		Token:     tokenAddr,
		Amount:    new(big.Int).Set(amount),
		Owner:     owner,
		Status:    StatusPending,
		CreatedAt: now,
	}
	if timeout > 0 {
		entry.ExpiresAt = saturatingAdd(now, timeout)
	}
	if err := e.state.EscrowPut(c, entry); err != nil {
		return common.Internal("escrow.put", err)
	}
	if _, err := e.state.EscrowCounterIncrement(); err != nil {
		return common.Internal("escrow.counter", err)
	}
	e.emit(NewDepositedEvent(c, entry, private))
	return nil
}

// Withdraw releases the escrow matching (to, amount, salt) to to. Only the
// recomputed commitment is consulted, so a wrong salt surfaces as
// EscrowNotFound and leaves the real entry untouched.
func (e *Engine) Withdraw(auth common.Auth, to crypto.Address, amount *big.Int, salt []byte) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if err := common.Guard(e.state); err != nil {
		return false, err
	}
	if err := validAmount(amount); err != nil {
		return false, err
	}
	if err := common.RequireAuth(auth, to); err != nil {
		return false, err
	}
	c, err := e.scheme.Create(to, amount, salt)
	if err != nil {
		return false, err
	}
	entry, ok, err := e.state.EscrowGet(c)
	if err != nil {
		return false, common.Internal("escrow.get", err)
	}
	if !ok {
		return false, common.ErrEscrowNotFound
	}
	if entry.Status != StatusPending {
		return false, common.ErrEscrowNotPending
	}
	if entry.ExpiredAt(e.now()) {
		return false, common.ErrEscrowExpired
	}
	if entry.Amount == nil || entry.Amount.Cmp(amount) != 0 {
		return false, common.ErrInvalidCommitment
	}
	private, err := e.private(entry.Owner, to)
	if err != nil {
		return false, err
	}
	entry.Status = StatusSpent
	if err := e.state.EscrowPut(c, entry); err != nil {
		return false, common.Internal("escrow.put", err)
	}
	if err := e.transfer(private, entry.Token, e.custody, to, entry.Amount); err != nil {
		return false, common.Internal("token.transfer", err)
	}
	e.emit(NewWithdrawnEvent(c, entry, to, private))
	return true, nil
}

// Refund returns an expired, unclaimed escrow to its owner and marks it
// Expired.
func (e *Engine) Refund(auth common.Auth, c commitment.Hash, caller crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.state); err != nil {
		return err
	}
	if err := common.RequireAuth(auth, caller); err != nil {
		return err
	}
	entry, ok, err := e.state.EscrowGet(c)
	if err != nil {
		return common.Internal("escrow.get", err)
	}
	if !ok {
		return common.ErrEscrowNotFound
	}
	if entry.Status != StatusPending {
		return common.ErrEscrowNotPending
	}
	if !entry.ExpiredAt(e.now()) {
		return common.ErrEscrowNotExpired
	}
	if !caller.Equal(entry.Owner) {
		return common.ErrInvalidOwner
	}
	private, err := e.private(entry.Owner)
	if err != nil {
		return err
	}
	entry.Status = StatusExpired
	if err := e.state.EscrowPut(c, entry); err != nil {
		return common.Internal("escrow.put", err)
	}
	if err := e.transfer(private, entry.Token, e.custody, entry.Owner, entry.Amount); err != nil {
		return common.Internal("token.transfer", err)
	}
	e.emit(NewRefundedEvent(c, entry, private))
	return nil
}

// private reports whether any of the accounts has privacy enabled.
func (e *Engine) private(accounts ...crypto.Address) (bool, error) {
	for _, account := range accounts {
		enabled, _, err := e.state.PrivacyEnabledGet(account)
		if err != nil {
			return false, common.Internal("privacy.get", err)
		}
		if enabled {
			return true, nil
		}
	}
	return false, nil
}

// transfer keeps parties and amounts out of the token event stream when the
// escrow is private and the token contract supports it.
func (e *Engine) transfer(private bool, tokenAddr, from, to crypto.Address, amount *big.Int) error {
	if private {
		if pt, ok := e.tokens.(token.PrivateTransferer); ok {
			return pt.TransferPrivate(tokenAddr, from, to, amount)
		}
	}
	return e.tokens.Transfer(tokenAddr, from, to, amount)
}

// CommitmentState reports the stored status, or StatusNotFound.
func (e *Engine) CommitmentState(c commitment.Hash) (Status, error) {
	if e == nil || e.state == nil {
		return StatusNotFound, common.Internal("escrow", errNilState)
	}
	entry, ok, err := e.state.EscrowGet(c)
	if err != nil {
		return StatusNotFound, common.Internal("escrow.get", err)
	}
	if !ok {
		return StatusNotFound, nil
	}
	return entry.Status, nil
}

// EscrowDetails returns the entry as seen by viewer. When the owner has
// enabled boolean privacy and viewer is someone else, amount and owner are
// withheld. A zero viewer is treated as anonymous.
func (e *Engine) EscrowDetails(c commitment.Hash, viewer crypto.Address) (*View, error) {
	if e == nil || e.state == nil {
		return nil, common.Internal("escrow", errNilState)
	}
	entry, ok, err := e.state.EscrowGet(c)
	if err != nil {
		return nil, common.Internal("escrow.get", err)
	}
	if !ok {
		return nil, common.ErrEscrowNotFound
	}
	view := &View{
		Commitment: c,
		Token:      entry.Token,
		Status:     entry.Status,
		CreatedAt:  entry.CreatedAt,
		ExpiresAt:  entry.ExpiresAt,
		Expired:    entry.Status == StatusExpired || (entry.Status == StatusPending && entry.ExpiredAt(e.now())),
	}
	private, _, err := e.state.PrivacyEnabledGet(entry.Owner)
	if err != nil {
		return nil, common.Internal("privacy.get", err)
	}
	if private && !viewer.Equal(entry.Owner) {
		view.Hidden = true
		return view, nil
	}
	owner := entry.Owner
	view.Owner = &owner
	view.Amount = new(big.Int).Set(entry.Amount)
	return view, nil
}

// VerifyProof reports whether (amount, salt, owner) opens a Pending escrow
// holding exactly amount. Errors collapse to false.
func (e *Engine) VerifyProof(amount *big.Int, salt []byte, owner crypto.Address) bool {
	if e == nil || e.state == nil {
		return false
	}
	c, err := e.scheme.Create(owner, amount, salt)
	if err != nil {
		return false
	}
	entry, ok, err := e.state.EscrowGet(c)
	if err != nil || !ok {
		return false
	}
	return entry.Status == StatusPending && entry.Amount != nil && entry.Amount.Cmp(amount) == 0
}

// EscrowCount returns the number of escrows ever opened.
func (e *Engine) EscrowCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, common.Internal("escrow", errNilState)
	}
	count, err := e.state.EscrowCounter()
	if err != nil {
		return 0, common.Internal("escrow.counter", err)
	}
	return count, nil
}
