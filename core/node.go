package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"paylinkchain/core/events"
	"paylinkchain/core/state"
	"paylinkchain/core/types"
	"paylinkchain/crypto"
	"paylinkchain/native/admin"
	"paylinkchain/native/commitment"
	"paylinkchain/native/common"
	"paylinkchain/native/escrow"
	"paylinkchain/native/privacy"
	"paylinkchain/native/token"
	"paylinkchain/observability"
	"paylinkchain/observability/logging"
	telemetry "paylinkchain/observability/otel"
	"paylinkchain/storage"
)

// ErrInvalidCall marks envelopes that cannot be dispatched (unknown method,
// undecodable arguments). They are rejected before any contract logic runs.
var ErrInvalidCall = errors.New("node: invalid call")

// CustodyLabel names the program account holding escrowed funds.
const CustodyLabel = "escrow-custody"

// Options tunes a Node. Zero values select defaults.
type Options struct {
	ChainID       uint64
	MaxSaltLength int
	Logger        *slog.Logger
	// Emitter receives events after their call commits.
	Emitter      events.Emitter
	Now          func() uint64
	AllowMigrate bool
}

// Node is the central controller, wiring all components together. Every
// signed call and every query runs under a single mutex; a call's writes are
// journaled and either committed as one batch or discarded.
type Node struct {
	mu sync.Mutex

	db      storage.Database
	state   *state.Manager
	chainID uint64
	custody crypto.Address
	scheme  *commitment.Scheme

	escrow  *escrow.Engine
	privacy *privacy.Registry
	admin   *admin.Controller
	ledger  *token.Ledger

	recorder *events.Recorder
	emitter  events.Emitter
	logger   *slog.Logger
	metrics  *observability.ContractMetrics
	nowFn    func() uint64
	started  time.Time
}

// NewNode opens contract state on db and wires the native engines.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if opts.ChainID == 0 {
		return nil, fmt.Errorf("node: chain id required")
	}
	scheme, err := commitment.NewScheme(opts.MaxSaltLength)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	now := opts.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}

	mgr := state.NewManager(db)
	if err := state.EnsureStateVersion(mgr, opts.AllowMigrate); err != nil {
		return nil, err
	}

	n := &Node{
		db:       db,
		state:    mgr,
		chainID:  opts.ChainID,
		custody:  crypto.ContractAddress(CustodyLabel),
		scheme:   scheme,
		recorder: &events.Recorder{},
		emitter:  emitter,
		logger:   logger.With(slog.String("component", "node")),
		metrics:  observability.Contract(),
		nowFn:    now,
		started:  time.Now(),
	}

	n.ledger = token.NewLedger(mgr)
	n.ledger.SetEmitter(n.recorder)

	n.escrow = escrow.NewEngine(n.custody)
	n.escrow.SetState(mgr)
	n.escrow.SetTransferer(n.ledger)
	n.escrow.SetScheme(scheme)
	n.escrow.SetEmitter(n.recorder)
	n.escrow.SetNowFunc(now)

	n.privacy = privacy.NewRegistry()
	n.privacy.SetState(mgr)
	n.privacy.SetEmitter(n.recorder)
	n.privacy.SetNowFunc(now)

	n.admin = admin.NewController()
	n.admin.SetState(mgr)
	n.admin.SetEmitter(n.recorder)

	return n, nil
}

// ChainID returns the chain identifier calls must carry.
func (n *Node) ChainID() uint64 { return n.chainID }

// Custody returns the escrow custody account.
func (n *Node) Custody() crypto.Address { return n.custody }

// Receipt summarises a committed call.
type Receipt struct {
	Method      string         `json:"method"`
	Signer      string         `json:"signer"`
	Nonce       uint64         `json:"nonce"`
	Commitment  string         `json:"commitment,omitempty"`
	Withdrawn   bool           `json:"withdrawn,omitempty"`
	CodeVersion uint64         `json:"codeVersion,omitempty"`
	Events      []*types.Event `json:"events"`
}

// Execute verifies, dispatches and commits one signed call. Any error leaves
// state exactly as it was before the call.
func (n *Node) Execute(ctx context.Context, call *types.Call) (*Receipt, error) {
	if call == nil {
		return nil, fmt.Errorf("%w: nil call", ErrInvalidCall)
	}
	ctx, span := telemetry.Tracer().Start(ctx, "node.Execute", trace.WithAttributes(
		attribute.String("paylink.method", call.Method),
		attribute.Int64("paylink.nonce", int64(call.Nonce)),
	))
	defer span.End()

	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	receipt, err := n.execute(call)
	code := uint32(0)
	if err != nil {
		if !errors.Is(err, ErrInvalidCall) {
			code = uint32(common.KindOf(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	n.metrics.ObserveCall(call.Method, code, time.Since(start))

	if err != nil {
		n.logger.WarnContext(ctx, "call rejected",
			slog.String("method", call.Method),
			slog.Uint64("nonce", call.Nonce),
			slog.Uint64("code", uint64(code)),
			logging.MaskBytes("signature", call.Signature),
			slog.Any("error", err))
		return nil, err
	}
	n.logger.InfoContext(ctx, "call executed",
		slog.String("method", call.Method),
		slog.String("signer", receipt.Signer),
		slog.Uint64("nonce", call.Nonce),
		slog.Int("events", len(receipt.Events)),
		slog.Duration("elapsed", time.Since(start)))
	return receipt, nil
}

func (n *Node) execute(call *types.Call) (*Receipt, error) {
	if !types.KnownMethod(call.Method) {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidCall, types.ErrUnknownMethod, call.Method)
	}
	if call.ChainID != n.chainID {
		return nil, common.NewError(common.KindUnauthorized, "chain_id")
	}
	signer, err := call.Signer()
	if err != nil {
		return nil, common.NewError(common.KindUnauthorized, "signature")
	}
	expected, err := n.state.NonceGet(signer)
	if err != nil {
		return nil, common.Internal("nonce.get", err)
	}
	if call.Nonce != expected {
		return nil, common.NewError(common.KindUnauthorized, "nonce")
	}

	n.recorder.Reset()
	receipt := &Receipt{Method: call.Method, Signer: signer.String(), Nonce: call.Nonce}
	if err := n.dispatch(common.NewAuth(signer), call, receipt); err != nil {
		n.state.Discard()
		n.recorder.Reset()
		// A signed call that reached dispatch is spent even when rejected,
		// so the same envelope cannot be replayed once conditions change.
		if nerr := n.state.NoncePut(signer, expected+1); nerr != nil {
			n.state.Discard()
			return nil, common.Internal("nonce.put", nerr)
		}
		if cerr := n.commit(); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	if err := n.state.NoncePut(signer, expected+1); err != nil {
		n.state.Discard()
		return nil, common.Internal("nonce.put", err)
	}
	if err := n.commit(); err != nil {
		return nil, err
	}
	receipt.Events = n.recorder.Events()
	n.publish(receipt.Events)
	return receipt, nil
}

func (n *Node) commit() error {
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.recorder.Reset()
		return common.Internal("state.commit", err)
	}
	return nil
}

func (n *Node) publish(evts []*types.Event) {
	for _, evt := range evts {
		n.metrics.RecordEvent(evt.Type)
		n.emitter.Emit(events.Wrapped{Evt: evt})
	}
	n.recorder.Reset()
}

func (n *Node) dispatch(auth common.Auth, call *types.Call, receipt *Receipt) error {
	switch call.Method {
	case types.MethodDeposit:
		var args types.DepositArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		c, err := n.escrow.Deposit(auth, args.Token, args.Amount, args.Owner, args.Salt, args.Timeout)
		if err != nil {
			return err
		}
		receipt.Commitment = hex.EncodeToString(c[:])
	case types.MethodDepositWithCommitment:
		var args types.DepositWithCommitmentArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		if err := n.escrow.DepositWithCommitment(auth, args.From, args.Token, args.Amount, args.Commitment, args.Timeout); err != nil {
			return err
		}
		receipt.Commitment = hex.EncodeToString(args.Commitment[:])
	case types.MethodWithdraw:
		var args types.WithdrawArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		ok, err := n.escrow.Withdraw(auth, args.To, args.Amount, args.Salt)
		if err != nil {
			return err
		}
		receipt.Withdrawn = ok
	case types.MethodRefund:
		var args types.RefundArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		if err := n.escrow.Refund(auth, args.Commitment, args.Caller); err != nil {
			return err
		}
		receipt.Commitment = hex.EncodeToString(args.Commitment[:])
	case types.MethodEnablePrivacy:
		var args types.EnablePrivacyArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		return n.privacy.EnablePrivacy(auth, args.Account, args.Level)
	case types.MethodSetPrivacy:
		var args types.SetPrivacyArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		return n.privacy.SetPrivacy(auth, args.Owner, args.Enabled)
	case types.MethodInitialize:
		var args types.InitializeArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		return n.admin.Initialize(args.Admin)
	case types.MethodSetPaused:
		var args types.SetPausedArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		return n.admin.SetPaused(auth, args.Caller, args.Paused)
	case types.MethodSetAdmin:
		var args types.SetAdminArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		return n.admin.SetAdmin(auth, args.Caller, args.NewAdmin)
	case types.MethodUpgrade:
		var args types.UpgradeArgs
		if err := call.DecodeArgs(&args); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCall, err)
		}
		code, err := n.admin.Upgrade(auth, args.Caller, args.CodeHash)
		if err != nil {
			return err
		}
		receipt.CodeVersion = code.Version
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidCall, types.ErrUnknownMethod, call.Method)
	}
	return nil
}

// Mint credits a token balance outside the signed-call path. It is reserved
// for operators (genesis, test networks) and commits immediately.
func (n *Node) Mint(ctx context.Context, tokenAddr, to crypto.Address, amount *big.Int) error {
	_, span := telemetry.Tracer().Start(ctx, "node.Mint")
	defer span.End()

	n.mu.Lock()
	defer n.mu.Unlock()
	n.recorder.Reset()
	if err := n.ledger.Mint(tokenAddr, to, amount); err != nil {
		n.state.Discard()
		n.recorder.Reset()
		return err
	}
	if err := n.commit(); err != nil {
		return err
	}
	n.publish(n.recorder.Events())
	n.logger.Info("tokens minted",
		slog.String("token", tokenAddr.String()),
		slog.String("to", to.String()),
		slog.String("amount", amount.String()))
	return nil
}
