package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"

	"paylinkchain/crypto"
)

// Method names accepted by the node. The set is closed; unknown methods are
// rejected before any state is touched.
const (
	MethodDeposit               = "deposit"
	MethodDepositWithCommitment = "deposit_with_commitment"
	MethodWithdraw              = "withdraw"
	MethodRefund                = "refund"
	MethodEnablePrivacy         = "enable_privacy"
	MethodSetPrivacy            = "set_privacy"
	MethodInitialize            = "initialize"
	MethodSetPaused             = "set_paused"
	MethodSetAdmin              = "set_admin"
	MethodUpgrade               = "upgrade"
)

var (
	ErrUnknownMethod = errors.New("call: unknown method")
	ErrUnsigned      = errors.New("call: missing signature")
)

// KnownMethod reports whether name is part of the call surface.
func KnownMethod(name string) bool {
	switch name {
	case MethodDeposit, MethodDepositWithCommitment, MethodWithdraw, MethodRefund,
		MethodEnablePrivacy, MethodSetPrivacy, MethodInitialize, MethodSetPaused,
		MethodSetAdmin, MethodUpgrade:
		return true
	default:
		return false
	}
}

// Call is the signed envelope a wallet submits. Args carries the RLP encoding
// of the method's argument struct. The signer is recovered from Signature and
// is the only account considered to have authorised the call.
type Call struct {
	ChainID   uint64        `json:"chainId"`
	Nonce     uint64        `json:"nonce"`
	Method    string        `json:"method"`
	Args      hexutil.Bytes `json:"args"`
	Signature hexutil.Bytes `json:"signature,omitempty"`
}

type callPayload struct {
	ChainID uint64
	Nonce   uint64
	Method  string
	Args    []byte
}

// Hash returns the keccak256 digest of the unsigned envelope.
func (c *Call) Hash() ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("call: nil envelope")
	}
	encoded, err := rlp.EncodeToBytes(callPayload{
		ChainID: c.ChainID,
		Nonce:   c.Nonce,
		Method:  strings.TrimSpace(c.Method),
		Args:    c.Args,
	})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Sign attaches a recoverable signature from key.
func (c *Call) Sign(key *crypto.PrivateKey) error {
	hash, err := c.Hash()
	if err != nil {
		return err
	}
	sig, err := key.Sign(hash)
	if err != nil {
		return err
	}
	c.Signature = sig
	return nil
}

// Signer recovers the account that signed the envelope.
func (c *Call) Signer() (crypto.Address, error) {
	if c == nil || len(c.Signature) == 0 {
		return crypto.Address{}, ErrUnsigned
	}
	hash, err := c.Hash()
	if err != nil {
		return crypto.Address{}, err
	}
	return crypto.RecoverAddress(hash, c.Signature)
}

// DecodeArgs unpacks Args into out.
func (c *Call) DecodeArgs(out interface{}) error {
	if err := rlp.DecodeBytes(c.Args, out); err != nil {
		return fmt.Errorf("call: decode %s args: %w", c.Method, err)
	}
	return nil
}

// NewCall encodes args and builds an unsigned envelope.
func NewCall(chainID, nonce uint64, method string, args interface{}) (*Call, error) {
	if !KnownMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	encoded, err := rlp.EncodeToBytes(args)
	if err != nil {
		return nil, err
	}
	return &Call{ChainID: chainID, Nonce: nonce, Method: method, Args: encoded}, nil
}

// DepositArgs funds an escrow whose commitment is derived from owner, amount
// and salt.
type DepositArgs struct {
	Token   crypto.Address
	Amount  *big.Int
	Owner   crypto.Address
	Salt    []byte
	Timeout uint64
}

// DepositWithCommitmentArgs funds an escrow under a precomputed commitment.
type DepositWithCommitmentArgs struct {
	From       crypto.Address
	Token      crypto.Address
	Amount     *big.Int
	Commitment [32]byte
	Timeout    uint64
}

type WithdrawArgs struct {
	To     crypto.Address
	Amount *big.Int
	Salt   []byte
}

type RefundArgs struct {
	Commitment [32]byte
	Caller     crypto.Address
}

type EnablePrivacyArgs struct {
	Account crypto.Address
	Level   uint32
}

type SetPrivacyArgs struct {
	Owner   crypto.Address
	Enabled bool
}

type InitializeArgs struct {
	Admin crypto.Address
}

type SetPausedArgs struct {
	Caller crypto.Address
	Paused bool
}

type SetAdminArgs struct {
	Caller   crypto.Address
	NewAdmin crypto.Address
}

type UpgradeArgs struct {
	Caller   crypto.Address
	CodeHash [32]byte
}
