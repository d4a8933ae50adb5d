package core

import (
	"context"
	"math/big"
	"time"

	"paylinkchain/crypto"
	"paylinkchain/native/admin"
	"paylinkchain/native/commitment"
	"paylinkchain/native/escrow"
	"paylinkchain/native/privacy"
)

// Read-only queries. They take the node lock so they never observe a call's
// journal half-way, and they never write.

func (n *Node) CommitmentState(c commitment.Hash) (escrow.Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.escrow.CommitmentState(c)
}

func (n *Node) EscrowDetails(c commitment.Hash, viewer crypto.Address) (*escrow.View, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.escrow.EscrowDetails(c, viewer)
}

func (n *Node) VerifyProof(amount *big.Int, salt []byte, owner crypto.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.escrow.VerifyProof(amount, salt, owner)
}

func (n *Node) EscrowCount() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.escrow.EscrowCount()
}

// CreateCommitment computes a commitment under the node's salt limit.
func (n *Node) CreateCommitment(owner crypto.Address, amount *big.Int, salt []byte) (commitment.Hash, error) {
	return n.scheme.Create(owner, amount, salt)
}

// VerifyCommitment recomputes and compares without consulting state.
func (n *Node) VerifyCommitment(c commitment.Hash, owner crypto.Address, amount *big.Int, salt []byte) bool {
	return n.scheme.Verify(c, owner, amount, salt)
}

func (n *Node) GetPrivacy(owner crypto.Address) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.privacy.GetPrivacy(owner)
}

func (n *Node) PrivacyStatus(account crypto.Address) (uint32, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.privacy.PrivacyStatus(account)
}

func (n *Node) PrivacyHistory(account crypto.Address) ([]privacy.Change, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.privacy.PrivacyHistory(account)
}

func (n *Node) Admin() (crypto.Address, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admin.Admin()
}

func (n *Node) IsPaused() (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admin.IsPaused()
}

func (n *Node) Code() (admin.Code, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.admin.Code()
}

// Nonce returns the nonce the next call from account must carry.
func (n *Node) Nonce(account crypto.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.NonceGet(account)
}

func (n *Node) Balance(tokenAddr, account crypto.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.BalanceOf(tokenAddr, account)
}

// Health is the liveness summary served by health_check.
type Health struct {
	Status        string `json:"status"`
	ChainID       uint64 `json:"chainId"`
	Initialized   bool   `json:"initialized"`
	Paused        bool   `json:"paused"`
	EscrowCount   uint64 `json:"escrowCount"`
	CodeVersion   uint64 `json:"codeVersion"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// HealthCheck reads the control-plane singletons. A storage failure yields
// status "degraded" together with the error.
func (n *Node) HealthCheck(ctx context.Context) (Health, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := Health{Status: "ok", ChainID: n.chainID, UptimeSeconds: int64(time.Since(n.started).Seconds())}
	if err := ctx.Err(); err != nil {
		return h, err
	}
	_, initialized, err := n.admin.Admin()
	if err != nil {
		h.Status = "degraded"
		return h, err
	}
	h.Initialized = initialized
	if h.Paused, err = n.admin.IsPaused(); err != nil {
		h.Status = "degraded"
		return h, err
	}
	if h.EscrowCount, err = n.escrow.EscrowCount(); err != nil {
		h.Status = "degraded"
		return h, err
	}
	code, err := n.admin.Code()
	if err != nil {
		h.Status = "degraded"
		return h, err
	}
	h.CodeVersion = code.Version
	return h, nil
}
