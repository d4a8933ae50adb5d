package core

import (
	"fmt"
	"log/slog"
	"math/big"

	"paylinkchain/crypto"
)

// Allocation is a genesis token credit.
type Allocation struct {
	Token  crypto.Address
	To     crypto.Address
	Amount *big.Int
}

// Genesis seeds a fresh store: token balances and, optionally, the first
// admin.
type Genesis struct {
	Admin       crypto.Address
	Allocations []Allocation
}

// ApplyGenesis runs g once per store. Later calls report applied=false and
// leave state untouched.
func (n *Node) ApplyGenesis(g Genesis) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	done, err := n.state.GenesisApplied()
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}
	n.recorder.Reset()
	for i, alloc := range g.Allocations {
		if err := n.ledger.Mint(alloc.Token, alloc.To, alloc.Amount); err != nil {
			n.state.Discard()
			n.recorder.Reset()
			return false, fmt.Errorf("genesis allocation %d: %w", i, err)
		}
	}
	if !g.Admin.IsZero() {
		if err := n.admin.Initialize(g.Admin); err != nil {
			n.state.Discard()
			n.recorder.Reset()
			return false, fmt.Errorf("genesis admin: %w", err)
		}
	}
	if err := n.state.MarkGenesisApplied(); err != nil {
		n.state.Discard()
		n.recorder.Reset()
		return false, err
	}
	if err := n.commit(); err != nil {
		return false, err
	}
	n.publish(n.recorder.Events())
	n.logger.Info("genesis applied",
		slog.Int("allocations", len(g.Allocations)),
		slog.Bool("admin", !g.Admin.IsZero()))
	return true, nil
}
