package token

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"paylinkchain/core/events"
	"paylinkchain/crypto"
)

type memState struct {
	balances map[string]*uint256.Int
}

func newMemState() *memState { return &memState{balances: make(map[string]*uint256.Int)} }

func key(token, account crypto.Address) string { return token.String() + "/" + account.String() }

func (m *memState) TokenBalanceGet(token, account crypto.Address) (*uint256.Int, bool, error) {
	if bal, ok := m.balances[key(token, account)]; ok {
		return new(uint256.Int).Set(bal), true, nil
	}
	return new(uint256.Int), false, nil
}

func (m *memState) TokenBalancePut(token, account crypto.Address, balance *uint256.Int) error {
	m.balances[key(token, account)] = new(uint256.Int).Set(balance)
	return nil
}

func addr(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func TestLedgerMintAndTransfer(t *testing.T) {
	ledger := NewLedger(newMemState())
	rec := &events.Recorder{}
	ledger.SetEmitter(rec)
	tok := crypto.ContractAddress("usdc")

	if err := ledger.Mint(tok, addr(1), big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(tok, addr(1), addr(2), big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	from, _ := ledger.BalanceOf(tok, addr(1))
	to, _ := ledger.BalanceOf(tok, addr(2))
	if from.Int64() != 60 || to.Int64() != 40 {
		t.Fatalf("unexpected balances from=%s to=%s", from, to)
	}
	evts := rec.Events()
	if len(evts) != 2 || evts[0].Type != EventTypeMint || evts[1].Type != EventTypeTransfer {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestLedgerRejects(t *testing.T) {
	ledger := NewLedger(newMemState())
	tok := crypto.ContractAddress("usdc")

	if err := ledger.Transfer(tok, addr(1), addr(2), big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := ledger.Mint(tok, addr(1), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 256)
	if err := ledger.Mint(tok, addr(1), huge); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	max := new(big.Int).Sub(huge, big.NewInt(1))
	if err := ledger.Mint(tok, addr(1), max); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := ledger.Mint(tok, addr(1), big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow on saturated balance, got %v", err)
	}
}

func TestLedgerTransferPrivate(t *testing.T) {
	ledger := NewLedger(newMemState())
	rec := &events.Recorder{}
	ledger.SetEmitter(rec)
	tok := crypto.ContractAddress("usdc")
	var _ PrivateTransferer = ledger

	if err := ledger.Mint(tok, addr(1), big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	rec.Reset()
	if err := ledger.TransferPrivate(tok, addr(1), addr(2), big.NewInt(25)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	to, _ := ledger.BalanceOf(tok, addr(2))
	if to.Int64() != 25 {
		t.Fatalf("expected 25, got %s", to)
	}
	evts := rec.Events()
	if len(evts) != 1 || evts[0].Type != EventTypeTransfer {
		t.Fatalf("unexpected events %+v", evts)
	}
	attrs := evts[0].Attributes
	if attrs["private"] != "true" || attrs["token"] != tok.String() || len(attrs) != 2 {
		t.Fatalf("private transfer exposed attributes %v", attrs)
	}
	if err := ledger.TransferPrivate(tok, addr(2), addr(1), big.NewInt(26)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}
