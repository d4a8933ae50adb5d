package common

import (
	"errors"
	"fmt"
	"testing"
)

type pauseStub struct {
	paused bool
	err    error
}

func (p pauseStub) PausedGet() (bool, error) { return p.paused, p.err }

func TestErrorIsMatchesKind(t *testing.T) {
	err := NewError(KindInvalidSalt, "salt")
	if !errors.Is(err, ErrInvalidSalt) {
		t.Fatalf("expected kind match")
	}
	if errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("distinct kinds must not match")
	}
	wrapped := fmt.Errorf("deposit: %w", err)
	if KindOf(wrapped) != KindInvalidSalt {
		t.Fatalf("KindOf through wrap = %v", KindOf(wrapped))
	}
	if err.Error() != "InvalidSalt: salt" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("leveldb: corrupted")
	err := Internal("escrow.put", cause)
	if err.Code() != 900 {
		t.Fatalf("unexpected code %d", err.Code())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause must stay reachable for logs")
	}
	if err.Error() != "Internal: escrow.put" {
		t.Fatalf("cause leaked into message: %q", err.Error())
	}
	if KindOf(errors.New("foreign")) != KindInternal {
		t.Fatalf("foreign errors classify as internal")
	}
	// Contract errors pass through unchanged.
	if Internal("x", ErrUnauthorized) != ErrUnauthorized {
		t.Fatalf("expected passthrough for contract errors")
	}
}

func TestStableCodes(t *testing.T) {
	cases := map[Kind]uint32{
		KindInvalidAmount:       100,
		KindInvalidSalt:         101,
		KindInvalidPrivacyLevel: 102,
		KindInvalidCodeHash:     103,
		KindUnauthorized:        200,
		KindAlreadyInitialized:  201,
		KindContractPaused:      300,
		KindPrivacyAlreadySet:   301,
		KindEscrowNotFound:      302,
		KindEscrowAlreadyExists: 303,
		KindEscrowNotPending:    304,
		KindInvalidCommitment:   305,
		KindEscrowExpired:       307,
		KindEscrowNotExpired:    308,
		KindInvalidOwner:        309,
		KindInternal:            900,
	}
	for kind, code := range cases {
		if uint32(kind) != code || !kind.Valid() {
			t.Fatalf("%s: code %d", kind, uint32(kind))
		}
	}
	if Kind(306).Valid() {
		t.Fatalf("306 is not part of the set")
	}
}

func TestGuard(t *testing.T) {
	if err := Guard(nil); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	if err := Guard(pauseStub{}); err != nil {
		t.Fatalf("unpaused: %v", err)
	}
	if err := Guard(pauseStub{paused: true}); !errors.Is(err, ErrContractPaused) {
		t.Fatalf("expected ContractPaused, got %v", err)
	}
	if err := Guard(pauseStub{err: errors.New("io")}); KindOf(err) != KindInternal {
		t.Fatalf("expected internal, got %v", err)
	}
}
