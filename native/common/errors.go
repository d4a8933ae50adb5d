package common

import (
	"errors"
	"fmt"
)

// Kind enumerates the closed set of failures a contract call can surface to
// its caller. The numeric values are part of the external interface: wallets
// and backends key user-facing messages off them, so existing values must
// never be renumbered.
type Kind uint32

const (
	// Validation failures (100-199).
	KindInvalidAmount       Kind = 100
	KindInvalidSalt         Kind = 101
	KindInvalidPrivacyLevel Kind = 102
	KindInvalidCodeHash     Kind = 103

	// Authorization failures (200-299).
	KindUnauthorized       Kind = 200
	KindAlreadyInitialized Kind = 201

	// State violations (300-399).
	KindContractPaused      Kind = 300
	KindPrivacyAlreadySet   Kind = 301
	KindEscrowNotFound      Kind = 302
	KindEscrowAlreadyExists Kind = 303
	KindEscrowNotPending    Kind = 304
	KindInvalidCommitment   Kind = 305
	KindEscrowExpired       Kind = 307
	KindEscrowNotExpired    Kind = 308
	KindInvalidOwner        Kind = 309

	// Host failures (900-999).
	KindInternal Kind = 900
)

var kindNames = map[Kind]string{
	KindInvalidAmount:       "InvalidAmount",
	KindInvalidSalt:         "InvalidSalt",
	KindInvalidPrivacyLevel: "InvalidPrivacyLevel",
	KindInvalidCodeHash:     "InvalidCodeHash",
	KindUnauthorized:        "Unauthorized",
	KindAlreadyInitialized:  "AlreadyInitialized",
	KindContractPaused:      "ContractPaused",
	KindPrivacyAlreadySet:   "PrivacyAlreadySet",
	KindEscrowNotFound:      "EscrowNotFound",
	KindEscrowAlreadyExists: "EscrowAlreadyExists",
	KindEscrowNotPending:    "EscrowNotPending",
	KindInvalidCommitment:   "InvalidCommitment",
	KindEscrowExpired:       "EscrowExpired",
	KindEscrowNotExpired:    "EscrowNotExpired",
	KindInvalidOwner:        "InvalidOwner",
	KindInternal:            "Internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Valid reports whether k belongs to the closed set.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Error is the only error type returned across the contract boundary. Field
// names the offending input when one exists. Cause is kept for logs and
// errors.Is but is never rendered to callers.
type Error struct {
	Kind  Kind
	Field string
	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return e.Kind.String()
}

// Is matches another *Error of the same kind, ignoring the field.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Kind == other.Kind
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Code returns the stable numeric code.
func (e *Error) Code() uint32 {
	if e == nil {
		return 0
	}
	return uint32(e.Kind)
}

// NewError builds an error of the given kind for an optional field.
func NewError(kind Kind, field string) *Error {
	return &Error{Kind: kind, Field: field}
}

// Internal wraps a host failure (storage, token transfer) so callers only see
// KindInternal while logs keep the cause.
func Internal(op string, cause error) *Error {
	if cause == nil {
		cause = errors.New("unknown failure")
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return existing
	}
	return &Error{Kind: KindInternal, Field: op, cause: cause}
}

// KindOf extracts the kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindInternal
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidAmount       = NewError(KindInvalidAmount, "")
	ErrInvalidSalt         = NewError(KindInvalidSalt, "")
	ErrInvalidPrivacyLevel = NewError(KindInvalidPrivacyLevel, "")
	ErrInvalidCodeHash     = NewError(KindInvalidCodeHash, "")
	ErrUnauthorized        = NewError(KindUnauthorized, "")
	ErrAlreadyInitialized  = NewError(KindAlreadyInitialized, "")
	ErrContractPaused      = NewError(KindContractPaused, "")
	ErrPrivacyAlreadySet   = NewError(KindPrivacyAlreadySet, "")
	ErrEscrowNotFound      = NewError(KindEscrowNotFound, "")
	ErrEscrowAlreadyExists = NewError(KindEscrowAlreadyExists, "")
	ErrEscrowNotPending    = NewError(KindEscrowNotPending, "")
	ErrInvalidCommitment   = NewError(KindInvalidCommitment, "")
	ErrEscrowExpired       = NewError(KindEscrowExpired, "")
	ErrEscrowNotExpired    = NewError(KindEscrowNotExpired, "")
	ErrInvalidOwner        = NewError(KindInvalidOwner, "")
	ErrInternal            = NewError(KindInternal, "")
)
