package escrow

import (
	"encoding/hex"
	"strconv"

	"paylinkchain/core/types"
	"paylinkchain/crypto"
)

const (
	EventTypeEscrowDeposited = "escrow.deposited"
	EventTypeEscrowWithdrawn = "escrow.withdrawn"
	EventTypeEscrowRefunded  = "escrow.refunded"
)

// NewDepositedEvent returns the canonical event payload for a newly funded
// escrow. When private is set the owner and amount are left out.
func NewDepositedEvent(c [32]byte, e *Entry, private bool) *types.Event {
	return newEscrowEvent(EventTypeEscrowDeposited, c, e, private)
}

// NewWithdrawnEvent returns the canonical event payload emitted when the
// commitment is opened and funds are released to recipient.
func NewWithdrawnEvent(c [32]byte, e *Entry, recipient crypto.Address, private bool) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowWithdrawn, c, e, private)
	if !private {
		evt.Attributes["recipient"] = recipient.String()
	}
	return evt
}

// NewRefundedEvent returns the canonical event payload for an escrow refund to
// the owner.
func NewRefundedEvent(c [32]byte, e *Entry, private bool) *types.Event {
	return newEscrowEvent(EventTypeEscrowRefunded, c, e, private)
}

func newEscrowEvent(eventType string, c [32]byte, e *Entry, private bool) *types.Event {
	attrs := make(map[string]string)
	attrs["commitment"] = hex.EncodeToString(c[:])
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeEntry(e)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["token"] = sanitized.Token.String()
	if private {
		attrs["private"] = "true"
	} else {
		attrs["owner"] = sanitized.Owner.String()
		attrs["amount"] = sanitized.Amount.String()
	}
	attrs["status"] = sanitized.Status.String()
	attrs["createdAt"] = strconv.FormatUint(sanitized.CreatedAt, 10)
	if sanitized.ExpiresAt > 0 {
		attrs["expiresAt"] = strconv.FormatUint(sanitized.ExpiresAt, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
