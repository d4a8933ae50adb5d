package state

// Namespace discriminators. Each is hashed together with its payload, so the
// strings only need to be distinct.
const (
	nsEscrowEntry    = "escrow/entry/"
	nsEscrowCounter  = "escrow/counter"
	nsAdminAddress   = "admin/address"
	nsAdminPaused    = "admin/paused"
	nsAdminCode      = "admin/code"
	nsPrivacyLevel   = "privacy/level/"
	nsPrivacyHistory = "privacy/history/"
	nsPrivacyEnabled = "privacy/enabled/"
	nsAuthNonce      = "auth/nonce/"
	nsTokenBalance   = "token/balance/"
	nsStateVersion   = "state/version"
	nsGenesis        = "state/genesis"
)
