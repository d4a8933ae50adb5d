package common

import "paylinkchain/crypto"

// Auth is the set of accounts that signed the current call.
type Auth struct {
	signers map[string]struct{}
}

// NewAuth builds a signer set. Zero addresses are ignored.
func NewAuth(signers ...crypto.Address) Auth {
	set := make(map[string]struct{}, len(signers))
	for _, addr := range signers {
		if addr.IsZero() {
			continue
		}
		set[string(addr.CanonicalBytes())] = struct{}{}
	}
	return Auth{signers: set}
}

// Signed reports whether addr authorised the call.
func (a Auth) Signed(addr crypto.Address) bool {
	if addr.IsZero() || a.signers == nil {
		return false
	}
	_, ok := a.signers[string(addr.CanonicalBytes())]
	return ok
}

// RequireAuth returns Unauthorized unless addr signed.
func RequireAuth(a Auth, addr crypto.Address) error {
	if !a.Signed(addr) {
		return ErrUnauthorized
	}
	return nil
}
