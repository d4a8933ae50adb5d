package state

import (
	"github.com/holiman/uint256"

	"paylinkchain/crypto"
)

func nonceKey(account crypto.Address) []byte {
	return namespacedKey(nsAuthNonce, account.CanonicalBytes())
}

func tokenBalanceKey(token, account crypto.Address) []byte {
	payload := append(token.CanonicalBytes(), account.CanonicalBytes()...)
	return namespacedKey(nsTokenBalance, payload)
}

// NonceGet returns the next expected call nonce for account.
func (m *Manager) NonceGet(account crypto.Address) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(nonceKey(account), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

func (m *Manager) NoncePut(account crypto.Address, nonce uint64) error {
	return m.KVPut(nonceKey(account), nonce)
}

// TokenBalanceGet returns account's balance of token. Missing balances read as
// zero with ok=false.
func (m *Manager) TokenBalanceGet(token, account crypto.Address) (*uint256.Int, bool, error) {
	balance := new(uint256.Int)
	ok, err := m.KVGet(tokenBalanceKey(token, account), balance)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return new(uint256.Int), false, nil
	}
	return balance, true, nil
}

func (m *Manager) TokenBalancePut(token, account crypto.Address, balance *uint256.Int) error {
	if balance == nil {
		balance = new(uint256.Int)
	}
	return m.KVPut(tokenBalanceKey(token, account), balance)
}
