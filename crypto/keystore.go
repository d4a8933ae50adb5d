package crypto

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

var ErrEmptyPassphrase = errors.New("crypto: keystore passphrase must not be empty")

// SaveToKeystore writes the provided private key to an Ethereum v3 keystore
// file at the given path. The parent directory is created with 0700
// permissions and the file itself ends up 0600.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("crypto: empty keystore path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp(dir, "keystore-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	ks := keystore.NewKeyStore(tmpDir, keystore.LightScryptN, keystore.LightScryptP)
	if _, err := ks.ImportECDSA(key.PrivateKey, passphrase); err != nil {
		return err
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("crypto: failed to create keystore file")
	}

	src := filepath.Join(tmpDir, entries[0].Name())
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(src, path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadFromKeystore decrypts an Ethereum v3 keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("crypto: empty keystore path")
	}

	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt %s: %w", filepath.Base(path), err)
	}

	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}

// NewKeystoreAccount generates a fresh signing key, stores it at path and
// returns the account address. Empty passphrases are refused so wallets never
// leave an unprotected key on disk.
func NewKeystoreAccount(path, passphrase string) (Address, error) {
	if strings.TrimSpace(passphrase) == "" {
		return Address{}, ErrEmptyPassphrase
	}
	if _, err := os.Stat(path); err == nil {
		return Address{}, fmt.Errorf("crypto: keystore %s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Address{}, err
	}
	key, err := GeneratePrivateKey()
	if err != nil {
		return Address{}, err
	}
	if err := SaveToKeystore(path, key, passphrase); err != nil {
		return Address{}, err
	}
	return key.PubKey().Address(), nil
}
