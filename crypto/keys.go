package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// AddressPrefix defines the different types of human-readable address prefixes.
type AddressPrefix string

const (
	// AccountPrefix tags externally owned accounts (wallets, admins).
	AccountPrefix AddressPrefix = "plk"
	// ContractPrefix tags program-owned accounts such as token contracts and
	// the escrow custody account.
	ContractPrefix AddressPrefix = "plkc"
)

// AddressLength is the size of the raw address payload.
const AddressLength = 20

var (
	ErrInvalidAddress = errors.New("crypto: invalid address")
	ErrInvalidSig     = errors.New("crypto: invalid signature")
)

// Address represents a 20-byte address with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	var raw [AddressLength]byte
	copy(raw[:], b)
	return Address{prefix: prefix, bytes: raw}
}

// ContractAddress derives a deterministic program address from a label.
func ContractAddress(label string) Address {
	digest := crypto.Keccak256([]byte("contract:" + strings.TrimSpace(label)))
	return NewAddress(ContractPrefix, digest[len(digest)-AddressLength:])
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.prefix == "" && a.bytes == [AddressLength]byte{}
}

// Equal compares prefix and payload.
func (a Address) Equal(other Address) bool {
	return a.prefix == other.prefix && bytes.Equal(a.bytes[:], other.bytes[:])
}

type canonicalAddress struct {
	Prefix string
	Bytes  []byte
}

// CanonicalBytes returns the stable external encoding of the address: the RLP
// list (prefix, payload). The encoding is self-describing so two addresses with
// the same payload under different prefixes never serialise identically.
func (a Address) CanonicalBytes() []byte {
	encoded, err := rlp.EncodeToBytes(canonicalAddress{Prefix: string(a.prefix), Bytes: a.bytes[:]})
	if err != nil {
		panic(err)
	}
	return encoded
}

// AddressFromCanonical decodes the output of CanonicalBytes.
func AddressFromCanonical(data []byte) (Address, error) {
	var decoded canonicalAddress
	if err := rlp.DecodeBytes(data, &decoded); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if decoded.Prefix == "" && len(decoded.Bytes) == 0 {
		return Address{}, nil
	}
	if len(decoded.Bytes) != AddressLength {
		return Address{}, ErrInvalidAddress
	}
	return NewAddress(AddressPrefix(decoded.Prefix), decoded.Bytes), nil
}

// EncodeRLP stores the address in its canonical form.
func (a Address) EncodeRLP(w io.Writer) error {
	_, err := w.Write(a.CanonicalBytes())
	return err
}

// DecodeRLP restores an address written by EncodeRLP.
func (a *Address) DecodeRLP(s *rlp.Stream) error {
	raw, err := s.Raw()
	if err != nil {
		return err
	}
	decoded, err := AddressFromCanonical(raw)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// MarshalText renders the bech32 form for JSON and TOML.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the bech32 form.
func (a *Address) UnmarshalText(text []byte) error {
	trimmed := strings.TrimSpace(string(text))
	if trimmed == "" {
		*a = Address{}
		return nil
	}
	decoded, err := DecodeAddress(trimmed)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("%w: payload is %d bytes", ErrInvalidAddress, len(conv))
	}
	switch AddressPrefix(prefix) {
	case AccountPrefix, ContractPrefix:
	default:
		return Address{}, fmt.Errorf("%w: unsupported prefix %q", ErrInvalidAddress, prefix)
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Sign produces a 65-byte recoverable secp256k1 signature over digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	if k == nil || k.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	return crypto.Sign(digest, k.PrivateKey)
}

func (k *PublicKey) Address() Address {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return NewAddress(AccountPrefix, addrBytes)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// RecoverAddress returns the account address whose key produced sig over
// digest.
func RecoverAddress(digest, sig []byte) (Address, error) {
	if len(sig) != crypto.SignatureLength {
		return Address{}, ErrInvalidSig
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}
	return (&PublicKey{pub}).Address(), nil
}

// Keccak256 is re-exported so callers need not import go-ethereum directly.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}
