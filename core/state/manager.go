package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"paylinkchain/storage"
)

var errNilStore = errors.New("state: store not configured")

// Manager provides typed, namespaced access to contract state. Writes are
// buffered in a journal and only reach the backing store on Commit, as one
// atomic batch. Reads observe the journal first so a call sees its own writes.
type Manager struct {
	mu      sync.RWMutex
	store   storage.Database
	journal map[string][]byte
}

// NewManager creates a state manager over the provided store.
func NewManager(store storage.Database) *Manager {
	return &Manager{store: store, journal: make(map[string][]byte)}
}

// namespacedKey hashes a length-prefixed namespace discriminator followed by
// the payload so keys from distinct namespaces can never collide.
func namespacedKey(namespace string, payload []byte) []byte {
	buf := make([]byte, 0, 2+len(namespace)+len(payload))
	buf = append(buf, byte(len(namespace)>>8), byte(len(namespace)))
	buf = append(buf, namespace...)
	buf = append(buf, payload...)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) read(key []byte) ([]byte, bool, error) {
	if m == nil || m.store == nil {
		return nil, false, errNilStore
	}
	m.mu.RLock()
	value, ok := m.journal[string(key)]
	m.mu.RUnlock()
	if ok {
		return value, true, nil
	}
	data, err := m.store.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if m == nil || m.store == nil {
		return errNilStore
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.journal[string(key)] = encoded
	m.mu.Unlock()
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.read(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode: %w", err)
	}
	return true, nil
}

// Pending reports the number of buffered writes.
func (m *Manager) Pending() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.journal)
}

// Commit flushes every buffered write in a single batch and clears the
// journal. On failure the journal is kept so the caller can Discard.
func (m *Manager) Commit() error {
	if m == nil || m.store == nil {
		return errNilStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.journal) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.journal))
	for k := range m.journal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := new(storage.Batch)
	for _, k := range keys {
		batch.Put([]byte(k), m.journal[k])
	}
	if err := m.store.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.journal = make(map[string][]byte)
	return nil
}

// Discard drops every buffered write.
func (m *Manager) Discard() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.journal = make(map[string][]byte)
	m.mu.Unlock()
}
