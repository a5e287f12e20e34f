package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/ports"
)

// EnvelopeKey is the Data key of an encrypted envelope.
const EnvelopeKey = "__encrypted__"

// envelopeVersion prefixes every sealed value: "v1.<key id>.<base64 nonce+ciphertext>".
const envelopeVersion = "v1"

var (
	// ErrNotEncrypted is returned when a stored session carries no envelope.
	ErrNotEncrypted = errors.New("state is missing encrypted data envelope")
	// ErrUnknownKey is returned for envelopes sealed with a key that is neither active nor a
	// fallback.
	ErrUnknownKey = errors.New("envelope sealed with an unknown key")
	// ErrDecrypt is returned for malformed or tampered envelopes.
	ErrDecrypt = errors.New("envelope cannot be opened")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new data. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys still open envelopes sealed before a key rotation.
	FallbackKeys [][]byte
}

// keyring holds one AEAD per key, indexed by key id.
type keyring struct {
	active string
	aeads  map[string]cipher.AEAD
}

// keyID names a key in envelopes without revealing it.
func keyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}

func newKeyring(cfg EncryptionConfig) (*keyring, error) {
	if len(cfg.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	kr := &keyring{active: keyID(cfg.ActiveKey), aeads: make(map[string]cipher.AEAD)}
	for i, key := range append([][]byte{cfg.ActiveKey}, cfg.FallbackKeys...) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		id := keyID(key)
		if _, dup := kr.aeads[id]; !dup {
			kr.aeads[id] = gcm
		}
	}
	return kr, nil
}

// seal encrypts plain under the active key. The session id is authenticated with it, so an
// envelope copied to another session does not open.
func (kr *keyring) seal(sessionID string, plain []byte) (string, error) {
	gcm := kr.aeads[kr.active]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plain, []byte(sessionID))
	return strings.Join([]string{envelopeVersion, kr.active, base64.StdEncoding.EncodeToString(sealed)}, "."), nil
}

func (kr *keyring) open(sessionID, envelope string) ([]byte, error) {
	parts := strings.SplitN(envelope, ".", 3)
	if len(parts) != 3 || parts[0] != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported format", ErrDecrypt)
	}
	gcm, ok := kr.aeads[parts[1]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, parts[1])
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: too short", ErrDecrypt)
	}
	plain, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], []byte(sessionID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plain, nil
}

type encryptionMiddleware struct {
	next ports.StateStore
	keys *keyring
}

// NewEncryptionMiddleware seals whole sessions with AES-GCM. The stored state keeps only the
// session id, the timestamp and the envelope; path and history are sealed with the data.
// It panics on keys that are not 32 bytes.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	keys, err := newKeyring(config)
	if err != nil {
		panic(err)
	}
	return func(next ports.StateStore) ports.StateStore {
		return &encryptionMiddleware{next: next, keys: keys}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	plain, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	sealed, err := m.keys.seal(sessionID, plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}
	return m.next.Save(ctx, sessionID, &domain.State{
		SessionID: sessionID,
		Data:      map[string]string{EnvelopeKey: sealed},
		UpdatedAt: state.UpdatedAt,
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	stored, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sealed, ok := stored.Data[EnvelopeKey]
	if !ok {
		return nil, ErrNotEncrypted
	}
	plain, err := m.keys.open(sessionID, sealed)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	var state domain.State
	if err := json.Unmarshal(plain, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted state: %w", err)
	}
	if state.Data == nil {
		state.Data = make(map[string]string)
	}
	return &state, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
