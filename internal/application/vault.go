// Package application contains use-case orchestration services.
package application

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

const (
	// MasterKeySize is the required AES-256 master key length in bytes.
	MasterKeySize = 32

	// DefaultCacheTTL bounds how long a revealed secret stays in memory.
	DefaultCacheTTL = 5 * time.Minute

	// MinSecretLength is the shortest client key accepted by Bind.
	MinSecretLength = 20

	// SecretPrefix is the prefix of panel client API keys.
	SecretPrefix = "ptlc_"

	gcmNonceSize = 12
	gcmTagSize   = 16
)

type cacheEntry struct {
	plaintext string
	expiresAt time.Time
}

// CredentialVault encrypts, stores and reveals one control panel key per
// operator. Plaintext is kept in a per-process cache for at most the cache
// TTL; the cache is not shared between processes.
type CredentialVault struct {
	store driven.CredentialStore
	aead  cipher.AEAD
	rand  io.Reader
	now   func() time.Time
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
	// gens counts writes per owner. A Reveal only caches what it loaded if
	// no Bind or invalidation happened while it was reading the store.
	gens map[string]uint64
}

// VaultOption customizes a CredentialVault.
type VaultOption func(*CredentialVault)

// WithClock replaces the vault's time source.
func WithClock(now func() time.Time) VaultOption {
	return func(v *CredentialVault) { v.now = now }
}

// WithCacheTTL replaces the plaintext cache TTL.
func WithCacheTTL(ttl time.Duration) VaultOption {
	return func(v *CredentialVault) { v.ttl = ttl }
}

// NewCredentialVault creates a vault keyed by masterKey, which must be
// exactly 32 bytes. Any other length is a Config error.
func NewCredentialVault(store driven.CredentialStore, masterKey []byte, opts ...VaultOption) (*CredentialVault, error) {
	if len(masterKey) != MasterKeySize {
		return nil, model.ConfigError("master key must be %d bytes, got %d", MasterKeySize, len(masterKey))
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, model.ConfigError("aes.NewCipher: %v", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, gcmNonceSize)
	if err != nil {
		return nil, model.ConfigError("cipher.NewGCM: %v", err)
	}

	v := &CredentialVault{
		store: store,
		aead:  aead,
		rand:  rand.Reader,
		now:   time.Now,
		ttl:   DefaultCacheTTL,
		cache: make(map[string]cacheEntry),
		gens:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Bind validates, encrypts and stores secret for ownerID, replacing any
// previous key, and returns the last four characters of the secret.
func (v *CredentialVault) Bind(ctx context.Context, ownerID, secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if err := validateSecret(secret); err != nil {
		return "", err
	}

	record, err := v.seal(ownerID, secret)
	if err != nil {
		return "", err
	}

	if err := v.store.Put(ctx, record); err != nil {
		v.invalidate(ownerID)
		return "", fmt.Errorf("store credential: %w", err)
	}

	v.replace(ownerID, secret)
	return record.Last4, nil
}

// Reveal returns the plaintext key for ownerID, from cache when fresh.
func (v *CredentialVault) Reveal(ctx context.Context, ownerID string) (string, error) {
	secret, gen, ok := v.cached(ownerID)
	if ok {
		return secret, nil
	}

	record, err := v.store.Get(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if record == nil {
		return "", model.NotBoundError(ownerID)
	}

	secret, err = v.open(*record)
	if err != nil {
		return "", model.IntegrityError(ownerID, err)
	}

	v.rememberAt(ownerID, secret, gen)
	return secret, nil
}

// Meta reports whether ownerID has a key bound. It never decrypts.
func (v *CredentialVault) Meta(ctx context.Context, ownerID string) (model.CredentialMeta, error) {
	record, err := v.store.Get(ctx, ownerID)
	if err != nil {
		return model.CredentialMeta{}, fmt.Errorf("load credential: %w", err)
	}
	if record == nil {
		return model.CredentialMeta{Bound: false}, nil
	}
	return model.CredentialMeta{
		Bound:     true,
		Last4:     record.Last4,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// seal encrypts secret with a fresh random nonce. The GCM output is split
// into ciphertext and the trailing 16-byte tag.
func (v *CredentialVault) seal(ownerID, secret string) (model.CredentialRecord, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return model.CredentialRecord{}, fmt.Errorf("rand nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(secret), nil)
	split := len(sealed) - gcmTagSize

	return model.CredentialRecord{
		OwnerID:    ownerID,
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		AuthTag:    sealed[split:],
		Last4:      last4(secret),
	}, nil
}

func (v *CredentialVault) open(record model.CredentialRecord) (string, error) {
	if len(record.Nonce) != gcmNonceSize {
		return "", fmt.Errorf("nonce is %d bytes, want %d", len(record.Nonce), gcmNonceSize)
	}
	if len(record.AuthTag) != gcmTagSize {
		return "", fmt.Errorf("auth tag is %d bytes, want %d", len(record.AuthTag), gcmTagSize)
	}

	sealed := make([]byte, 0, len(record.Ciphertext)+gcmTagSize)
	sealed = append(sealed, record.Ciphertext...)
	sealed = append(sealed, record.AuthTag...)

	plaintext, err := v.aead.Open(nil, record.Nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

// cached returns the fresh cache entry for ownerID, if any, and the owner's
// current write generation.
func (v *CredentialVault) cached(ownerID string) (string, uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	gen := v.gens[ownerID]
	entry, ok := v.cache[ownerID]
	if !ok {
		return "", gen, false
	}
	if !v.now().Before(entry.expiresAt) {
		delete(v.cache, ownerID)
		return "", gen, false
	}
	return entry.plaintext, gen, true
}

// rememberAt caches secret unless ownerID was written after gen was read.
func (v *CredentialVault) rememberAt(ownerID, secret string, gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gens[ownerID] != gen {
		return
	}
	v.cache[ownerID] = cacheEntry{plaintext: secret, expiresAt: v.now().Add(v.ttl)}
}

func (v *CredentialVault) replace(ownerID, secret string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gens[ownerID]++
	v.cache[ownerID] = cacheEntry{plaintext: secret, expiresAt: v.now().Add(v.ttl)}
}

func (v *CredentialVault) invalidate(ownerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gens[ownerID]++
	delete(v.cache, ownerID)
}

func validateSecret(secret string) error {
	if secret == "" {
		return model.ValidationError(model.CodeInvalidKeyFormat, "key is required")
	}
	if !strings.HasPrefix(secret, SecretPrefix) {
		return model.ValidationError(model.CodeInvalidKeyFormat, "key must start with %q", SecretPrefix)
	}
	if len(secret) < MinSecretLength {
		return model.ValidationError(model.CodeInvalidKeyFormat, "key must be at least %d characters", MinSecretLength)
	}
	if strings.IndexFunc(secret, unicode.IsSpace) >= 0 {
		return model.ValidationError(model.CodeInvalidKeyFormat, "key must not contain whitespace")
	}
	return nil
}

func last4(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return s
	}
	return string(r[len(r)-4:])
}
