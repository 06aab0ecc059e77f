// Package tokenstore persists OAuth tokens encrypted at rest.
package tokenstore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// expiryBuffer is how early a token counts as expired, so a refresh happens
// before the upstream actually rejects the token.
const expiryBuffer = 5 * time.Minute

// Tokens is the persisted OAuth token set.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresIn    int       `json:"expires_in"`
	SavedAt      time.Time `json:"saved_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AccessExpired reports whether the access token is expired or expires
// within the refresh buffer.
func (t *Tokens) AccessExpired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(t.ExpiresAt.Add(-expiryBuffer))
}

// HasRefresh reports whether a refresh token is present.
func (t *Tokens) HasRefresh() bool {
	return t != nil && t.RefreshToken != ""
}

// Store encrypts token sets with ChaCha20-Poly1305 and writes them to a
// single file. The key is supplied base64-encoded and must decode to 32 bytes.
type Store struct {
	path string
	aead cipher.AEAD
}

// New creates a Store writing to path.
func New(base64Key, path string) (*Store, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		key, err = base64.RawURLEncoding.DecodeString(base64Key)
	}
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Store{path: path, aead: aead}, nil
}

// GenerateKey returns a fresh base64-encoded key suitable for New.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Save stamps, encrypts, and writes the token set. ExpiresAt is computed
// from ExpiresIn when the upstream supplied one.
func (s *Store) Save(t *Tokens) error {
	t.SavedAt = time.Now()
	if t.ExpiresIn > 0 {
		t.ExpiresAt = t.SavedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	plaintext, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, sealed, 0o600); err != nil {
		return fmt.Errorf("write tokens: %w", err)
	}
	return nil
}

// Load reads and decrypts the stored token set. Returns (nil, nil) when no
// tokens have been stored yet.
func (s *Store) Load() (*Tokens, error) {
	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	if len(sealed) < s.aead.NonceSize() {
		return nil, fmt.Errorf("token file is truncated")
	}

	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt tokens: %w", err)
	}

	var t Tokens
	if err := json.Unmarshal(plaintext, &t); err != nil {
		return nil, fmt.Errorf("unmarshal tokens: %w", err)
	}
	return &t, nil
}

// Delete removes the stored tokens. Returns whether anything was deleted.
func (s *Store) Delete() (bool, error) {
	err := os.Remove(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete tokens: %w", err)
	}
	return true, nil
}
