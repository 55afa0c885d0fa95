// Package qrtoken implements the encrypted share-token format carried inside
// MediLink QR codes. A token is a JSON payload sealed with AES-256-GCM under
// a key derived from the deployment's access secret via PBKDF2 with a fixed
// salt, then base64url encoded so it survives QR alphanumeric handling.
package qrtoken

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters. The salt is fixed so any server instance
// configured with the same access secret can redeem tokens minted by another.
const (
	keySalt       = "aficare-medilink-qr-v1"
	keyIterations = 100_000
	keyLen        = 32
)

// Payload is the plaintext content of a share token.
type Payload struct {
	Code       string    `json:"code"`
	MediLinkID string    `json:"mid"`
	Perms      []string  `json:"perms"`
	ExpiresAt  time.Time `json:"exp"`
}

// Codec seals and opens share-token payloads.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the token key from secret and prepares the AEAD. An empty
// secret is rejected; config validation normally catches this earlier.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("qrtoken: access secret must not be empty")
	}

	key := pbkdf2.Key([]byte(secret), []byte(keySalt), keyIterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("qrtoken: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("qrtoken: create GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encode seals the payload and returns the base64url token.
func (c *Codec) Encode(p Payload) (string, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("qrtoken: marshal payload: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("qrtoken: generate nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, so the result is nonce + ciphertext.
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a token produced by Encode. It does not check expiry; callers
// decide how to treat an expired payload.
func (c *Codec) Decode(token string) (*Payload, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("qrtoken: base64 decode: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("qrtoken: token too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("qrtoken: open: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("qrtoken: unmarshal payload: %w", err)
	}
	return &p, nil
}

// Expired reports whether the payload's expiry has passed at the given time.
func (p *Payload) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
