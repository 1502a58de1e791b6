// Package auth defines API-key scopes, the Claims value handed to the core,
// and the key hashing scheme. Key persistence lives in the storage layer;
// this package is pure.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Scope is the authorization role of an API key.
type Scope string

const (
	ScopeAdmin     Scope = "admin"
	ScopeKeyAdder  Scope = "keyadder"
	ScopeCollector Scope = "collector"
)

// IsValid reports whether s is a known scope.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeAdmin, ScopeKeyAdder, ScopeCollector:
		return true
	}
	return false
}

// Claims is what the core consumes after authentication.
type Claims struct {
	Scope Scope
	KeyID int64
}

// CanEdit reports whether the claims allow PUT/DELETE on individual objects
// and vocabularies.
func (c Claims) CanEdit() bool {
	return c.Scope == ScopeAdmin || c.Scope == ScopeKeyAdder
}

// Authentication errors. All map to 401; ErrScopeInsufficient maps to 403.
var (
	ErrKeyMissing        = errors.New("x-api-key header missing")
	ErrKeyUnknown        = errors.New("api key unknown")
	ErrKeyExpired        = errors.New("api key expired")
	ErrKeyDeleted        = errors.New("api key revoked")
	ErrScopeInsufficient = errors.New("scope insufficient")
)

// GenerateKey produces a fresh high-entropy API key.
func GenerateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NewSalt produces a per-key salt.
func NewSalt() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// HashKey derives the stored digest of a key. Keys are random tokens, not
// passwords, so a single salted SHA-256 round is sufficient.
func HashKey(key, salt string) string {
	sum := sha256.Sum256([]byte(salt + key))
	return hex.EncodeToString(sum[:])
}

// Keytag returns the non-secret prefix used to identify a key in listings
// and logs.
func Keytag(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
