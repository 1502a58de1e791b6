package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parlatrack/parlatrack/internal/auth"
	"github.com/parlatrack/parlatrack/internal/storage"
)

// CreateKey mints a new API key with the given scope and returns the raw key
// exactly once. Only the salted hash is stored.
func (s *SQLiteStorage) CreateKey(ctx context.Context, scope auth.Scope, createdBy int64, expiresAt *time.Time) (string, error) {
	if !scope.IsValid() {
		return "", &storage.ValidationError{Err: fmt.Errorf("unknown scope %q", scope)}
	}
	key, err := auth.GenerateKey()
	if err != nil {
		return "", err
	}
	salt, err := auth.NewSalt()
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, salt, keytag, scope, created_by, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		auth.HashKey(key, salt), salt, auth.Keytag(key), string(scope), createdBy, canonTSPtr(expiresAt))
	if err != nil {
		return "", fmt.Errorf("failed to store api key: %w", err)
	}
	s.log.Info("api key created",
		zap.String("keytag", auth.Keytag(key)), zap.String("scope", string(scope)))
	return key, nil
}

// RevokeKey marks the key with the given tag as deleted. Revoking an already
// revoked key reports ErrNotModified.
func (s *SQLiteStorage) RevokeKey(ctx context.Context, keytag string) error {
	var deleted bool
	err := s.db.QueryRowContext(ctx,
		`SELECT deleted FROM api_keys WHERE keytag = ?`, keytag).Scan(&deleted)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up api key %s: %w", keytag, err)
	}
	if deleted {
		return storage.ErrNotModified
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET deleted = 1 WHERE keytag = ?`, keytag); err != nil {
		return fmt.Errorf("failed to revoke api key %s: %w", keytag, err)
	}
	s.log.Info("api key revoked", zap.String("keytag", keytag))
	return nil
}

// ValidateKey authenticates a raw key and returns its claims. The key's
// last_used timestamp is refreshed on success.
func (s *SQLiteStorage) ValidateKey(ctx context.Context, rawKey string) (auth.Claims, error) {
	if rawKey == "" {
		return auth.Claims{}, auth.ErrKeyMissing
	}

	var id int64
	var hash, salt, scope string
	var deleted bool
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key_hash, salt, scope, deleted, expires_at
		FROM api_keys WHERE keytag = ?`, auth.Keytag(rawKey)).Scan(
		&id, &hash, &salt, &scope, &deleted, &expiresAt)
	if err == sql.ErrNoRows {
		return auth.Claims{}, auth.ErrKeyUnknown
	}
	if err != nil {
		return auth.Claims{}, fmt.Errorf("failed to look up api key: %w", err)
	}
	if auth.HashKey(rawKey, salt) != hash {
		return auth.Claims{}, auth.ErrKeyUnknown
	}
	if deleted {
		return auth.Claims{}, auth.ErrKeyDeleted
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		return auth.Claims{}, auth.ErrKeyExpired
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used = ? WHERE id = ?`,
		canonTS(time.Now()), id); err != nil {
		return auth.Claims{}, fmt.Errorf("failed to refresh api key last_used: %w", err)
	}
	return auth.Claims{Scope: auth.Scope(scope), KeyID: id}, nil
}

// EnsureKey upserts a known key value, typically the configured keyadder
// bootstrap key. Idempotent.
func (s *SQLiteStorage) EnsureKey(ctx context.Context, rawKey string, scope auth.Scope) error {
	if rawKey == "" {
		return nil
	}
	keytag := auth.Keytag(rawKey)

	var id int64
	var salt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, salt FROM api_keys WHERE keytag = ?`, keytag).Scan(&id, &salt)
	if err == nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE api_keys SET key_hash = ?, scope = ?, deleted = 0, expires_at = NULL
			 WHERE id = ?`, auth.HashKey(rawKey, salt), string(scope), id)
		if err != nil {
			return fmt.Errorf("failed to refresh bootstrap key: %w", err)
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up bootstrap key: %w", err)
	}

	salt, err = auth.NewSalt()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, salt, keytag, scope, created_by)
		VALUES (?, ?, ?, ?, NULL)`,
		auth.HashKey(rawKey, salt), salt, keytag, string(scope))
	if err != nil {
		return fmt.Errorf("failed to store bootstrap key: %w", err)
	}
	s.log.Info("bootstrap key installed", zap.String("keytag", keytag), zap.String("scope", string(scope)))
	return nil
}
