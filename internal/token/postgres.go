package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool used by PostgresStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps the credential as one row of oauth_credentials, keyed by name.
type PostgresStore struct {
	db   DBTX
	name string
}

// NewPostgresStore returns a store for the row called name.
func NewPostgresStore(db DBTX, name string) *PostgresStore {
	return &PostgresStore{db: db, name: name}
}

const (
	loadCredentialSQL = `
		SELECT access_token, refresh_token, user_id, expires_at
		FROM oauth_credentials
		WHERE name = $1`

	saveCredentialSQL = `
		INSERT INTO oauth_credentials (name, access_token, refresh_token, user_id, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (name) DO UPDATE SET
			access_token  = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			user_id       = EXCLUDED.user_id,
			expires_at    = EXCLUDED.expires_at,
			updated_at    = NOW()`
)

// Load reads the row.
func (s *PostgresStore) Load(ctx context.Context) (Credential, error) {
	var (
		cred    Credential
		expires *time.Time
	)
	err := s.db.QueryRow(ctx, loadCredentialSQL, s.name).
		Scan(&cred.AccessToken, &cred.RefreshToken, &cred.UserID, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credential %q: %w", s.name, err)
	}
	if expires != nil {
		cred.ExpiresAt = expires.UTC()
	}
	return cred, nil
}

// Save upserts the row in a single statement.
func (s *PostgresStore) Save(ctx context.Context, cred Credential) error {
	var expires *time.Time
	if !cred.ExpiresAt.IsZero() {
		expires = &cred.ExpiresAt
	}
	if _, err := s.db.Exec(ctx, saveCredentialSQL, s.name, cred.AccessToken, cred.RefreshToken, cred.UserID, expires); err != nil {
		return fmt.Errorf("failed to save credential %q: %w", s.name, err)
	}
	return nil
}
