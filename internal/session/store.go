package session

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// tokenKey is the single well-known storage key for the household session
// token. No component duplicates the token into a second location.
const tokenKey = "household_token"

// Store owns the bearer token for the current household session. It is the
// single source of truth for "is a household logged in". Persistence failures
// are non-fatal and behave as "no token", forcing re-authentication.
type Store struct {
	db         *sql.DB
	passphrase string
	logger     *slog.Logger
}

func NewStore(db *sql.DB, passphrase string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, passphrase: passphrase, logger: logger}
}

// Token returns the stored session token, if any. Unreadable or tampered
// blobs are treated as an absent token.
func (s *Store) Token() (string, bool) {
	var sealed []byte
	err := s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, tokenKey).Scan(&sealed)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		s.logger.Warn("read session token", "error", err)
		return "", false
	}

	token, err := open(s.passphrase, sealed)
	if err != nil {
		s.logger.Warn("unseal session token", "error", err)
		return "", false
	}
	return string(token), true
}

// SetToken persists the session token for the life of the local session.
func (s *Store) SetToken(token string) error {
	sealed, err := seal(s.passphrase, []byte(token))
	if err != nil {
		return fmt.Errorf("seal session token: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO session (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		tokenKey, sealed, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store session token: %w", err)
	}
	return nil
}

// ClearToken removes the stored token. Idempotent.
func (s *Store) ClearToken() {
	if _, err := s.db.Exec(`DELETE FROM session WHERE key = ?`, tokenKey); err != nil {
		s.logger.Warn("clear session token", "error", err)
	}
}

// HasValidToken reports token presence only. Expiry is discovered reactively
// through a 401 from the remote API, never parsed locally.
func (s *Store) HasValidToken() bool {
	_, ok := s.Token()
	return ok
}
