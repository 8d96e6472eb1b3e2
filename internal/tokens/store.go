// Package tokens enforces single-use participant tokens. Tokens are defined
// per treatment group in a TOML file; consumption is recorded in a SQLite
// ledger so single-use survives process restarts.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrUnknownToken is returned for tokens not present in any group.
	ErrUnknownToken = errors.New("unknown token")
	// ErrTokenUsed is returned for tokens that were already consumed.
	ErrTokenUsed = errors.New("token already used")
)

type tokensFile struct {
	Groups map[string][]string `toml:"groups"`
}

// Store maps tokens to treatment groups and consumes them atomically.
type Store struct {
	mu     sync.Mutex
	groups map[string]string // token -> group
	db     *sql.DB
}

// NewStore loads the token file and opens the used-token ledger.
func NewStore(tokensPath, ledgerDSN string) (*Store, error) {
	raw, err := os.ReadFile(tokensPath)
	if err != nil {
		return nil, fmt.Errorf("read tokens file %s: %w", tokensPath, err)
	}
	var tf tokensFile
	if _, err := toml.Decode(string(raw), &tf); err != nil {
		return nil, fmt.Errorf("decode tokens file: %w", err)
	}
	if len(tf.Groups) == 0 {
		return nil, fmt.Errorf("tokens file %s defines no groups", tokensPath)
	}

	byToken := make(map[string]string)
	for group, toks := range tf.Groups {
		for _, tok := range toks {
			if prev, ok := byToken[tok]; ok && prev != group {
				return nil, fmt.Errorf("token assigned to both %q and %q", prev, group)
			}
			byToken[tok] = group
		}
	}

	db, err := sql.Open("sqlite3", ledgerDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open token ledger: %w", err)
	}
	// In-memory SQLite gives each connection its own database; pin to one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{groups: byToken, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate token ledger: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS used_tokens (
		token TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		group_name TEXT NOT NULL,
		used_at DATETIME NOT NULL
	)`)
	return err
}

// Lookup returns the token's treatment group without consuming it. It
// reports ErrUnknownToken or ErrTokenUsed the same way Consume does, but a
// passing Lookup does not reserve the token; Consume remains the atomic
// check-and-mark.
func (s *Store) Lookup(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[token]
	if !ok {
		return "", ErrUnknownToken
	}
	used, err := s.isUsed(ctx, token)
	if err != nil {
		return "", err
	}
	if used {
		return "", ErrTokenUsed
	}
	return group, nil
}

func (s *Store) isUsed(ctx context.Context, token string) (bool, error) {
	var existing string
	err := s.db.QueryRowContext(ctx, "SELECT token FROM used_tokens WHERE token = ?", token).Scan(&existing)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check token: %w", err)
	}
}

// Consume validates the token, marks it used, and returns its treatment
// group. The check-and-mark is atomic with respect to concurrent calls.
func (s *Store) Consume(ctx context.Context, token, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[token]
	if !ok {
		return "", ErrUnknownToken
	}

	used, err := s.isUsed(ctx, token)
	if err != nil {
		return "", err
	}
	if used {
		return "", ErrTokenUsed
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO used_tokens (token, session_id, group_name, used_at) VALUES (?, ?, ?, ?)",
		token, sessionID, group, time.Now(),
	); err != nil {
		return "", fmt.Errorf("failed to mark token used: %w", err)
	}
	return group, nil
}

// ValidateGroups checks that every group referenced by a token exists in the
// given set of defined treatment groups.
func (s *Store) ValidateGroups(defined map[string]struct{}) error {
	var missing []string
	seen := make(map[string]struct{})
	for _, group := range s.groups {
		if _, ok := defined[group]; !ok {
			if _, dup := seen[group]; !dup {
				missing = append(missing, group)
				seen[group] = struct{}{}
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("participant tokens reference undefined groups: %v", missing)
	}
	return nil
}

// Close releases the ledger database.
func (s *Store) Close() error {
	return s.db.Close()
}
