package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore keeps one session row per profile in client_sessions.
type SQLStore struct {
	db      *sql.DB
	profile string
}

func NewSQLStore(db *sql.DB, profile string) *SQLStore {
	return &SQLStore{db: db, profile: profile}
}

func (s *SQLStore) Load(ctx context.Context) (*Session, error) {
	const q = `SELECT payload FROM client_sessions WHERE profile = $1`
	var payload []byte
	if err := s.db.QueryRowContext(ctx, q, s.profile).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", s.profile, err)
	}
	return &sess, nil
}

func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO client_sessions (profile, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, q, s.profile, string(payload), time.Now().UTC())
	return err
}

func (s *SQLStore) Clear(ctx context.Context) error {
	const q = `DELETE FROM client_sessions WHERE profile = $1`
	_, err := s.db.ExecContext(ctx, q, s.profile)
	return err
}
