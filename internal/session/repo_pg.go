package session

import (
	"context"
	"database/sql"
	"errors"
)

// PGStore keeps web client tokens in Postgres so they survive restarts.
type PGStore struct {
	DB *sql.DB
}

func (s *PGStore) Load(ctx context.Context, clientID string) (string, error) {
	const query = `
SELECT token
FROM client_sessions
WHERE client_id = $1
LIMIT 1`
	var token string
	if err := s.DB.QueryRowContext(ctx, query, clientID).Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return token, nil
}

func (s *PGStore) Save(ctx context.Context, clientID, token string) error {
	const query = `
INSERT INTO client_sessions (client_id, token, created_at, updated_at)
VALUES ($1, $2, now(), now())
ON CONFLICT (client_id) DO UPDATE SET
  token = EXCLUDED.token,
  updated_at = now()`
	_, err := s.DB.ExecContext(ctx, query, clientID, token)
	return err
}

func (s *PGStore) Delete(ctx context.Context, clientID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM client_sessions WHERE client_id = $1`, clientID)
	return err
}
