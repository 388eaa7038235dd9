package session

import (
	"context"
	"database/sql"
	"errors"
)

// SQLiteStore keeps the command line client's token in a local file.
type SQLiteStore struct {
	DB *sql.DB
}

func (s *SQLiteStore) Load(ctx context.Context, clientID string) (string, error) {
	var token string
	err := s.DB.QueryRowContext(ctx,
		`SELECT token FROM client_sessions WHERE client_id = ? LIMIT 1`, clientID,
	).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return token, nil
}

func (s *SQLiteStore) Save(ctx context.Context, clientID, token string) error {
	const query = `
INSERT INTO client_sessions (client_id, token, created_at, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT (client_id) DO UPDATE SET
  token = excluded.token,
  updated_at = CURRENT_TIMESTAMP`
	_, err := s.DB.ExecContext(ctx, query, clientID, token)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, clientID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM client_sessions WHERE client_id = ?`, clientID)
	return err
}
