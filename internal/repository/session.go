package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Storage keys. Both are written and cleared together.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

var (
	ErrSessionNotFound = errors.New("no persisted session")
	ErrPartialSession  = errors.New("persisted session is incomplete")
)

// SessionRepository persists the (token, user) pair in a local key-value table.
type SessionRepository struct {
	db     *sql.DB
	upsert string
}

// NewSessionRepository creates a new SessionRepository for the given driver.
func NewSessionRepository(db *sql.DB, driver string) *SessionRepository {
	upsert := `INSERT INTO session_kv (item_key, item_value) VALUES (?, ?)
		ON CONFLICT(item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = CURRENT_TIMESTAMP`
	if driver == DriverMySQL {
		upsert = `INSERT INTO session_kv (item_key, item_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE item_value = VALUES(item_value)`
	}
	return &SessionRepository{db: db, upsert: upsert}
}

// Save writes the token and serialized user in a single transaction.
func (r *SessionRepository) Save(ctx context.Context, token string, user []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.upsert, KeyToken, token); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.upsert, KeyUser, string(user)); err != nil {
		return err
	}

	return tx.Commit()
}

// Load returns the persisted token and serialized user.
func (r *SessionRepository) Load(ctx context.Context) (string, []byte, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_key, item_value FROM session_kv WHERE item_key IN (?, ?)`, KeyToken, KeyUser)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()

	values := make(map[string]string, 2)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return "", nil, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return "", nil, err
	}

	token, hasToken := values[KeyToken]
	user, hasUser := values[KeyUser]
	switch {
	case !hasToken && !hasUser:
		return "", nil, ErrSessionNotFound
	case !hasToken || !hasUser || token == "":
		return "", nil, ErrPartialSession
	}

	return token, []byte(user), nil
}

// Token returns the persisted bearer token, or "" when none is stored.
func (r *SessionRepository) Token(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT item_value FROM session_kv WHERE item_key = ?`, KeyToken).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return token, err
}

// Clear removes both keys in a single transaction. Clearing an empty store is not an error.
func (r *SessionRepository) Clear(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_kv WHERE item_key IN (?, ?)`, KeyToken, KeyUser); err != nil {
		return err
	}

	return tx.Commit()
}
