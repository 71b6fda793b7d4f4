package ownership

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteKV stores values in the kv_store table.
type SQLiteKV struct {
	DB *sql.DB
}

func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{DB: db}
}

func (r *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT value
		FROM kv_store
		WHERE key = ?
	`, key)

	var v string
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *SQLiteKV) Set(ctx context.Context, key, value string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteKV) SetIfEmpty(ctx context.Context, key, value string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
		WHERE trim(kv_store.value, ' ' || char(9) || char(10) || char(13)) = ''
	`, key, value)
	if err != nil {
		return false, fmt.Errorf("set-if-empty %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
