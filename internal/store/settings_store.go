package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SettingsStore is the durable key/value table behind the settings service.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT setting_key, setting_value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Get returns ok=false for a key that was never written.
func (s *SettingsStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT setting_value FROM settings WHERE setting_key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	return value, true, nil
}

// Upsert writes every pair in one transaction. Last writer wins.
func (s *SettingsStore) Upsert(ctx context.Context, values map[string]string) error {
	return withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
				ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value)`, key, value)
			if err != nil {
				return fmt.Errorf("failed to save setting %s: %w", key, err)
			}
		}
		return nil
	})
}
