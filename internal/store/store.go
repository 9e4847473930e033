// Package store holds the MySQL-backed persistence for catalog, cart, orders,
// users and settings. All SQL is hand written against database/sql.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/visioncraft/storefront/internal/models"
)

// MySQL server error numbers we react to.
const (
	errDuplicateEntry   = 1062
	errRowIsReferenced  = 1451
	errRowIsReferenced2 = 1217
)

// Querier is implemented by both *sql.DB and *sql.Tx,
// so helpers can run in or out of a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

func isForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == errRowIsReferenced || me.Number == errRowIsReferenced2)
}

// marshalJSON encodes a JSON column value. nil slices and maps become "[]" / "{}".
func marshalJSON(v interface{}, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func unmarshalJSON(raw []byte, dest interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// canonicalOptions returns the options JSON and its merge key.
// encoding/json sorts map keys, so equal option sets always encode identically.
func canonicalOptions(opts models.Options) (string, string, error) {
	if opts == nil {
		opts = models.Options{}
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode options: %w", err)
	}
	sum := sha256.Sum256(raw)
	return string(raw), hex.EncodeToString(sum[:]), nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
