package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"innovate_api/internal/common"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// pick runs on the transaction when one is given, otherwise on the pool.
func pick(db *sql.DB, tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return db
}

// notFound maps sql.ErrNoRows to common.ErrNotFound and wraps anything else with op.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectOne turns an UPDATE/DELETE that touched no rows into ErrNotFound.
func expectOne(op string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func toJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func stringsToJSON(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

func jsonToStrings(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// forUpdate appends a row lock when running inside a transaction.
func forUpdate(tx *sql.Tx) string {
	if tx != nil {
		return " FOR UPDATE"
	}
	return ""
}
