package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SqliteKeyValue is the thin (k BLOB PRIMARY KEY, v BLOB) projection spec
// §4.4 "KV tables" describes, operating directly on one SqliteDb. It is not
// safe for concurrent use; SqliteKeyValueSafe adds that.
type SqliteKeyValue struct {
	db *SqliteDb
}

// NewSqliteKeyValue wraps db with the kv-table operations.
func NewSqliteKeyValue(db *SqliteDb) *SqliteKeyValue {
	return &SqliteKeyValue{db: db}
}

// Get returns the stored value for key, or ("", false) if absent.
func (kv *SqliteKeyValue) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	row := kv.db.db.QueryRowContext(ctx, "SELECT v FROM kv WHERE k = ?", key)

	var v []byte
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sqlite kv get: %w", err)
	}
	return v, true, nil
}

// Set upserts key -> value.
func (kv *SqliteKeyValue) Set(ctx context.Context, key, value []byte) error {
	_, err := kv.db.db.ExecContext(ctx,
		`INSERT INTO kv (k, v) VALUES (?, ?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite kv set: %w", err)
	}
	return nil
}

// SetAll upserts every entry in a single transaction (spec §4.4: "Batched
// set_all(map) must be executed inside a single transaction").
func (kv *SqliteKeyValue) SetAll(ctx context.Context, entries map[string][]byte) error {
	return kv.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO kv (k, v) VALUES (?, ?)
			 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for k, v := range entries {
			if _, err := stmt.ExecContext(ctx, []byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Erase removes key, reporting whether it existed.
func (kv *SqliteKeyValue) Erase(ctx context.Context, key []byte) (bool, error) {
	res, err := kv.db.db.ExecContext(ctx, "DELETE FROM kv WHERE k = ?", key)
	if err != nil {
		return false, fmt.Errorf("sqlite kv erase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite kv erase rows affected: %w", err)
	}
	return n > 0, nil
}

// EraseBatch removes every key in keys inside a single transaction (spec
// §4.4: "erase_batch(keys) likewise"), returning the count actually
// removed.
func (kv *SqliteKeyValue) EraseBatch(ctx context.Context, keys [][]byte) (int, error) {
	var removed int64

	err := kv.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "DELETE FROM kv WHERE k = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, k := range keys {
			res, err := stmt.ExecContext(ctx, k)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return int(removed), nil
}

// ApplyBatch upserts sets and removes erases inside a single transaction,
// the grouped-transaction primitive SqliteKeyValueAsync coalesces many
// individual calls down to (spec §4.4: "issues a grouped transaction").
func (kv *SqliteKeyValue) ApplyBatch(ctx context.Context, sets map[string][]byte, erases [][]byte) error {
	return kv.inTx(ctx, func(tx *sql.Tx) error {
		if len(sets) > 0 {
			stmt, err := tx.PrepareContext(ctx,
				`INSERT INTO kv (k, v) VALUES (?, ?)
				 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
			)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for k, v := range sets {
				if _, err := stmt.ExecContext(ctx, []byte(k), v); err != nil {
					return err
				}
			}
		}

		if len(erases) > 0 {
			stmt, err := tx.PrepareContext(ctx, "DELETE FROM kv WHERE k = ?")
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, k := range erases {
				if _, err := stmt.ExecContext(ctx, k); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// GetAll returns every entry currently in the table.
func (kv *SqliteKeyValue) GetAll(ctx context.Context) (map[string][]byte, error) {
	rows, err := kv.db.db.QueryContext(ctx, "SELECT k, v FROM kv")
	if err != nil {
		return nil, fmt.Errorf("sqlite kv get_all: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite kv get_all scan: %w", err)
		}
		out[string(k)] = v
	}
	return out, rows.Err()
}

func (kv *SqliteKeyValue) inTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := kv.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite kv tx: %w", err)
	}

	if err := f(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite kv tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite kv tx: %w", err)
	}
	return nil
}
