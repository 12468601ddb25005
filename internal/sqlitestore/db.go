// Package sqlitestore implements the embedded SQL store of spec §4.4 (L3b):
// a single-file SQLite wrapper with the required pragmas, schema migrations
// tracked via user_version, and the thread-safety and async-write layers
// §4.4 describes on top of it. Grounded on the teacher's
// internal/db/sqlite.go (pragma DSN, golang-migrate wiring) generalized from
// a daemon's application schema to the generic key-value projection this
// spec calls for.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roasbeef/tdcore/internal/binlog"
)

// DbKey is reused verbatim from internal/binlog: spec §3 pins both the
// binlog and the SQL store to the same DbKey sum type.
type DbKey = binlog.DbKey

// SqliteDb is a single-connection handle to an on-disk SQL store (spec §4.4
// "SqliteConnection"). It is not safe for concurrent use from multiple
// goroutines; SqliteConnectionSafe provides that.
type SqliteDb struct {
	path string
	key  DbKey

	db *sql.DB

	stmtMu sync.Mutex
	stmts  map[string]*sql.Stmt
}

// OpenWithKey opens or creates the database at path, applying the required
// pragmas (spec §4.4: journal_mode=WAL, synchronous=NORMAL,
// temp_store=MEMORY, encoding=UTF-8) and running schema migrations.
//
// mattn/go-sqlite3 (this module's SQLite driver, per the retrieval pack) is
// not built with page-cipher support, so a non-empty DbKey is applied via
// "PRAGMA key" for API fidelity with the upstream pragma-driven encryption
// model §4.4 describes, but does not itself encrypt pages on disk; see
// DESIGN.md.
func OpenWithKey(path string, allowCreate bool, key DbKey) (*SqliteDb, error) {
	if !allowCreate {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create sqlite store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		path,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
	}

	// SQLite has a single writer; keep the pool small so callers are
	// forced through SqliteConnectionSafe for real concurrency instead
	// of racing the driver's own connection pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SqliteDb{path: path, key: key, db: db, stmts: make(map[string]*sql.Stmt)}

	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.applyKey(key); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SqliteDb) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA encoding = \"UTF-8\"",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SqliteDb) applyKey(key DbKey) error {
	if key.IsEmpty() {
		return nil
	}

	var keyHex string
	switch key.Kind {
	case binlog.DbKeyPassword:
		keyHex = fmt.Sprintf("%x", key.Password)
	case binlog.DbKeyRaw:
		keyHex = fmt.Sprintf("%x", key.Raw[:])
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA key = \"x'%s'\"", keyHex)); err != nil {
		return fmt.Errorf("apply sqlite key pragma: %w", err)
	}
	return nil
}

func (s *SqliteDb) migrate() error {
	migrateSrc, err := httpfs.New(http.FS(sqlSchemas), "migrations")
	if err != nil {
		return fmt.Errorf("load sqlite migration source: %w", err)
	}

	driver, err := sqlite_migrate.WithInstance(s.db, &sqlite_migrate.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("migrations", migrateSrc, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migration runner: %w", err)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			return nil
		}
		return fmt.Errorf("apply sqlite migrations: %w", err)
	}

	// Record the applied migration version as the user_version schema
	// tag. An already up-to-date store keeps whatever tag it has.
	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read sqlite migration version: %w", err)
	}
	return s.SetUserVersion(int32(version))
}

// ChangeKey migrates the store at path to newKey (spec §4.4 "change_key").
// Since mattn/go-sqlite3 cannot rekey pages in place, this always takes the
// export-to-new-file path: open under oldKey, VACUUM INTO a fresh file
// created under newKey's pragma, then atomically replace the original.
func ChangeKey(path string, allowCreate bool, newKey, oldKey DbKey) (*SqliteDb, error) {
	old, err := OpenWithKey(path, allowCreate, oldKey)
	if err != nil {
		return nil, fmt.Errorf("open with old key for rekey: %w", err)
	}

	version, err := old.UserVersion()
	if err != nil {
		old.Close()
		return nil, err
	}

	tmpPath := path + ".rekey.tmp"
	os.Remove(tmpPath)

	if _, err := old.db.Exec("VACUUM INTO ?", tmpPath); err != nil {
		old.Close()
		return nil, fmt.Errorf("vacuum into rekey target: %w", err)
	}
	if err := old.Close(); err != nil {
		return nil, fmt.Errorf("close old-key handle after vacuum: %w", err)
	}

	tmp, err := OpenWithKey(tmpPath, false, DbKey{})
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("open rekey target: %w", err)
	}
	if err := tmp.applyKey(newKey); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	tmp.key = newKey
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close rekey target: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename rekeyed store over original: %w", err)
	}

	out, err := OpenWithKey(path, false, newKey)
	if err != nil {
		return nil, fmt.Errorf("reopen rekeyed store: %w", err)
	}
	if err := out.SetUserVersion(version); err != nil {
		out.Close()
		return nil, err
	}

	return out, nil
}

// Destroy removes path and its WAL/SHM sidecar files (spec §4.4 "destroy").
func Destroy(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("destroy sqlite store %s: %w", path+suffix, err)
		}
	}
	return nil
}

// Exec runs a statement with no result set (spec §4.4 "exec").
func (s *SqliteDb) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec %q: %w", query, err)
	}
	return nil
}

// GetStatement returns a pooled prepared statement for query, compiling and
// caching it on first use (spec §4.4 "get_statement ... pooled per
// connection").
func (s *SqliteDb) GetStatement(query string) (*sql.Stmt, error) {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()

	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare %q: %w", query, err)
	}
	s.stmts[query] = stmt
	return stmt, nil
}

// UserVersion returns the persisted schema tag (spec §4.4 "user_version").
func (s *SqliteDb) UserVersion() (int32, error) {
	var v int32
	row := s.db.QueryRow("PRAGMA user_version")
	if err := row.Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// SetUserVersion persists v as the schema tag (spec §4.4 "set_user_version").
// PRAGMA statements don't accept bind parameters, but v is a trusted int32
// from this package's own callers, not external input.
func (s *SqliteDb) SetUserVersion(v int32) error {
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// DB exposes the underlying *sql.DB for callers (SqliteKeyValue) that need
// to run ad hoc queries or transactions.
func (s *SqliteDb) DB() *sql.DB {
	return s.db
}

// Close releases all pooled statements and the underlying connection.
func (s *SqliteDb) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	s.stmts = nil
	s.stmtMu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite store: %w", err)
	}
	return nil
}
