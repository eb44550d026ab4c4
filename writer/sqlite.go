package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
)

const backendSQLite = "sqlite"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	name     TEXT PRIMARY KEY,
	shape    TEXT NOT NULL,
	data     BLOB NOT NULL,
	checksum INTEGER NOT NULL,
	updated  INTEGER NOT NULL
)`

// SQLite stores entries in a SQLite database file.
//
// Each entry is one row holding the encoded array and its xxh3 checksum.
// Fill is a read-modify-write of the row inside a transaction.
type SQLite struct {
	path string
	opts options

	mu sync.Mutex
	db *sql.DB
}

var (
	_ types.Writer = (*SQLite)(nil)
	_ types.Reader = (*SQLite)(nil)
)

// NewSQLite creates a writer for the database at path. The file is created
// on Open if it does not exist.
func NewSQLite(path string, opts ...Option) *SQLite {
	return &SQLite{path: path, opts: newOptions(opts)}
}

// Open opens the database and creates the entries table.
func (s *SQLite) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			s.opts.logger.Debug("failed to apply sqlite pragma", "pragma", pragma, "error", err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.db = db
	s.opts.logger.Debug("sqlite writer opened", "path", s.path)

	return nil
}

// Close closes the database.
func (s *SQLite) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil

	return err
}

// Reserve stores a zero-filled entry, replacing any existing one.
func (s *SQLite) Reserve(ctx context.Context, entry string, shape []int) error {
	start := time.Now()
	if err := ndarray.ValidateShape(shape); err != nil {
		return s.opts.observe(backendSQLite, "reserve", entry, start, err)
	}

	return s.opts.observe(backendSQLite, "reserve", entry, start, s.put(ctx, entry, ndarray.Zeros(shape...)))
}

// Write stores data as entry, replacing any existing one.
func (s *SQLite) Write(ctx context.Context, entry string, data *ndarray.Array) error {
	start := time.Now()

	return s.opts.observe(backendSQLite, "write", entry, start, s.put(ctx, entry, data))
}

// Fill writes data into the region of entry selected by expr.
func (s *SQLite) Fill(ctx context.Context, entry string, data *ndarray.Array, expr index.Expression) error {
	start := time.Now()

	err := func() error {
		db, err := s.handle()
		if err != nil {
			return err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		cur, err := s.load(ctx, tx, entry)
		if err != nil {
			return err
		}
		if err := cur.Assign(expr, data); err != nil {
			return err
		}
		if err := s.store(ctx, tx, entry, cur); err != nil {
			return err
		}

		return tx.Commit()
	}()

	return s.opts.observe(backendSQLite, "fill", entry, start, err)
}

// Read returns entry, verifying its checksum unless verification is disabled.
func (s *SQLite) Read(ctx context.Context, entry string) (*ndarray.Array, error) {
	start := time.Now()

	db, err := s.handle()
	if err != nil {
		return nil, s.opts.observe(backendSQLite, "read", entry, start, err)
	}
	arr, err := s.load(ctx, db, entry)

	return arr, s.opts.observe(backendSQLite, "read", entry, start, err)
}

// Entries returns the stored entry names in sorted order.
func (s *SQLite) Entries(ctx context.Context) ([]string, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM entries ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan entry name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

func (s *SQLite) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, types.ErrWriterNotOpen
	}

	return s.db, nil
}

func (s *SQLite) put(ctx context.Context, entry string, data *ndarray.Array) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	return s.store(ctx, db, entry, data)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) store(ctx context.Context, ex execer, entry string, data *ndarray.Array) error {
	blob, err := data.MarshalBinary()
	if err != nil {
		return err
	}
	shape, err := json.Marshal(data.Shape())
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO entries (name, shape, data, checksum, updated) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET shape = excluded.shape, data = excluded.data,
		 checksum = excluded.checksum, updated = excluded.updated`,
		entry, string(shape), blob, int64(Checksum(blob)), time.Now().UnixNano(), //nolint:gosec // checksum bits are stored as-is
	)
	if err != nil {
		return fmt.Errorf("store entry %q: %w", entry, err)
	}
	s.opts.metrics.RecordBytesWritten(backendSQLite, len(blob))

	return nil
}

func (s *SQLite) load(ctx context.Context, ex execer, entry string) (*ndarray.Array, error) {
	var (
		blob []byte
		sum  int64
	)
	err := ex.QueryRowContext(ctx, "SELECT data, checksum FROM entries WHERE name = ?", entry).Scan(&blob, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", types.ErrEntryNotFound, entry)
	}
	if err != nil {
		return nil, fmt.Errorf("load entry %q: %w", entry, err)
	}

	if s.opts.verify {
		if err := verifyChecksum(entry, blob, uint64(sum)); err != nil { //nolint:gosec // checksum bits are stored as-is
			return nil, err
		}
	}

	return ndarray.Decode(blob)
}
