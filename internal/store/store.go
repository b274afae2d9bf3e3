// Package store implements EntryStore: typed, cached persistence for
// accounts, trustlines, and offers, on top of a squirrel+sqlx+go-sqlite3+
// sql-migrate stack.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stellar/go/support/errors"

	"github.com/stellar/ledgerclose/internal/ledger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrStorageInvariantViolation is returned when a write affects a number of
// rows other than the one expected, or when a cached entry disagrees with
// storage — an unrecoverable condition per spec §7 stratum 3: it indicates
// corruption or a consensus-breaking bug and must abort the whole close.
var ErrStorageInvariantViolation = errors.New("storage invariant violation")

// Store is the EntryStore: a SQLite-backed session plus the read-through
// cache sitting in front of it.
type Store struct {
	db    *sqlx.DB
	cache *ledger.Cache
}

// Open opens (creating if needed) a SQLite database at path, runs pending
// migrations, and configures WAL mode: write-ahead logging with manual
// checkpointing and NORMAL synchronous durability.
//
// Manual checkpointing (_wal_autocheckpoint=0) means a concurrent
// checkpoint or another process's open transaction can make the initial
// migration run hit SQLITE_BUSY; that's retried with a short constant
// backoff rather than failing startup outright.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_wal_autocheckpoint=0&_synchronous=NORMAL", path))
	if err != nil {
		return nil, errors.Wrap(err, "open failed")
	}

	migrateBackoff := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 5)
	if err := backoff.Retry(func() error { return runMigrations(db.DB) }, migrateBackoff); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not run migrations")
	}
	return &Store{db: db, cache: ledger.NewCache()}, nil
}

func runMigrations(db *sql.DB) error {
	m := &migrate.AssetMigrationSource{
		Asset: migrations.ReadFile,
		AssetDir: func() func(string) ([]string, error) {
			return func(path string) ([]string, error) {
				entries, err := migrations.ReadDir(path)
				if err != nil {
					return nil, err
				}
				names := make([]string, 0, len(entries))
				for _, e := range entries {
					names = append(names, e.Name())
				}
				return names, nil
			}
		}(),
		Dir: "migrations",
	}
	_, err := migrate.ExecMax(db, "sqlite3", m, migrate.Up, 0)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Cache exposes the read-through cache shared by every Tx opened against
// this store.
func (s *Store) Cache() *ledger.Cache {
	return s.cache
}

// Tx is one root SQL transaction, the unit the close protocol commits
// atomically (§4.8 step 6). It bundles the four typed repositories; the
// header chain is written through Headers. The sqlx transaction and the
// squirrel statement builder are unexported and used by the repositories.
type Tx struct {
	sqlTx   *sqlx.Tx
	builder sq.StatementBuilderType
	Accounts   *AccountRepo
	TrustLines *TrustLineRepo
	Offers     *OfferRepo
	Headers    *HeaderRepo
}

// Begin opens a new root transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	builder := sq.StatementBuilder.RunWith(sqlTx)
	tx := &Tx{sqlTx: sqlTx, builder: builder}
	tx.Accounts = &AccountRepo{tx: tx, cache: s.cache}
	tx.TrustLines = &TrustLineRepo{tx: tx, cache: s.cache}
	tx.Offers = &OfferRepo{tx: tx, cache: s.cache}
	tx.Headers = &HeaderRepo{tx: tx}
	return tx, nil
}

// WithTx runs fn inside a fresh root transaction (§4.8 step 6's "commit
// root delta atomically" unit), committing on success and rolling back if
// fn returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, beginErr := s.Begin(ctx)
	if beginErr != nil {
		return beginErr
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Wrap(err, "rollback failed: "+rerr.Error())
		}
		return err
	}
	return tx.Commit()
}

// Commit commits the underlying SQL transaction.
func (t *Tx) Commit() error {
	return t.sqlTx.Commit()
}

// Rollback aborts the underlying SQL transaction, used on
// ErrStorageInvariantViolation and on any other fatal close failure.
func (t *Tx) Rollback() error {
	return t.sqlTx.Rollback()
}

// Savepoint opens a SQL SAVEPOINT named name. Operation appliers write to
// the shared root Tx eagerly rather than buffering into the delta tree
// (§9's "buffered model" tradeoff), so a savepoint per operation is what
// gives a failed operation the same all-or-nothing discard a buffered
// design would get for free.
func (t *Tx) Savepoint(name string) error {
	_, err := t.sqlTx.Exec("SAVEPOINT " + name)
	return err
}

// ReleaseSavepoint commits the work done since Savepoint(name), folding it
// into the enclosing transaction.
func (t *Tx) ReleaseSavepoint(name string) error {
	_, err := t.sqlTx.Exec("RELEASE SAVEPOINT " + name)
	return err
}

// RollbackToSavepoint undoes every write made since Savepoint(name) without
// aborting the enclosing transaction.
func (t *Tx) RollbackToSavepoint(name string) error {
	_, err := t.sqlTx.Exec("ROLLBACK TO SAVEPOINT " + name)
	return err
}

// checkAffectedOne verifies a write affected exactly one row, translating
// any other outcome into ErrStorageInvariantViolation (§4.1).
func checkAffectedOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if n != 1 {
		return errors.Wrap(ErrStorageInvariantViolation, fmt.Sprintf("%s affected %d rows, expected 1", op, n))
	}
	return nil
}
