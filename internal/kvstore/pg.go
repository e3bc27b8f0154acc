package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PG implements Store on a single Postgres key/value table. Used when the
// console session must survive process restarts on a shared workstation
// backend.
type PG struct {
	db *sql.DB
}

var _ Store = (*PG)(nil)

// OpenPG connects to Postgres using the pgx stdlib driver.
func OpenPG(dsn string) (*PG, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Single logical session per process; a tiny pool is plenty.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PG{db: db}, nil
}

// NewPG wraps an existing database handle. Used by tests.
func NewPG(db *sql.DB) *PG { return &PG{db: db} }

func (s *PG) Close() error { return s.db.Close() }

func (s *PG) DB() *sql.DB { return s.db }

// EnsureSchema creates the backing table when it does not exist.
func (s *PG) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `create table if not exists console_kv (k text primary key, v text not null)`)
	return err
}

func (s *PG) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `select v from console_kv where k=$1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *PG) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into console_kv(k, v) values ($1,$2)
		on conflict (k) do update set v = excluded.v
	`, key, value)
	return err
}

func (s *PG) SetMany(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range pairs {
		if _, err := tx.ExecContext(ctx, `
			insert into console_kv(k, v) values ($1,$2)
			on conflict (k) do update set v = excluded.v
		`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PG) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `delete from console_kv where k=$1`, k); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PG) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `delete from console_kv`)
	return err
}
