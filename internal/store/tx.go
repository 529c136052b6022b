package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tx is a transaction exposing the same table API as Store.
type Tx struct {
	tx *sql.Tx
	tableSet
}

// BeginTx starts a transaction. Callers must Commit or Rollback it;
// `defer tx.Rollback()` right after BeginTx is always safe.
func (s *Store) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx, tableSet: tableSet{q: tx, meta: s.meta}}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is
// a no-op.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back otherwise. The error returned by fn is passed through as is,
// so callers can still match it with errors.Is and errors.As.
func (s *Store) WithTx(ctx context.Context, fn func(Tables) error) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
