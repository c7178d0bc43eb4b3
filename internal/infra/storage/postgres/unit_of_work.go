package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// UnitOfWork bundles all persistence operations into a single database transaction,
// ensuring atomicity (all succeed or all fail).
type UnitOfWork struct {
	tx *sqlx.Tx
}

// NewUnitOfWork creates a new unit of work with an active transaction.
func (db *DB) NewUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Already committed or rolled back
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

// UpdateTrigger applies an optimistic trigger update within the transaction.
func (u *UnitOfWork) UpdateTrigger(ctx context.Context, trigger *domain.Trigger, expectedVersion int64) error {
	return updateTrigger(ctx, u.tx, trigger, expectedVersion)
}

// RecordWindow appends a window record within the transaction.
func (u *UnitOfWork) RecordWindow(ctx context.Context, record *domain.WindowRecord) error {
	return recordWindow(ctx, u.tx, record)
}

// CommitWindow implements storage.Committer.
func (db *DB) CommitWindow(
	ctx context.Context,
	trigger *domain.Trigger,
	expectedVersion int64,
	record *domain.WindowRecord,
) error {
	uow, err := db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = uow.Rollback() }()

	if err := uow.UpdateTrigger(ctx, trigger, expectedVersion); err != nil {
		return err
	}
	if record != nil {
		if err := uow.RecordWindow(ctx, record); err != nil {
			return err
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit window: %w", err)
	}
	return nil
}
