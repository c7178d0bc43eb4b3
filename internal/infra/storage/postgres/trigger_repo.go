package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/storage"
)

const triggerColumns = `source_id, strategy, created_at, last_full_scan, forward_cursor,
	backward_cursor, last_scan_type, last_scan_type_count, version, updated_at`

type triggerRow struct {
	SourceID          string       `db:"source_id"`
	Strategy          string       `db:"strategy"`
	CreatedAt         time.Time    `db:"created_at"`
	LastFullScan      sql.NullTime `db:"last_full_scan"`
	ForwardCursor     sql.NullTime `db:"forward_cursor"`
	BackwardCursor    sql.NullTime `db:"backward_cursor"`
	LastScanType      string       `db:"last_scan_type"`
	LastScanTypeCount int          `db:"last_scan_type_count"`
	Version           int64        `db:"version"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

func newTriggerRow(t *domain.Trigger) triggerRow {
	return triggerRow{
		SourceID:          string(t.SourceID),
		Strategy:          string(t.Strategy),
		CreatedAt:         t.CreatedAt.UTC(),
		LastFullScan:      nullTime(t.LastFullScan),
		ForwardCursor:     nullTime(t.ForwardCursor),
		BackwardCursor:    nullTime(t.BackwardCursor),
		LastScanType:      string(t.LastScanType),
		LastScanTypeCount: t.LastScanTypeCount,
		Version:           t.Version,
		UpdatedAt:         t.UpdatedAt.UTC(),
	}
}

func (r triggerRow) toDomain() *domain.Trigger {
	return &domain.Trigger{
		SourceID:          domain.SourceID(r.SourceID),
		Strategy:          domain.StrategyKind(r.Strategy),
		CreatedAt:         r.CreatedAt,
		LastFullScan:      timePtr(r.LastFullScan),
		ForwardCursor:     timePtr(r.ForwardCursor),
		BackwardCursor:    timePtr(r.BackwardCursor),
		LastScanType:      domain.ScanType(r.LastScanType),
		LastScanTypeCount: r.LastScanTypeCount,
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
}

// TriggerRepo implements storage.TriggerRepository using PostgreSQL.
type TriggerRepo struct {
	db *DB
}

// NewTriggerRepo creates a new PostgreSQL trigger repository.
func NewTriggerRepo(db *DB) *TriggerRepo {
	return &TriggerRepo{db: db}
}

// Get retrieves the trigger of a source.
func (r *TriggerRepo) Get(ctx context.Context, sourceID domain.SourceID) (*domain.Trigger, error) {
	var row triggerRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+triggerColumns+` FROM triggers WHERE source_id = $1`, string(sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrTriggerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trigger: %w", err)
	}
	return row.toDomain(), nil
}

// List retrieves all triggers ordered by source id.
func (r *TriggerRepo) List(ctx context.Context) ([]*domain.Trigger, error) {
	var rows []triggerRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+triggerColumns+` FROM triggers ORDER BY source_id`); err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}

	triggers := make([]*domain.Trigger, 0, len(rows))
	for _, row := range rows {
		triggers = append(triggers, row.toDomain())
	}
	return triggers, nil
}

// Create inserts a new trigger.
func (r *TriggerRepo) Create(ctx context.Context, trigger *domain.Trigger) error {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO triggers (`+triggerColumns+`)
		VALUES (:source_id, :strategy, :created_at, :last_full_scan, :forward_cursor,
			:backward_cursor, :last_scan_type, :last_scan_type_count, :version, :updated_at)
		ON CONFLICT (source_id) DO NOTHING`, newTriggerRow(trigger))
	if err != nil {
		return fmt.Errorf("failed to create trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrTriggerExists
	}
	return nil
}

// Update replaces the trigger if its stored version matches.
func (r *TriggerRepo) Update(ctx context.Context, trigger *domain.Trigger, expectedVersion int64) error {
	return updateTrigger(ctx, r.db, trigger, expectedVersion)
}

// ResetState clears all cursor state of a source.
func (r *TriggerRepo) ResetState(ctx context.Context, sourceID domain.SourceID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE triggers
		SET last_full_scan = NULL, forward_cursor = NULL, backward_cursor = NULL, last_scan_type = '',
			last_scan_type_count = 0, version = version + 1, updated_at = $2
		WHERE source_id = $1`, string(sourceID), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to reset trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrTriggerNotFound
	}
	return nil
}

// Delete removes the trigger of a source.
func (r *TriggerRepo) Delete(ctx context.Context, sourceID domain.SourceID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM triggers WHERE source_id = $1`, string(sourceID))
	if err != nil {
		return fmt.Errorf("failed to delete trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrTriggerNotFound
	}
	return nil
}

// updateTrigger runs the optimistic update on a connection or transaction.
func updateTrigger(
	ctx context.Context,
	exec sqlx.ExtContext,
	trigger *domain.Trigger,
	expectedVersion int64,
) error {
	row := newTriggerRow(trigger)
	query, args, err := sqlx.Named(`
		UPDATE triggers
		SET strategy = :strategy, last_full_scan = :last_full_scan,
			forward_cursor = :forward_cursor, backward_cursor = :backward_cursor,
			last_scan_type = :last_scan_type, last_scan_type_count = :last_scan_type_count,
			version = :version, updated_at = :updated_at
		WHERE source_id = :source_id`, row)
	if err != nil {
		return fmt.Errorf("failed to bind trigger update: %w", err)
	}
	query = exec.Rebind(query) + fmt.Sprintf(" AND version = $%d", len(args)+1)
	args = append(args, expectedVersion)

	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
