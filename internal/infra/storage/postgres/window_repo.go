package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/ingestor/internal/core/domain"
)

type windowRow struct {
	ID           string       `db:"id"`
	SourceID     string       `db:"source_id"`
	ScanType     string       `db:"scan_type"`
	From         sql.NullTime `db:"window_from"`
	To           time.Time    `db:"window_to"`
	Partial      bool         `db:"partial"`
	Attempts     int          `db:"attempts"`
	DispatchedAt time.Time    `db:"dispatched_at"`
}

const insertWindow = `
	INSERT INTO windows (id, source_id, scan_type, window_from, window_to, partial,
		attempts, dispatched_at)
	VALUES (:id, :source_id, :scan_type, :window_from, :window_to, :partial,
		:attempts, :dispatched_at)`

func newWindowRow(w *domain.WindowRecord) windowRow {
	return windowRow{
		ID:           w.ID,
		SourceID:     string(w.SourceID),
		ScanType:     string(w.ScanType),
		From:         nullTime(w.From),
		To:           w.To.UTC(),
		Partial:      w.Partial,
		Attempts:     w.Attempts,
		DispatchedAt: w.DispatchedAt.UTC(),
	}
}

// WindowRepo implements storage.WindowRepository using PostgreSQL.
type WindowRepo struct {
	db *DB
}

// NewWindowRepo creates a new PostgreSQL window repository.
func NewWindowRepo(db *DB) *WindowRepo {
	return &WindowRepo{db: db}
}

// Record appends a dispatched window.
func (r *WindowRepo) Record(ctx context.Context, record *domain.WindowRecord) error {
	return recordWindow(ctx, r.db, record)
}

// ListRecent returns the latest windows of a source, newest first.
func (r *WindowRepo) ListRecent(
	ctx context.Context,
	sourceID domain.SourceID,
	limit int,
) ([]*domain.WindowRecord, error) {
	var rows []windowRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, source_id, scan_type, window_from, window_to, partial, attempts, dispatched_at
		FROM windows
		WHERE source_id = $1
		ORDER BY dispatched_at DESC
		LIMIT $2`, string(sourceID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}

	records := make([]*domain.WindowRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &domain.WindowRecord{
			ID:           row.ID,
			SourceID:     domain.SourceID(row.SourceID),
			ScanType:     domain.ScanType(row.ScanType),
			From:         timePtr(row.From),
			To:           row.To,
			Partial:      row.Partial,
			Attempts:     row.Attempts,
			DispatchedAt: row.DispatchedAt,
		})
	}
	return records, nil
}

// DeleteOlderThan prunes windows dispatched before the unix timestamp.
func (r *WindowRepo) DeleteOlderThan(ctx context.Context, before int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM windows WHERE dispatched_at < $1`, time.Unix(before, 0).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune windows: %w", err)
	}
	return res.RowsAffected()
}

func recordWindow(ctx context.Context, exec sqlx.ExtContext, record *domain.WindowRecord) error {
	if _, err := sqlx.NamedExecContext(ctx, exec, insertWindow, newWindowRow(record)); err != nil {
		return fmt.Errorf("failed to record window: %w", err)
	}
	return nil
}
