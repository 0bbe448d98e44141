// Package history provides access to the capture_history table for
// recording and querying past scene captures.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartqasa/scene-capture/internal/capture"
)

// Query limits for history listings.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Record represents one completed capture run.
type Record struct {
	ID              string            `json:"id"`
	SceneID         string            `json:"scene_id"`
	EntityID        string            `json:"entity_id,omitempty"`
	Status          string            `json:"status"`
	EntitiesUpdated int               `json:"entities_updated"`
	EntitiesSkipped int               `json:"entities_skipped"`
	SkippedDetail   []capture.Skipped `json:"skipped_detail,omitempty"`
	DurationMS      int64             `json:"duration_ms"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Filter controls which capture records to return.
type Filter struct {
	SceneID string // optional: filter by scene record id
	Status  string // optional: filter by outcome (completed, partial, failed)
	Limit   int    // default 50, max 200
	Offset  int    // pagination offset
}

// ListResult contains the paginated capture history.
type ListResult struct {
	Captures []Record `json:"captures"`
	Total    int      `json:"total"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}

// Repository defines the interface for capture history operations.
type Repository interface {
	RecordCapture(ctx context.Context, executionID string, result *capture.Result) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository stores capture history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new capture history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordCapture inserts one capture run. The execution ID becomes the row
// key, so retried recordings of the same run stay idempotent.
func (r *SQLiteRepository) RecordCapture(ctx context.Context, executionID string, result *capture.Result) error {
	var skippedJSON *string
	if len(result.Skipped) > 0 {
		b, err := json.Marshal(result.Skipped)
		if err != nil {
			return fmt.Errorf("marshalling skipped detail: %w", err)
		}
		s := string(b)
		skippedJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO capture_history
		 (id, scene_id, entity_id, status, entities_updated, entities_skipped, skipped_detail, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		executionID, result.SceneID, nullableString(result.EntityID),
		string(result.Status), len(result.Updated), len(result.Skipped),
		skippedJSON, result.Duration.Milliseconds(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting capture record: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns capture records matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where := ""
	var args []any
	switch {
	case filter.SceneID != "" && filter.Status != "":
		where = "WHERE scene_id = ? AND status = ?"
		args = append(args, filter.SceneID, filter.Status)
	case filter.SceneID != "":
		where = "WHERE scene_id = ?"
		args = append(args, filter.SceneID)
	case filter.Status != "":
		where = "WHERE status = ?"
		args = append(args, filter.Status)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM capture_history %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting capture records: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, scene_id, entity_id, status, entities_updated, entities_skipped, skipped_detail, duration_ms, created_at
		 FROM capture_history %s ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying capture records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var entityID, skippedJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.SceneID, &entityID, &rec.Status,
			&rec.EntitiesUpdated, &rec.EntitiesSkipped, &skippedJSON,
			&rec.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning capture record: %w", err)
		}

		if entityID.Valid {
			rec.EntityID = entityID.String
		}
		if skippedJSON.Valid && skippedJSON.String != "" {
			var detail []capture.Skipped
			if json.Unmarshal([]byte(skippedJSON.String), &detail) == nil {
				rec.SkippedDetail = detail
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing capture timestamp %q: %w", createdAt, err)
		}
		rec.CreatedAt = t

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capture records: %w", err)
	}

	if records == nil {
		records = []Record{}
	}

	return &ListResult{
		Captures: records,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// Prune deletes capture records older than the given age and returns the
// number removed. Intended for a periodic housekeeping task.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM capture_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning capture records: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned records: %w", err)
	}
	return removed, nil
}
