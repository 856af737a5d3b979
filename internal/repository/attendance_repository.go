package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classroll/classroll-api/internal/models"
)

const attendanceColumns = "id, batch_id, date, student_name, status, marked_by, batch_name, created_at, updated_at"

// AttendanceRepository handles persistence for attendance ledger rows. The
// table carries a unique index over (batch_id, student_name, date); every
// write path treats a violation of it as an expected, recoverable outcome.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ExistsForDay reports whether any record exists for the batch on the given day.
func (r *AttendanceRepository) ExistsForDay(ctx context.Context, batchID string, date time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM attendance_records WHERE batch_id = $1 AND date = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, batchID, date); err != nil {
		return false, fmt.Errorf("check day exists: %w", err)
	}
	return exists, nil
}

// BulkInsert writes a day's roster inside one transaction. In atomic mode any
// row that collides with an existing record aborts and rolls back the whole
// batch; otherwise colliding rows are skipped and reported as conflicts.
func (r *AttendanceRepository) BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceConflict, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk attendance insert: %w", err)
	}
	conflicts := make([]models.AttendanceConflict, 0)
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()
	query := `INSERT INTO attendance_records (id, batch_id, date, student_name, status, marked_by, batch_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (batch_id, student_name, date) DO NOTHING RETURNING id`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var insertedID string
		if err := tx.QueryRowxContext(ctx, query, rec.ID, rec.BatchID, rec.Date, rec.StudentName, rec.Status, rec.MarkedBy, rec.BatchName, rec.CreatedAt, rec.UpdatedAt).Scan(&insertedID); err != nil {
			if err == sql.ErrNoRows {
				conflicts = append(conflicts, models.AttendanceConflict{
					BatchID:     rec.BatchID,
					StudentName: rec.StudentName,
					Date:        rec.Date,
					Reason:      "duplicate record",
				})
				if atomic {
					return conflicts, fmt.Errorf("bulk attendance insert: duplicate for %q on %s", rec.StudentName, rec.Date.Format("2006-01-02"))
				}
				continue
			}
			return nil, fmt.Errorf("bulk attendance insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk attendance insert: %w", err)
	}
	commit = true
	return conflicts, nil
}

// UpdateStatus revises the status of a single record. Identity fields are
// untouched so no uniqueness re-check is needed. Returns sql.ErrNoRows when
// the record does not exist.
func (r *AttendanceRepository) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	query := `UPDATE attendance_records SET status = $2, updated_at = $3 WHERE id = $1
RETURNING ` + attendanceColumns
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id, status, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update attendance status: %w", err)
	}
	return &record, nil
}

// DeleteByID removes one record. Returns sql.ErrNoRows when nothing matched.
func (r *AttendanceRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteDay removes every record for a batch on a day and returns the count.
// Zero matches is a no-op, not an error.
func (r *AttendanceRepository) DeleteDay(ctx context.Context, batchID string, date time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE batch_id = $1 AND date = $2`, batchID, date)
	if err != nil {
		return 0, fmt.Errorf("delete attendance day: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attendance day: %w", err)
	}
	return affected, nil
}

// ListByDay returns the records of a batch for one day ordered by student
// name. An unmarked day yields an empty slice.
func (r *AttendanceRepository) ListByDay(ctx context.Context, batchID string, date time.Time) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
WHERE batch_id = $1 AND date = $2
ORDER BY student_name ASC`
	rows := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &rows, query, batchID, date); err != nil {
		return nil, fmt.Errorf("list attendance day: %w", err)
	}
	return rows, nil
}

// DistinctDates projects the distinct marked dates of a batch, newest first.
func (r *AttendanceRepository) DistinctDates(ctx context.Context, batchID string) ([]time.Time, error) {
	const query = `SELECT DISTINCT date FROM attendance_records WHERE batch_id = $1 ORDER BY date DESC`
	dates := []time.Time{}
	if err := r.db.SelectContext(ctx, &dates, query, batchID); err != nil {
		return nil, fmt.Errorf("list marked dates: %w", err)
	}
	return dates, nil
}

// List returns ledger rows matching the provided filter, newest day first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.BatchID != "" {
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE %s
ORDER BY date DESC, created_at DESC
LIMIT %d OFFSET %d`, attendanceColumns, whereClause, size, offset)

	rows := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_records WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// CountByStatus aggregates record counts per status for one day across all
// batches.
func (r *AttendanceRepository) CountByStatus(ctx context.Context, date time.Time) (map[models.AttendanceStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS cnt FROM attendance_records WHERE date = $1 GROUP BY status`
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("count attendance by status: %w", err)
	}
	counts := make(map[models.AttendanceStatus]int, len(rows))
	for _, row := range rows {
		counts[models.AttendanceStatus(row.Status)] = row.Count
	}
	return counts, nil
}
