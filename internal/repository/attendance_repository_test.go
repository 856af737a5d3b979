package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/classroll-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "batch_id", "date", "student_name", "status", "marked_by", "batch_name", "created_at", "updated_at"})
	for _, id := range ids {
		rows.AddRow(id, "batch-1", time.Now(), "Alice", "present", nil, nil, time.Now(), time.Now())
	}
	return rows
}

func TestAttendanceRepositoryExistsForDay(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM attendance_records WHERE batch_id = $1 AND date = $2)")).
		WithArgs("batch-1", day).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForDay(context.Background(), "batch-1", day)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkInsertCommits(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "batch-1", day, "Alice", models.AttendanceStatusPresent, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))
	mock.ExpectQuery("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "batch-1", day, "Bob", models.AttendanceStatusAbsent, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-2"))
	mock.ExpectCommit()

	records := []models.AttendanceRecord{
		{BatchID: "batch-1", Date: day, StudentName: "Alice", Status: models.AttendanceStatusPresent},
		{BatchID: "batch-1", Date: day, StudentName: "Bob", Status: models.AttendanceStatusAbsent},
	}
	conflicts, err := repo.BulkInsert(context.Background(), records, true)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NotEmpty(t, records[0].ID)
	assert.NotEmpty(t, records[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkInsertAtomicRollsBackOnConflict(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	records := []models.AttendanceRecord{
		{BatchID: "batch-1", Date: day, StudentName: "Alice", Status: models.AttendanceStatusPresent},
		{BatchID: "batch-1", Date: day, StudentName: "Bob", Status: models.AttendanceStatusAbsent},
	}
	conflicts, err := repo.BulkInsert(context.Background(), records, true)
	require.Error(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "Bob", conflicts[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkInsertPermissiveSkipsConflicts(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-2"))
	mock.ExpectCommit()

	records := []models.AttendanceRecord{
		{BatchID: "batch-1", Date: day, StudentName: "Alice", Status: models.AttendanceStatusPresent},
		{BatchID: "batch-1", Date: day, StudentName: "Bob", Status: models.AttendanceStatusLate},
	}
	conflicts, err := repo.BulkInsert(context.Background(), records, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "Alice", conflicts[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("UPDATE attendance_records SET status").
		WithArgs("rec-1", models.AttendanceStatusLate, sqlmock.AnyArg()).
		WillReturnRows(attendanceRows("rec-1"))

	record, err := repo.UpdateStatus(context.Background(), "rec-1", models.AttendanceStatusLate)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("UPDATE attendance_records SET status").
		WithArgs("missing", models.AttendanceStatusLate, sqlmock.AnyArg()).
		WillReturnRows(attendanceRows())

	_, err := repo.UpdateStatus(context.Background(), "missing", models.AttendanceStatusLate)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteByID(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("DELETE FROM attendance_records WHERE id").
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByID(context.Background(), "rec-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteByIDNotFound(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("DELETE FROM attendance_records WHERE id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteDayIsIdempotent(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM attendance_records WHERE batch_id").
		WithArgs("batch-1", day).
		WillReturnResult(sqlmock.NewResult(0, 0))

	count, err := repo.DeleteDay(context.Background(), "batch-1", day)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByDay(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, batch_id, date, student_name, status, marked_by, batch_name, created_at, updated_at FROM attendance_records").
		WithArgs("batch-1", day).
		WillReturnRows(attendanceRows("rec-1", "rec-2"))

	records, err := repo.ListByDay(context.Background(), "batch-1", day)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDistinctDates(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"date"}).
		AddRow(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT date FROM attendance_records WHERE batch_id = $1 ORDER BY date DESC")).
		WithArgs("batch-1").
		WillReturnRows(rows)

	dates, err := repo.DistinctDates(context.Background(), "batch-1")
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].After(dates[1]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListFiltered(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	status := models.AttendanceStatusPresent

	mock.ExpectQuery("SELECT id, batch_id, date, student_name, status, marked_by, batch_name, created_at, updated_at FROM attendance_records WHERE 1=1 AND batch_id").
		WithArgs("batch-1", status).
		WillReturnRows(attendanceRows("rec-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_records WHERE 1=1 AND batch_id = $1 AND status = $2")).
		WithArgs("batch-1", status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{BatchID: "batch-1", Status: &status})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"status", "cnt"}).
		AddRow("present", 12).
		AddRow("absent", 3).
		AddRow("late", 2)
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs(day).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 12, counts[models.AttendanceStatusPresent])
	assert.Equal(t, 3, counts[models.AttendanceStatusAbsent])
	assert.Equal(t, 2, counts[models.AttendanceStatusLate])
	assert.NoError(t, mock.ExpectationsWereMet())
}
