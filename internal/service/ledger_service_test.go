package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/classroll-api/internal/models"
	appErrors "github.com/classroll/classroll-api/pkg/errors"
)

type stubAttendanceRepo struct {
	existsForDay  bool
	existsErr     error
	inserted      []models.AttendanceRecord
	insertErr     error
	conflicts     []models.AttendanceConflict
	updated       *models.AttendanceRecord
	updateErr     error
	deleteErr     error
	deletedDay    int64
	deleteDayErr  error
	listRows      []models.AttendanceRecord
	listTotal     int
	listErr       error
	lastFilter    models.AttendanceFilter
	lastDeleteDay time.Time
}

func (s *stubAttendanceRepo) ExistsForDay(ctx context.Context, batchID string, date time.Time) (bool, error) {
	return s.existsForDay, s.existsErr
}

func (s *stubAttendanceRepo) BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceConflict, error) {
	s.inserted = records
	return s.conflicts, s.insertErr
}

func (s *stubAttendanceRepo) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	return s.updated, s.updateErr
}

func (s *stubAttendanceRepo) DeleteByID(ctx context.Context, id string) error {
	return s.deleteErr
}

func (s *stubAttendanceRepo) DeleteDay(ctx context.Context, batchID string, date time.Time) (int64, error) {
	s.lastDeleteDay = date
	return s.deletedDay, s.deleteDayErr
}

func (s *stubAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	s.lastFilter = filter
	return s.listRows, s.listTotal, s.listErr
}

type stubBatchReader struct {
	batch *models.Batch
	err   error
}

func (s *stubBatchReader) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	return s.batch, s.err
}

func newTestLedger(repo *stubAttendanceRepo, batches *stubBatchReader) *LedgerService {
	return NewLedgerService(repo, batches, nil, nil, nil, nil)
}

func validSubmit() SubmitDayRequest {
	return SubmitDayRequest{
		BatchID:  "batch-1",
		Date:     "2024-01-10",
		MarkedBy: "owner-1",
		Entries: []SubmitDayEntry{
			{StudentName: "Alice", Status: "present"},
			{StudentName: "Bob", Status: "absent"},
		},
	}
}

func TestSubmitDayRecordsRoster(t *testing.T) {
	repo := &stubAttendanceRepo{}
	svc := newTestLedger(repo, &stubBatchReader{batch: &models.Batch{ID: "batch-1", Name: "B1"}})

	result, err := svc.SubmitDay(context.Background(), validSubmit())
	require.NoError(t, err)
	assert.Equal(t, 2, result.AcceptedCount)
	require.Len(t, repo.inserted, 2)

	rec := repo.inserted[0]
	assert.Equal(t, "batch-1", rec.BatchID)
	assert.Equal(t, "Alice", rec.StudentName)
	assert.Equal(t, models.AttendanceStatusPresent, rec.Status)
	require.NotNil(t, rec.BatchName)
	assert.Equal(t, "B1", *rec.BatchName)
	require.NotNil(t, rec.MarkedBy)
	assert.Equal(t, "owner-1", *rec.MarkedBy)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), rec.Date)
}

func TestSubmitDayRejectsEmptyEntries(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{}, &stubBatchReader{})

	req := validSubmit()
	req.Entries = nil
	_, err := svc.SubmitDay(context.Background(), req)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestSubmitDayRejectsInvalidStatus(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{}, &stubBatchReader{})

	req := validSubmit()
	req.Entries[1].Status = "tardy"
	_, err := svc.SubmitDay(context.Background(), req)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestSubmitDayRejectsBadDate(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{}, &stubBatchReader{})

	req := validSubmit()
	req.Date = "10/01/2024"
	_, err := svc.SubmitDay(context.Background(), req)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestSubmitDayRejectsDuplicateStudentInPayload(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{}, &stubBatchReader{})

	req := validSubmit()
	req.Entries = append(req.Entries, SubmitDayEntry{StudentName: "Alice", Status: "late"})
	_, err := svc.SubmitDay(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "Alice")
}

func TestSubmitDayRejectsBlankStudentName(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{}, &stubBatchReader{})

	req := validSubmit()
	req.Entries[0].StudentName = "   "
	_, err := svc.SubmitDay(context.Background(), req)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestSubmitDayUnknownBatch(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{}, &stubBatchReader{err: sql.ErrNoRows})

	_, err := svc.SubmitDay(context.Background(), validSubmit())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestSubmitDayRejectsAlreadyMarkedDay(t *testing.T) {
	repo := &stubAttendanceRepo{existsForDay: true}
	svc := newTestLedger(repo, &stubBatchReader{batch: &models.Batch{ID: "batch-1", Name: "B1"}})

	_, err := svc.SubmitDay(context.Background(), validSubmit())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
	assert.Contains(t, err.Error(), "B1")
	assert.Contains(t, err.Error(), "2024-01-10")
	assert.Empty(t, repo.inserted)
}

func TestSubmitDayRaceConflictSurfacesAsConflict(t *testing.T) {
	repo := &stubAttendanceRepo{
		conflicts: []models.AttendanceConflict{{BatchID: "batch-1", StudentName: "Alice"}},
		insertErr: errors.New("duplicate"),
	}
	svc := newTestLedger(repo, &stubBatchReader{batch: &models.Batch{ID: "batch-1", Name: "B1"}})

	_, err := svc.SubmitDay(context.Background(), validSubmit())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestSubmitDayNormalizesStatusCase(t *testing.T) {
	repo := &stubAttendanceRepo{}
	svc := newTestLedger(repo, &stubBatchReader{batch: &models.Batch{ID: "batch-1", Name: "B1"}})

	req := validSubmit()
	req.Entries[0].Status = "Present"
	_, err := svc.SubmitDay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, repo.inserted[0].Status)
}

func TestUpdateStatusInvalid(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{}, &stubBatchReader{})

	_, err := svc.UpdateStatus(context.Background(), "rec-1", "vanished")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{updateErr: sql.ErrNoRows}, &stubBatchReader{})

	_, err := svc.UpdateStatus(context.Background(), "missing", "late")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestUpdateStatusSuccess(t *testing.T) {
	updated := &models.AttendanceRecord{ID: "rec-1", Status: models.AttendanceStatusLate, Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)}
	svc := newTestLedger(&stubAttendanceRepo{updated: updated}, &stubBatchReader{})

	record, err := svc.UpdateStatus(context.Background(), "rec-1", "LATE")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, record.Status)
}

func TestDeleteDayIdempotent(t *testing.T) {
	repo := &stubAttendanceRepo{deletedDay: 0}
	svc := newTestLedger(repo, &stubBatchReader{})

	count, err := svc.DeleteDay(context.Background(), "batch-1", "2024-01-10")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), repo.lastDeleteDay)
}

func TestDeleteRecordNotFound(t *testing.T) {
	svc := newTestLedger(&stubAttendanceRepo{deleteErr: sql.ErrNoRows}, &stubBatchReader{})

	err := svc.DeleteRecord(context.Background(), "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestListAppliesDefaultsAndFilter(t *testing.T) {
	repo := &stubAttendanceRepo{listRows: []models.AttendanceRecord{{ID: "rec-1"}}, listTotal: 1}
	svc := newTestLedger(repo, &stubBatchReader{})

	status := "present"
	rows, pagination, err := svc.List(context.Background(), ListRequest{BatchID: "batch-1", Date: "2024-01-10", Status: &status})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 50, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
	require.NotNil(t, repo.lastFilter.Date)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), *repo.lastFilter.Date)
	require.NotNil(t, repo.lastFilter.Status)
	assert.Equal(t, models.AttendanceStatusPresent, *repo.lastFilter.Status)
}
