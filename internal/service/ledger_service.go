package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classroll/classroll-api/internal/models"
	appErrors "github.com/classroll/classroll-api/pkg/errors"
)

type attendanceRepository interface {
	ExistsForDay(ctx context.Context, batchID string, date time.Time) (bool, error)
	BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceConflict, error)
	UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteDay(ctx context.Context, batchID string, date time.Time) (int64, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type batchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

// LedgerService owns the attendance ledger: it is the only write path and
// guarantees at most one record per (batch, student, date).
//
// Day submissions follow the strict-day policy: a day that already has any
// record for the batch rejects the whole submission, and the caller edits or
// deletes the existing day instead. Inserts for one day run in a single
// transaction, so a submission either commits completely or not at all.
type LedgerService struct {
	repo      attendanceRepository
	batches   batchReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLedgerService constructs the ledger service.
func NewLedgerService(repo attendanceRepository, batches batchReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LedgerService{repo: repo, batches: batches, cache: cache, metrics: metrics, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// SubmitDayEntry is one roster row of a day submission.
type SubmitDayEntry struct {
	StudentName string `json:"student_name" validate:"required"`
	Status      string `json:"status" validate:"required,attendance_status"`
}

// SubmitDayRequest describes a full-day roster submission.
type SubmitDayRequest struct {
	BatchID  string           `json:"batch_id" validate:"required"`
	Date     string           `json:"date" validate:"required"`
	MarkedBy string           `json:"marked_by"`
	Entries  []SubmitDayEntry `json:"entries" validate:"required,min=1,dive"`
}

// SubmitDayResult summarises a day submission.
type SubmitDayResult struct {
	AcceptedCount   int                         `json:"accepted_count"`
	RejectedEntries []models.AttendanceConflict `json:"rejected_entries,omitempty"`
}

// ListRequest scopes ledger listing.
type ListRequest struct {
	BatchID  string  `json:"batch_id"`
	Date     string  `json:"date"`
	Status   *string `json:"status" validate:"omitempty,attendance_status"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// SubmitDay records attendance for a batch's full roster on one day.
func (s *LedgerService) SubmitDay(ctx context.Context, req SubmitDayRequest) (*SubmitDayResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(req.Entries))
	for _, entry := range req.Entries {
		name := strings.TrimSpace(entry.StudentName)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student name must not be blank")
		}
		if _, ok := seen[name]; ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate student %q in payload", name))
		}
		seen[name] = struct{}{}
	}

	batch, err := s.batches.FindByID(ctx, req.BatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve batch")
	}

	exists, err := s.repo.ExistsForDay(ctx, req.BatchID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing day")
	}
	if exists {
		s.metrics.RecordDaySubmission("conflict", 0)
		return nil, appErrors.Clone(appErrors.ErrConflict, dayConflictMessage(batch.Name, date))
	}

	records := make([]models.AttendanceRecord, len(req.Entries))
	batchName := batch.Name
	var markedBy *string
	if req.MarkedBy != "" {
		markedBy = &req.MarkedBy
	}
	for i, entry := range req.Entries {
		records[i] = models.AttendanceRecord{
			BatchID:     req.BatchID,
			Date:        date,
			StudentName: strings.TrimSpace(entry.StudentName),
			Status:      models.AttendanceStatus(strings.ToLower(entry.Status)),
			MarkedBy:    markedBy,
			BatchName:   &batchName,
		}
	}

	conflicts, err := s.repo.BulkInsert(ctx, records, true)
	if err != nil {
		// A conflict here means another submission won the race between the
		// strict-day check and the insert; the transaction rolled back.
		if len(conflicts) > 0 {
			s.metrics.RecordDaySubmission("conflict", 0)
			conflictErr := appErrors.Clone(appErrors.ErrConflict, dayConflictMessage(batch.Name, date))
			conflictErr.Err = err
			return nil, conflictErr
		}
		s.metrics.RecordDaySubmission("error", 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.metrics.RecordDaySubmission("accepted", len(records))
	s.invalidateStats(ctx, date)
	s.logger.Info("day submitted",
		zap.String("batch_id", req.BatchID),
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("accepted", len(records)),
	)
	return &SubmitDayResult{AcceptedCount: len(records)}, nil
}

// UpdateStatus revises one record's status. Identity fields never change.
func (s *LedgerService) UpdateStatus(ctx context.Context, recordID, status string) (*models.AttendanceRecord, error) {
	if recordID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "record id required")
	}
	st := models.AttendanceStatus(strings.ToLower(status))
	if !st.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q, expected present, absent or late", status))
	}
	record, err := s.repo.UpdateStatus(ctx, recordID, st)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance status")
	}
	s.invalidateStats(ctx, record.Date)
	return record, nil
}

// DeleteDay removes a batch's full day so it can be re-marked. Idempotent: a
// day with no records deletes zero rows without error.
func (s *LedgerService) DeleteDay(ctx context.Context, batchID, rawDate string) (int64, error) {
	if batchID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "batch id required")
	}
	date, err := parseDay(rawDate)
	if err != nil {
		return 0, err
	}
	count, err := s.repo.DeleteDay(ctx, batchID, date)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance day")
	}
	if count > 0 {
		s.invalidateStats(ctx, date)
	}
	return count, nil
}

// DeleteRecord removes a single ledger row.
func (s *LedgerService) DeleteRecord(ctx context.Context, recordID string) error {
	if recordID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "record id required")
	}
	if err := s.repo.DeleteByID(ctx, recordID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance record")
	}
	// The row's date is gone with it; drop all cached stats.
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "stats:*")
	}
	return nil
}

// List returns paginated ledger rows, newest day first.
func (s *LedgerService) List(ctx context.Context, req ListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	filter := models.AttendanceFilter{BatchID: req.BatchID, Page: req.Page, PageSize: req.PageSize}
	if req.Date != "" {
		date, err := parseDay(req.Date)
		if err != nil {
			return nil, nil, err
		}
		filter.Date = &date
	}
	if req.Status != nil {
		st := models.AttendanceStatus(strings.ToLower(*req.Status))
		filter.Status = &st
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

func (s *LedgerService) invalidateStats(ctx context.Context, date time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "stats:"+date.Format("2006-01-02")); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func dayConflictMessage(batchName string, date time.Time) string {
	return fmt.Sprintf("attendance for batch %q on %s is already recorded; edit the existing records or delete the day first",
		batchName, date.Format("2006-01-02"))
}

// parseDay parses a YYYY-MM-DD value into a day-normalized UTC time.
func parseDay(raw string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	return parsed.UTC(), nil
}

// NormalizeDay truncates a timestamp to its UTC calendar day.
func NormalizeDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
