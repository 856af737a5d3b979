package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/classroll/classroll-api/internal/models"
	appErrors "github.com/classroll/classroll-api/pkg/errors"
)

type dayReader interface {
	DistinctDates(ctx context.Context, batchID string) ([]time.Time, error)
	ListByDay(ctx context.Context, batchID string, date time.Time) ([]models.AttendanceRecord, error)
}

// ReconcileService is the read side of the edit workflow: which days a batch
// has marked, and the rows of one chosen day.
type ReconcileService struct {
	repo   dayReader
	logger *zap.Logger
}

// NewReconcileService constructs the reconciliation service.
func NewReconcileService(repo dayReader, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{repo: repo, logger: logger}
}

// MarkedDates returns the distinct dates a batch has recorded, newest first.
// Dates are deduplicated at day granularity even when stored values carry
// sub-day components.
func (s *ReconcileService) MarkedDates(ctx context.Context, batchID string) ([]time.Time, error) {
	if batchID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch id required")
	}
	raw, err := s.repo.DistinctDates(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marked dates")
	}
	dates := make([]time.Time, 0, len(raw))
	var last time.Time
	for _, d := range raw {
		day := NormalizeDay(d)
		if len(dates) > 0 && day.Equal(last) {
			continue
		}
		dates = append(dates, day)
		last = day
	}
	return dates, nil
}

// LoadDay returns a batch's records for one day ordered by student name. An
// unmarked day is an empty slice, not an error; callers distinguish "no data"
// by length.
func (s *ReconcileService) LoadDay(ctx context.Context, batchID, rawDate string) ([]models.AttendanceRecord, error) {
	if batchID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch id required")
	}
	date, err := parseDay(rawDate)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByDay(ctx, batchID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day")
	}
	return rows, nil
}

// BeginEdit seeds an edit buffer from the persisted records of one day.
func (s *ReconcileService) BeginEdit(ctx context.Context, batchID, rawDate string) (*EditBuffer, error) {
	rows, err := s.LoadDay(ctx, batchID, rawDate)
	if err != nil {
		return nil, err
	}
	return NewEditBuffer(rows), nil
}
