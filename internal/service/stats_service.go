package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/classroll/classroll-api/internal/models"
	appErrors "github.com/classroll/classroll-api/pkg/errors"
)

type statusCounter interface {
	CountByStatus(ctx context.Context, date time.Time) (map[models.AttendanceStatus]int, error)
}

type batchCounter interface {
	Count(ctx context.Context) (int, error)
}

type roleCounter interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

// StatsService computes the dashboard aggregation. Present, absent and late
// are three disjoint buckets; the original system sometimes folded late into
// absent, which this contract deliberately does not reproduce.
type StatsService struct {
	attendance statusCounter
	batches    batchCounter
	users      roleCounter
	cache      *CacheService
	cacheTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewStatsService constructs the stats service.
func NewStatsService(attendance statusCounter, batches batchCounter, users roleCounter, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		attendance: attendance,
		batches:    batches,
		users:      users,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Dashboard aggregates entity counts and the given day's attendance split.
// The boolean result reports cache utilisation.
func (s *StatsService) Dashboard(ctx context.Context, asOf time.Time) (*models.DashboardStats, bool, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	day := NormalizeDay(asOf)
	cacheKey := "stats:" + day.Format("2006-01-02")

	if s.cache != nil {
		var cached models.DashboardStats
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	stats, err := s.compose(ctx, day)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return stats, false, nil
}

func (s *StatsService) compose(ctx context.Context, day time.Time) (*models.DashboardStats, error) {
	students, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	owners, err := s.users.CountByRole(ctx, models.RoleBatchOwner)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count batch owners")
	}
	batches, err := s.batches.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count batches")
	}
	counts, err := s.attendance.CountByStatus(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}

	present := counts[models.AttendanceStatusPresent]
	absent := counts[models.AttendanceStatusAbsent]
	late := counts[models.AttendanceStatusLate]

	return &models.DashboardStats{
		TotalStudents:    students,
		TotalBatches:     batches,
		TotalBatchOwners: owners,
		TodayAttendance:  present + absent + late,
		TodayPresent:     present,
		TodayAbsent:      absent,
		TodayLate:        late,
	}, nil
}
