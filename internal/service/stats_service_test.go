package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/classroll-api/internal/models"
	appErrors "github.com/classroll/classroll-api/pkg/errors"
)

type stubStatusCounter struct {
	counts  map[models.AttendanceStatus]int
	lastDay time.Time
	calls   int
}

func (s *stubStatusCounter) CountByStatus(ctx context.Context, date time.Time) (map[models.AttendanceStatus]int, error) {
	s.lastDay = date
	s.calls++
	return s.counts, nil
}

type stubBatchCounter struct{ total int }

func (s *stubBatchCounter) Count(ctx context.Context) (int, error) { return s.total, nil }

type stubRoleCounter struct{ byRole map[models.UserRole]int }

func (s *stubRoleCounter) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	return s.byRole[role], nil
}

type memoryCacheRepo struct {
	store map[string]interface{}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if v, ok := m.store[key]; ok {
		*(dest.(*models.DashboardStats)) = *(v.(*models.DashboardStats))
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	stats := *(value.(*models.DashboardStats))
	m.store[key] = &stats
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.store = map[string]interface{}{}
	return nil
}

func newStatsFixture(counts map[models.AttendanceStatus]int, cache *CacheService) (*StatsService, *stubStatusCounter) {
	attendance := &stubStatusCounter{counts: counts}
	svc := NewStatsService(
		attendance,
		&stubBatchCounter{total: 3},
		&stubRoleCounter{byRole: map[models.UserRole]int{
			models.RoleStudent:    40,
			models.RoleBatchOwner: 3,
		}},
		cache,
		time.Minute,
		nil,
	)
	return svc, attendance
}

func TestDashboardBucketsAreDisjoint(t *testing.T) {
	svc, attendance := newStatsFixture(map[models.AttendanceStatus]int{
		models.AttendanceStatusPresent: 30,
		models.AttendanceStatusAbsent:  6,
		models.AttendanceStatusLate:    4,
	}, nil)
	asOf := time.Date(2024, 1, 10, 15, 45, 0, 0, time.UTC)

	stats, cached, err := svc.Dashboard(context.Background(), asOf)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 40, stats.TotalStudents)
	assert.Equal(t, 3, stats.TotalBatches)
	assert.Equal(t, 3, stats.TotalBatchOwners)
	assert.Equal(t, 30, stats.TodayPresent)
	assert.Equal(t, 6, stats.TodayAbsent)
	assert.Equal(t, 4, stats.TodayLate)
	assert.Equal(t, 40, stats.TodayAttendance)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), attendance.lastDay)
}

func TestDashboardUnmarkedDayIsZero(t *testing.T) {
	svc, _ := newStatsFixture(map[models.AttendanceStatus]int{}, nil)

	stats, _, err := svc.Dashboard(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, stats.TodayAttendance)
	assert.Zero(t, stats.TodayPresent)
	assert.Zero(t, stats.TodayAbsent)
	assert.Zero(t, stats.TodayLate)
	assert.Equal(t, 40, stats.TotalStudents)
}

func TestDashboardServesSecondCallFromCache(t *testing.T) {
	cache := NewCacheService(&memoryCacheRepo{store: map[string]interface{}{}}, nil, time.Minute, nil, true)
	svc, attendance := newStatsFixture(map[models.AttendanceStatus]int{
		models.AttendanceStatusPresent: 10,
	}, cache)
	asOf := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

	first, cached, err := svc.Dashboard(context.Background(), asOf)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := svc.Dashboard(context.Background(), asOf)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, attendance.calls)
}
