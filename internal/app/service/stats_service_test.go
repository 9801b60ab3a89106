package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sifan077/snaplink/internal/app/model"
	"github.com/sifan077/snaplink/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClickEventRepository struct {
	appendFn        func(ctx context.Context, event *model.ClickEvent) error
	queryFn         func(ctx context.Context, id string, limit int) ([]model.ClickEvent, error)
	deleteExpiredFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockClickEventRepository) Append(ctx context.Context, event *model.ClickEvent) error {
	if m.appendFn != nil {
		return m.appendFn(ctx, event)
	}
	return nil
}

func (m *mockClickEventRepository) QueryRecent(ctx context.Context, id string, limit int) ([]model.ClickEvent, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, id, limit)
	}
	return nil, nil
}

func (m *mockClickEventRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, before)
	}
	return 0, nil
}

func seedClicks(t *testing.T, repo repository.ClickEventRepository, id string, n int) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i := range n {
		require.NoError(t, repo.Append(context.Background(), &model.ClickEvent{
			ID:        id,
			Timestamp: model.FormatTimestamp(base.Add(time.Duration(i) * time.Second)),
			Referrer:  fmt.Sprintf("ref-%d", i),
			UserAgent: fmt.Sprintf("ua-%d", i),
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}
}

func TestStatsService_Stats(t *testing.T) {
	repo := repository.NewMemoryClickEventRepository()
	seedClicks(t, repo, "abc1234", 8)

	stats, err := NewStatsService(repo, 0).Stats(context.Background(), "abc1234")
	require.NoError(t, err)

	assert.Equal(t, "abc1234", stats.ID)
	assert.Equal(t, 8, stats.TotalClicks)
	assert.Equal(t, []string{"ref-7", "ref-6", "ref-5", "ref-4", "ref-3"}, stats.RecentReferrers)
	assert.Equal(t, []string{"ua-7", "ua-6", "ua-5", "ua-4", "ua-3"}, stats.RecentUserAgents)
}

func TestStatsService_Stats_FewerThanSample(t *testing.T) {
	repo := repository.NewMemoryClickEventRepository()
	seedClicks(t, repo, "abc1234", 2)

	stats, err := NewStatsService(repo, 0).Stats(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalClicks)
	assert.Equal(t, []string{"ref-1", "ref-0"}, stats.RecentReferrers)
}

func TestStatsService_Stats_TotalIsBoundedSample(t *testing.T) {
	repo := repository.NewMemoryClickEventRepository()
	seedClicks(t, repo, "abc1234", repository.MaxRecentClicks+25)

	stats, err := NewStatsService(repo, 0).Stats(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, repository.MaxRecentClicks, stats.TotalClicks)
	assert.Len(t, stats.RecentReferrers, RecentSampleSize)
}

func TestStatsService_Stats_NoClicks(t *testing.T) {
	stats, err := NewStatsService(&mockClickEventRepository{}, 0).Stats(context.Background(), "unknown1")
	require.NoError(t, err)

	assert.Zero(t, stats.TotalClicks)
	assert.NotNil(t, stats.RecentReferrers)
	assert.NotNil(t, stats.RecentUserAgents)
	assert.Empty(t, stats.RecentReferrers)
}

func TestStatsService_Stats_PassesQueryLimit(t *testing.T) {
	var gotLimit int
	repo := &mockClickEventRepository{
		queryFn: func(ctx context.Context, id string, limit int) ([]model.ClickEvent, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	_, err := NewStatsService(repo, 500).Stats(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, repository.MaxRecentClicks, gotLimit)

	_, err = NewStatsService(repo, 20).Stats(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, 20, gotLimit)
}

func TestStatsService_Stats_Errors(t *testing.T) {
	boom := errors.New("query failed")
	svc := NewStatsService(&mockClickEventRepository{
		queryFn: func(ctx context.Context, id string, limit int) ([]model.ClickEvent, error) {
			return nil, boom
		},
	}, 0)

	_, err := svc.Stats(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = svc.Stats(context.Background(), "abc1234")
	assert.ErrorIs(t, err, boom)
}
