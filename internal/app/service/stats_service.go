package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/sifan077/snaplink/internal/app/model"
	"github.com/sifan077/snaplink/internal/app/repository"
)

// RecentSampleSize is how many referrers and user agents a stats summary carries.
const RecentSampleSize = 5

// LinkStats summarises the recent clicks of one link. TotalClicks counts the
// events examined, which is at most repository.MaxRecentClicks.
type LinkStats struct {
	ID               string
	TotalClicks      int
	RecentReferrers  []string
	RecentUserAgents []string
}

// StatsService aggregates click events.
type StatsService interface {
	Stats(ctx context.Context, id string) (*LinkStats, error)
}

type statsService struct {
	clicks     repository.ClickEventRepository
	queryLimit int
}

// NewStatsService returns a StatsService that examines at most queryLimit events per link.
func NewStatsService(clicks repository.ClickEventRepository, queryLimit int) StatsService {
	if queryLimit <= 0 || queryLimit > repository.MaxRecentClicks {
		queryLimit = repository.MaxRecentClicks
	}
	return &statsService{clicks: clicks, queryLimit: queryLimit}
}

func (s *statsService) Stats(ctx context.Context, id string) (*LinkStats, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	events, err := s.clicks.QueryRecent(ctx, id, s.queryLimit)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}

	sample := events[:min(len(events), RecentSampleSize)]
	return &LinkStats{
		ID:          id,
		TotalClicks: len(events),
		RecentReferrers: lo.Map(sample, func(e model.ClickEvent, _ int) string {
			return e.Referrer
		}),
		RecentUserAgents: lo.Map(sample, func(e model.ClickEvent, _ int) string {
			return e.UserAgent
		}),
	}, nil
}
