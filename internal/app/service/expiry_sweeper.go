package service

import (
	"context"
	"sync"
	"time"

	apprepository "github.com/sifan077/snaplink/internal/app/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = time.Hour
	sweepTimeout         = 30 * time.Second
)

// ExpirySweeper periodically deletes expired click events and links.
// Reads already hide expired rows; sweeping only reclaims storage.
type ExpirySweeper struct {
	logger   *zap.Logger
	clicks   apprepository.ClickEventRepository
	links    apprepository.LinkRepository
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewExpirySweeper creates a new expiry sweeper. links may be nil.
func NewExpirySweeper(logger *zap.Logger, clicks apprepository.ClickEventRepository, links apprepository.LinkRepository, interval time.Duration) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &ExpirySweeper{
		logger:   logger,
		clicks:   clicks,
		links:    links,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop stops the periodic sweep. Safe to call more than once.
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *ExpirySweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			s.Sweep(ctx)
			cancel()
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

// Sweep runs one deletion pass and returns the number of clicks and links removed.
func (s *ExpirySweeper) Sweep(ctx context.Context) (clicks, links int64) {
	before := s.now().UTC()

	clicks, err := s.clicks.DeleteExpired(ctx, before)
	if err != nil {
		s.logger.Error("failed to delete expired click events", zap.Error(err))
	} else if clicks > 0 {
		s.logger.Info("deleted expired click events",
			zap.Int64("count", clicks),
			zap.Time("expired_before", before),
		)
	}

	if s.links == nil {
		return clicks, 0
	}

	links, err = s.links.DeleteExpired(ctx, before)
	if err != nil {
		s.logger.Error("failed to delete expired links", zap.Error(err))
	} else if links > 0 {
		s.logger.Info("deleted expired links",
			zap.Int64("count", links),
			zap.Time("expired_before", before),
		)
	}
	return clicks, links
}
