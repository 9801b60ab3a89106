package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sifan077/snaplink/internal/app/model"
	"github.com/sifan077/snaplink/internal/app/repository"
)

const (
	// RedirectCacheControl keeps intermediaries from caching redirects so every hit is counted.
	RedirectCacheControl = "no-store"
	// DefaultClickTTL is how long a click event stays queryable.
	DefaultClickTTL = 30 * 24 * time.Hour
)

// ClickTelemetry is the request metadata captured for a click.
type ClickTelemetry struct {
	Referrer  string
	UserAgent string
}

// TelemetryResult describes what happened to the click event of a resolution.
type TelemetryResult struct {
	Dispatched bool
	Err        error
}

// Redirect is a successful resolution.
type Redirect struct {
	ID           string
	Location     string
	CacheControl string
	Telemetry    TelemetryResult
}

// RedirectService resolves short identifiers.
type RedirectService interface {
	Resolve(ctx context.Context, id string, telemetry ClickTelemetry) (*Redirect, error)
}

// RedirectServiceOptions tunes resolution. Zero values select defaults.
type RedirectServiceOptions struct {
	Recorder ClickRecorder
	ClickTTL time.Duration
	Observer Observer
	Clock    func() time.Time
}

type redirectService struct {
	links    repository.LinkRepository
	recorder ClickRecorder
	clickTTL time.Duration
	observer Observer
	now      func() time.Time
}

// NewRedirectService returns a RedirectService reading from links.
func NewRedirectService(links repository.LinkRepository, opts RedirectServiceOptions) RedirectService {
	s := &redirectService{
		links:    links,
		recorder: opts.Recorder,
		clickTTL: opts.ClickTTL,
		observer: opts.Observer,
		now:      opts.Clock,
	}
	if s.clickTTL <= 0 {
		s.clickTTL = DefaultClickTTL
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *redirectService) Resolve(ctx context.Context, id string, telemetry ClickTelemetry) (*Redirect, error) {
	if id == "" {
		s.observer.Resolved(id, OutcomeInvalid)
		return nil, ErrMissingID
	}

	link, err := s.links.GetByID(ctx, id)
	if errors.Is(err, repository.ErrLinkNotFound) {
		s.observer.Resolved(id, OutcomeNotFound)
		return nil, ErrLinkNotFound
	}
	if err != nil {
		s.observer.Resolved(id, OutcomeError)
		return nil, fmt.Errorf("resolve link: %w", err)
	}

	now := s.now()
	if link.OriginalURL == "" || link.Expired(now) {
		s.observer.Resolved(id, OutcomeNotFound)
		return nil, ErrLinkNotFound
	}

	redirect := &Redirect{
		ID:           link.ID,
		Location:     link.OriginalURL,
		CacheControl: RedirectCacheControl,
	}
	redirect.Telemetry = s.record(ctx, link.ID, now, telemetry)

	s.observer.Resolved(id, OutcomeRedirected)
	return redirect, nil
}

func (s *redirectService) record(ctx context.Context, id string, now time.Time, telemetry ClickTelemetry) TelemetryResult {
	if s.recorder == nil {
		return TelemetryResult{}
	}

	event := model.ClickEvent{
		ID:        id,
		Timestamp: model.FormatTimestamp(now),
		Referrer:  lo.Ternary(telemetry.Referrer != "", telemetry.Referrer, model.UnknownTelemetry),
		UserAgent: lo.Ternary(telemetry.UserAgent != "", telemetry.UserAgent, model.UnknownTelemetry),
		ExpiresAt: now.Add(s.clickTTL).UTC(),
	}

	if err := s.recorder.Record(ctx, event); err != nil {
		return TelemetryResult{Err: err}
	}
	return TelemetryResult{Dispatched: true}
}
