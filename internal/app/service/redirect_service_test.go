package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sifan077/snaplink/internal/app/model"
	"github.com/sifan077/snaplink/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderFunc func(ctx context.Context, event model.ClickEvent) error

func (f recorderFunc) Record(ctx context.Context, event model.ClickEvent) error {
	return f(ctx, event)
}

func linkRepoWith(links ...model.Link) *repository.MemoryLinkRepository {
	repo := repository.NewMemoryLinkRepository()
	for i := range links {
		if err := repo.InsertIfAbsent(context.Background(), &links[i]); err != nil {
			panic(err)
		}
	}
	return repo
}

func TestRedirectService_Resolve(t *testing.T) {
	now := time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)
	repo := linkRepoWith(model.Link{ID: "abc1234", OriginalURL: "https://example.com/target"})

	var captured model.ClickEvent
	svc := NewRedirectService(repo, RedirectServiceOptions{
		Recorder: recorderFunc(func(ctx context.Context, event model.ClickEvent) error {
			captured = event
			return nil
		}),
		Clock: func() time.Time { return now },
	})

	redirect, err := svc.Resolve(context.Background(), "abc1234", ClickTelemetry{
		Referrer:  "https://news.example.org",
		UserAgent: "curl/8.0",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/target", redirect.Location)
	assert.Equal(t, "no-store", redirect.CacheControl)
	assert.True(t, redirect.Telemetry.Dispatched)
	assert.NoError(t, redirect.Telemetry.Err)

	assert.Equal(t, "abc1234", captured.ID)
	assert.Equal(t, model.FormatTimestamp(now), captured.Timestamp)
	assert.Equal(t, "https://news.example.org", captured.Referrer)
	assert.Equal(t, "curl/8.0", captured.UserAgent)
	assert.Equal(t, now.Add(DefaultClickTTL), captured.ExpiresAt)
}

func TestRedirectService_Resolve_DefaultsMissingTelemetry(t *testing.T) {
	repo := linkRepoWith(model.Link{ID: "abc1234", OriginalURL: "https://example.com"})

	var captured model.ClickEvent
	svc := NewRedirectService(repo, RedirectServiceOptions{
		Recorder: recorderFunc(func(ctx context.Context, event model.ClickEvent) error {
			captured = event
			return nil
		}),
	})

	_, err := svc.Resolve(context.Background(), "abc1234", ClickTelemetry{})
	require.NoError(t, err)
	assert.Equal(t, "unknown", captured.Referrer)
	assert.Equal(t, "unknown", captured.UserAgent)
}

func TestRedirectService_Resolve_MissingID(t *testing.T) {
	observer := &recordingObserver{}
	svc := NewRedirectService(&mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			t.Fatal("empty id must not reach the store")
			return nil, nil
		},
	}, RedirectServiceOptions{Observer: observer})

	_, err := svc.Resolve(context.Background(), "", ClickTelemetry{})
	assert.ErrorIs(t, err, ErrMissingID)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []string{OutcomeInvalid}, observer.outcomes)
}

func TestRedirectService_Resolve_NotFound(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	repo := linkRepoWith(
		model.Link{ID: "expired", OriginalURL: "https://example.com", ExpiresAt: &past},
		model.Link{ID: "empty"},
	)

	recorded := false
	observer := &recordingObserver{}
	svc := NewRedirectService(repo, RedirectServiceOptions{
		Recorder: recorderFunc(func(ctx context.Context, event model.ClickEvent) error {
			recorded = true
			return nil
		}),
		Observer: observer,
		Clock:    func() time.Time { return now },
	})

	for _, id := range []string{"missing", "expired", "empty"} {
		_, err := svc.Resolve(context.Background(), id, ClickTelemetry{})
		assert.ErrorIs(t, err, ErrLinkNotFound, id)
	}
	assert.False(t, recorded, "no click is recorded for unresolvable ids")
	assert.Equal(t, []string{OutcomeNotFound, OutcomeNotFound, OutcomeNotFound}, observer.outcomes)
}

func TestRedirectService_Resolve_StoreFailure(t *testing.T) {
	boom := errors.New("timeout")
	svc := NewRedirectService(&mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return nil, boom
		},
	}, RedirectServiceOptions{})

	_, err := svc.Resolve(context.Background(), "abc1234", ClickTelemetry{})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrLinkNotFound)
}

func TestRedirectService_Resolve_TelemetryFailureKeepsRedirect(t *testing.T) {
	repo := linkRepoWith(model.Link{ID: "abc1234", OriginalURL: "https://example.com"})
	boom := errors.New("click store down")

	svc := NewRedirectService(repo, RedirectServiceOptions{
		Recorder: recorderFunc(func(ctx context.Context, event model.ClickEvent) error {
			return boom
		}),
	})

	redirect, err := svc.Resolve(context.Background(), "abc1234", ClickTelemetry{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", redirect.Location)
	assert.False(t, redirect.Telemetry.Dispatched)
	assert.ErrorIs(t, redirect.Telemetry.Err, boom)
}

func TestRedirectService_Resolve_WithoutRecorder(t *testing.T) {
	repo := linkRepoWith(model.Link{ID: "abc1234", OriginalURL: "https://example.com"})

	redirect, err := NewRedirectService(repo, RedirectServiceOptions{}).Resolve(context.Background(), "abc1234", ClickTelemetry{})
	require.NoError(t, err)
	assert.False(t, redirect.Telemetry.Dispatched)
	assert.NoError(t, redirect.Telemetry.Err)
}
