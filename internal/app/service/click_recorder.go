package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sifan077/snaplink/internal/app/model"
	"github.com/sifan077/snaplink/internal/app/repository"
)

const defaultClickWriteTimeout = 2 * time.Second

// ErrRecorderClosed is returned by Record after the recorder has been closed.
var ErrRecorderClosed = errors.New("click recorder closed")

// ClickRecorder hands click events to the click store. Recorders report their own
// write failures to an Observer; the returned error only describes dispatch.
type ClickRecorder interface {
	Record(ctx context.Context, event model.ClickEvent) error
}

// SyncClickRecorder appends the event before returning.
type SyncClickRecorder struct {
	repo     repository.ClickEventRepository
	observer Observer
	timeout  time.Duration
}

// NewSyncClickRecorder returns a recorder that writes inline with the caller.
func NewSyncClickRecorder(repo repository.ClickEventRepository, observer Observer, timeout time.Duration) *SyncClickRecorder {
	if observer == nil {
		observer = NopObserver{}
	}
	if timeout <= 0 {
		timeout = defaultClickWriteTimeout
	}
	return &SyncClickRecorder{repo: repo, observer: observer, timeout: timeout}
}

func (r *SyncClickRecorder) Record(ctx context.Context, event model.ClickEvent) error {
	return appendClick(ctx, r.repo, r.observer, r.timeout, event)
}

// AsyncClickRecorder appends the event on its own goroutine so the caller never waits
// on the click store. Writes outlive the request context but are bounded by a timeout.
type AsyncClickRecorder struct {
	repo     repository.ClickEventRepository
	observer Observer
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncClickRecorder returns a fire-and-forget recorder.
func NewAsyncClickRecorder(repo repository.ClickEventRepository, observer Observer, timeout time.Duration) *AsyncClickRecorder {
	if observer == nil {
		observer = NopObserver{}
	}
	if timeout <= 0 {
		timeout = defaultClickWriteTimeout
	}
	return &AsyncClickRecorder{repo: repo, observer: observer, timeout: timeout}
}

func (r *AsyncClickRecorder) Record(ctx context.Context, event model.ClickEvent) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer r.wg.Done()
		_ = appendClick(detached, r.repo, r.observer, r.timeout, event)
	}()
	return nil
}

// Close stops accepting events and waits for in-flight writes or ctx expiry.
func (r *AsyncClickRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func appendClick(ctx context.Context, repo repository.ClickEventRepository, observer Observer, timeout time.Duration, event model.ClickEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := repo.Append(writeCtx, &event); err != nil {
		observer.ClickFailed(event.ID, err)
		return err
	}
	observer.ClickRecorded(event.ID)
	return nil
}
