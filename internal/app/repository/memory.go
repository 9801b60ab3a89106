package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sifan077/snaplink/internal/app/model"
)

// Compile-time interface checks
var (
	_ LinkRepository       = (*MemoryLinkRepository)(nil)
	_ ClickEventRepository = (*MemoryClickEventRepository)(nil)
)

// MemoryLinkRepository keeps links in process memory. Used for development and tests.
type MemoryLinkRepository struct {
	mu    sync.RWMutex
	links map[string]model.Link
}

// NewMemoryLinkRepository returns an empty in-memory link store.
func NewMemoryLinkRepository() *MemoryLinkRepository {
	return &MemoryLinkRepository{links: make(map[string]model.Link)}
}

func (m *MemoryLinkRepository) InsertIfAbsent(ctx context.Context, link *model.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.ID]; exists {
		return ErrLinkExists
	}
	m.links[link.ID] = *link
	return nil
}

func (m *MemoryLinkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[id]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return &link, nil
}

func (m *MemoryLinkRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, link := range m.links {
		if link.ExpiresAt != nil && !link.ExpiresAt.After(before) {
			delete(m.links, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored links.
func (m *MemoryLinkRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

// MemoryClickEventRepository keeps click events in process memory, grouped by link id.
type MemoryClickEventRepository struct {
	mu     sync.RWMutex
	seq    int64
	events map[string][]model.ClickEvent
	now    func() time.Time
}

// NewMemoryClickEventRepository returns an empty in-memory click store.
func NewMemoryClickEventRepository() *MemoryClickEventRepository {
	return &MemoryClickEventRepository{
		events: make(map[string][]model.ClickEvent),
		now:    time.Now,
	}
}

func (m *MemoryClickEventRepository) Append(ctx context.Context, event *model.ClickEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	stored := *event
	stored.Seq = m.seq
	m.events[event.ID] = append(m.events[event.ID], stored)
	return nil
}

func (m *MemoryClickEventRepository) QueryRecent(ctx context.Context, id string, limit int) ([]model.ClickEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	now := m.now()

	m.mu.RLock()
	live := make([]model.ClickEvent, 0, len(m.events[id]))
	for _, e := range m.events[id] {
		if e.ExpiresAt.After(now) {
			live = append(live, e)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(live, func(a, b model.ClickEvent) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.Seq, a.Seq)
	})

	if len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

func (m *MemoryClickEventRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, events := range m.events {
		kept := events[:0]
		for _, e := range events {
			if e.ExpiresAt.After(before) {
				kept = append(kept, e)
				continue
			}
			deleted++
		}
		if len(kept) == 0 {
			delete(m.events, id)
			continue
		}
		m.events[id] = kept
	}
	return deleted, nil
}
