package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/snaplink/internal/app/model"
	"github.com/sifan077/snaplink/internal/app/repository"
)

const (
	// DefaultMaxAttempts bounds identifier generation per create request.
	DefaultMaxAttempts = 5
	// PlaceholderOrigin stands in for the public origin when the caller supplies none.
	PlaceholderOrigin = "https://{api-domain}"
)

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*CreatedLink, error)
}

// Origin describes where short URLs are served from.
type Origin struct {
	Scheme string
	Domain string
	Stage  string
}

// ShortURL composes the public URL for id, using PlaceholderOrigin when no domain is known.
func (o Origin) ShortURL(id string) string {
	domain := strings.TrimRight(strings.TrimSpace(o.Domain), "/")
	if domain == "" {
		return PlaceholderOrigin + "/" + id
	}

	scheme := o.Scheme
	if scheme == "" {
		scheme = "https"
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(domain)
	if stage := strings.Trim(o.Stage, "/"); stage != "" {
		b.WriteString("/")
		b.WriteString(stage)
	}
	b.WriteString("/")
	b.WriteString(id)
	return b.String()
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	URL    string
	Origin Origin
}

// CreatedLink is the result of a successful CreateLink call.
type CreatedLink struct {
	ID          string
	ShortURL    string
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// LinkServiceOptions tunes link creation. Zero values select defaults.
type LinkServiceOptions struct {
	IDs         IDGenerator
	MaxAttempts int
	// TTL attaches an expiry to new links; zero keeps them forever.
	TTL      time.Duration
	Observer Observer
	Clock    func() time.Time
}

type linkService struct {
	repo        repository.LinkRepository
	ids         IDGenerator
	maxAttempts int
	ttl         time.Duration
	observer    Observer
	now         func() time.Time
}

// NewLinkService returns a service implementation backed by the given repository.
func NewLinkService(repo repository.LinkRepository, opts LinkServiceOptions) LinkService {
	s := &linkService{
		repo:        repo,
		ids:         opts.IDs,
		maxAttempts: opts.MaxAttempts,
		ttl:         opts.TTL,
		observer:    opts.Observer,
		now:         opts.Clock,
	}
	if s.ids == nil {
		s.ids = NewNanoIDGenerator(DefaultIDLength)
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*CreatedLink, error) {
	if !ValidateURL(input.URL) {
		return nil, ErrInvalidURL
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		id, err := s.ids.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate id: %w", err)
		}

		now := s.now().UTC()
		link := &model.Link{
			ID:          id,
			OriginalURL: input.URL,
			CreatedAt:   now,
		}
		if s.ttl > 0 {
			expiresAt := now.Add(s.ttl)
			link.ExpiresAt = &expiresAt
		}

		err = s.repo.InsertIfAbsent(ctx, link)
		if errors.Is(err, repository.ErrLinkExists) {
			s.observer.IDCollision(id, attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}

		s.observer.LinkCreated(id, attempt)
		return &CreatedLink{
			ID:          link.ID,
			ShortURL:    input.Origin.ShortURL(link.ID),
			OriginalURL: link.OriginalURL,
			CreatedAt:   link.CreatedAt,
			ExpiresAt:   link.ExpiresAt,
		}, nil
	}

	s.observer.CollisionExhausted(s.maxAttempts)
	return nil, ErrCollisionExhausted
}
