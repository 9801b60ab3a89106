package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/snaplink/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrLinkExists signals that a conditional insert found the id already taken.
	ErrLinkExists = errors.New("link already exists")
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	// InsertIfAbsent writes the link only when no link with the same id exists.
	// It returns ErrLinkExists without touching the stored link otherwise.
	InsertIfAbsent(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id string) (*model.Link, error)
	// DeleteExpired removes links whose expiry is at or before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) InsertIfAbsent(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(link)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkExists
	}
	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", before).
		Delete(&model.Link{})
	return result.RowsAffected, result.Error
}
