package model

import "time"

// Link maps a short identifier to its destination. Links are written once and never updated.
type Link struct {
	ID          string     `json:"id" gorm:"column:id;primaryKey;size:32"`
	OriginalURL string     `json:"originalUrl" gorm:"column:original_url;type:text;not null"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"column:created_at;not null"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty" gorm:"column:expires_at;index"`
}

// TableName pins the table name used by GORM.
func (Link) TableName() string {
	return "links"
}

// Expired reports whether the link carries an expiry that has elapsed at now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}
