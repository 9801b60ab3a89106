package model

import "time"

// UnknownTelemetry is stored when a request carries no referrer or user agent.
const UnknownTelemetry = "unknown"

// TimestampLayout is fixed-width so that lexicographic order matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// ClickEvent records one redirect resolution.
type ClickEvent struct {
	Seq       int64     `json:"-" gorm:"column:seq;primaryKey;autoIncrement"`
	ID        string    `json:"id" gorm:"column:id;size:32;not null;index:idx_clicks_id_timestamp,priority:1"`
	Timestamp string    `json:"timestamp" gorm:"column:timestamp;size:32;not null;index:idx_clicks_id_timestamp,priority:2"`
	Referrer  string    `json:"referrer" gorm:"column:referrer;type:text;not null"`
	UserAgent string    `json:"userAgent" gorm:"column:user_agent;type:text;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"column:expires_at;not null;index"`
}

// TableName pins the table name used by GORM.
func (ClickEvent) TableName() string {
	return "clicks"
}

// FormatTimestamp renders t as a sortable click timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
