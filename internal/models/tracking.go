package models

import "time"

type TrackingRecord struct {
	Identifier           string
	NotificationsEnabled bool
	StartedAt            time.Time
	LastCheckedAt        *time.Time
	LastStatus           *string
	Delivered            bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type StatusEvent struct {
	ID         uint64
	Identifier string
	Status     string
	RecordedAt time.Time
	CreatedAt  time.Time
}
