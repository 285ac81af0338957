package provider

import (
	"context"
	"time"
)

type StatusResult struct {
	Status    string
	Delivered bool
}

// Client — источник текущего статуса трека. Контракт: статус монотонно
// прогрессирует, Delivered терминален (после true назад не откатывается).
type Client interface {
	FetchStatus(ctx context.Context, identifier string, startedAt, now time.Time) (StatusResult, error)
}
