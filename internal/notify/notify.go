package notify

import (
	"context"
	"time"
)

// StatusChanged — одно уведомление о смене статуса. Identifier служит
// dedup-ключом для потребителей (последнее уведомление по треку вытесняет
// предыдущее на стороне показа).
type StatusChanged struct {
	Identifier string    `json:"identifier"`
	Status     string    `json:"status"`
	Delivered  bool      `json:"delivered"`
	ChangedAt  time.Time `json:"changed_at"`
}

// Notifier — best-effort канал уведомлений: ошибка доставки логируется
// движком, но не считается ошибкой проверки.
type Notifier interface {
	Notify(ctx context.Context, change StatusChanged) error
}

// Noop используется, когда канал уведомлений не сконфигурирован.
type Noop struct{}

func (Noop) Notify(context.Context, StatusChanged) error { return nil }
