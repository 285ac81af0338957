package mockprovider

import (
	"context"
	"time"

	"github.com/albal/rmtrack/internal/provider"
)

// Stages in progression order. The last stage is the delivered one.
var stages = []string{
	"Item received",
	"In transit",
	"Arrived at delivery office",
	"Out for delivery",
	"Delivered and signed for",
}

// Provider — детерминированная заглушка перевозчика: статус — ступенчатая
// функция от прошедшего времени, по одной ступени шириной step.
type Provider struct {
	step time.Duration
}

func New(step time.Duration) *Provider {
	if step <= 0 {
		step = time.Minute
	}
	return &Provider{step: step}
}

func (p *Provider) FetchStatus(_ context.Context, _ string, startedAt, now time.Time) (provider.StatusResult, error) {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	bucket := int(elapsed / p.step)
	if bucket >= len(stages) {
		bucket = len(stages) - 1
	}
	return provider.StatusResult{
		Status:    stages[bucket],
		Delivered: bucket == len(stages)-1,
	}, nil
}
