package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/albal/rmtrack/internal/models"
	"github.com/pkg/errors"
)

// Engine владеет расписанием: по одному отменяемому таймеру на трек.
// Все мутации идут через Service, Engine только решает, когда проверять
// и когда перестать.
type Engine struct {
	svc      *Service
	interval time.Duration

	mu      sync.Mutex
	ctx     context.Context
	handles map[string]chan struct{}
	pending []string
	wg      sync.WaitGroup

	startedAtUnixNano int64
	lastCheckUnixNano atomic.Int64
	totalChecks       atomic.Int64
	totalChanges      atomic.Int64
	totalFailures     atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func NewEngine(svc *Service, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Engine{
		svc:               svc,
		interval:          interval,
		handles:           map[string]chan struct{}{},
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// Run восстанавливает расписание всех недоставленных треков и блокируется до
// отмены контекста. Добавленные до Run треки копятся в pending.
func (e *Engine) Run(ctx context.Context) error {
	ids, err := e.svc.ActiveIdentifiers(ctx)
	if err != nil {
		return errors.Wrap(err, "list active trackings")
	}

	e.mu.Lock()
	e.ctx = ctx
	resume := append(ids, e.pending...)
	e.pending = nil
	e.mu.Unlock()

	for _, id := range resume {
		e.Track(id)
	}
	slog.Info("polling engine started", "tracked", len(resume), "interval", e.interval.String())

	<-ctx.Done()

	e.mu.Lock()
	for id, stop := range e.handles {
		close(stop)
		delete(e.handles, id)
	}
	e.mu.Unlock()
	e.wg.Wait()

	return ctx.Err()
}

func (e *Engine) Add(ctx context.Context, rawIdentifier string, notificationsEnabled bool) (AddResult, error) {
	res, err := e.svc.Add(ctx, rawIdentifier, notificationsEnabled)
	if err != nil {
		return res, err
	}
	if !res.Delivered {
		e.Track(res.Identifier)
	}
	return res, nil
}

func (e *Engine) Check(ctx context.Context, identifier string) (CheckResult, error) {
	e.lastCheckUnixNano.Store(time.Now().UTC().UnixNano())
	res, err := e.svc.Check(ctx, identifier)
	e.totalChecks.Add(1)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			e.totalFailures.Add(1)
			e.lastErrorMu.Lock()
			e.lastError = err.Error()
			e.lastErrorMu.Unlock()
		}
		return res, err
	}
	// Успешная проверка снимает последнюю ошибку из /stats.
	e.lastErrorMu.Lock()
	e.lastError = ""
	e.lastErrorMu.Unlock()
	if res.Changed {
		e.totalChanges.Add(1)
	}
	if res.Delivered {
		e.Untrack(identifier)
	}
	return res, nil
}

func (e *Engine) Get(ctx context.Context, identifier string) (*models.TrackingRecord, []*models.StatusEvent, error) {
	return e.svc.Get(ctx, identifier)
}

// Delete снимает расписание до удаления записи: после возврата новых мутаций
// истории по этому треку не будет.
func (e *Engine) Delete(ctx context.Context, identifier string) error {
	e.Untrack(identifier)
	return e.svc.Delete(ctx, identifier)
}

func (e *Engine) Track(identifier string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		e.pending = append(e.pending, identifier)
		return
	}
	if _, ok := e.handles[identifier]; ok {
		return
	}
	stop := make(chan struct{})
	e.handles[identifier] = stop
	e.wg.Add(1)
	go e.loop(e.ctx, identifier, stop)
}

func (e *Engine) Untrack(identifier string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stop, ok := e.handles[identifier]; ok {
		close(stop)
		delete(e.handles, identifier)
	}
	for i, id := range e.pending {
		if id == identifier {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			break
		}
	}
}

func (e *Engine) loop(ctx context.Context, identifier string, stop chan struct{}) {
	defer e.wg.Done()
	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-t.C:
			e.checkOnce(ctx, identifier)
		}
	}
}

func (e *Engine) checkOnce(ctx context.Context, identifier string) {
	_, err := e.Check(ctx, identifier)
	if err == nil {
		return
	}
	if errors.Is(err, models.ErrNotFound) {
		// Запись удалили мимо движка — снимаем расписание.
		e.Untrack(identifier)
		return
	}
	// Транзитная ошибка: состояние не трогаем, повтор на следующем тике.
	slog.Error("check tracking", "identifier", identifier, "error", err.Error())
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	Tracked       int        `json:"tracked"`
	LastCheckAt   *time.Time `json:"lastCheckAt,omitempty"`
	TotalChecks   int64      `json:"totalChecks"`
	TotalChanges  int64      `json:"totalChanges"`
	TotalFailures int64      `json:"totalFailures"`
	LastError     string     `json:"lastError,omitempty"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	tracked := len(e.handles) + len(e.pending)
	e.mu.Unlock()

	st := Stats{
		StartedAt:     time.Unix(0, e.startedAtUnixNano).UTC(),
		Tracked:       tracked,
		TotalChecks:   e.totalChecks.Load(),
		TotalChanges:  e.totalChanges.Load(),
		TotalFailures: e.totalFailures.Load(),
	}
	if n := e.lastCheckUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCheckAt = &t
	}
	e.lastErrorMu.Lock()
	st.LastError = e.lastError
	e.lastErrorMu.Unlock()
	return st
}
