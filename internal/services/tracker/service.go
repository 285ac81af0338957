package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/albal/rmtrack/internal/cache"
	"github.com/albal/rmtrack/internal/models"
	"github.com/albal/rmtrack/internal/notify"
	"github.com/albal/rmtrack/internal/provider"
	"github.com/albal/rmtrack/internal/validator"
	"github.com/pkg/errors"
)

type Store interface {
	CreateRecord(ctx context.Context, rec models.TrackingRecord, status string, delivered bool) error
	GetRecord(ctx context.Context, identifier string) (*models.TrackingRecord, error)
	ListActiveIdentifiers(ctx context.Context) ([]string, error)
	ListHistory(ctx context.Context, identifier string) ([]*models.StatusEvent, error)
	AppendHistory(ctx context.Context, identifier, status string, recordedAt time.Time, delivered bool) error
	TouchChecked(ctx context.Context, identifier string, checkedAt time.Time) error
	MarkDelivered(ctx context.Context, identifier string, checkedAt time.Time) error
	DeleteRecord(ctx context.Context, identifier string) error
}

type Service struct {
	store    Store
	provider provider.Client
	notifier notify.Notifier
	cache    cache.BytesCache
	cacheTTL time.Duration

	now func() time.Time

	// Проверки по одному треку сериализуются: тик, пришедший во время
	// незавершённой проверки, встаёт в очередь, а не бежит параллельно.
	mu     sync.Mutex
	checks map[string]*sync.Mutex
}

func New(store Store, pr provider.Client, nt notify.Notifier, c cache.BytesCache, cacheTTL time.Duration) *Service {
	if nt == nil {
		nt = notify.Noop{}
	}
	return &Service{
		store:    store,
		provider: pr,
		notifier: nt,
		cache:    c,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
		checks:   map[string]*sync.Mutex{},
	}
}

func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

type AddResult struct {
	Identifier string
	Status     string
	Delivered  bool
}

func (s *Service) Add(ctx context.Context, rawIdentifier string, notificationsEnabled bool) (AddResult, error) {
	if !validator.Valid(rawIdentifier) {
		return AddResult{}, errors.Wrapf(models.ErrInvalidIdentifier, "%q", rawIdentifier)
	}
	identifier := validator.Normalize(rawIdentifier)
	now := s.now()

	// Ошибка провайдера на Add видна вызывающему, запись не создаётся.
	res, err := s.provider.FetchStatus(ctx, identifier, now, now)
	if err != nil {
		return AddResult{}, errors.Wrapf(models.ErrProviderUnavailable, "fetch status: %v", err)
	}

	rec := models.TrackingRecord{
		Identifier:           identifier,
		NotificationsEnabled: notificationsEnabled,
		StartedAt:            now,
	}
	// Запись и первая строка истории создаются одной операцией стора:
	// неудавшийся Add не оставляет частичного состояния.
	if err := s.store.CreateRecord(ctx, rec, res.Status, res.Delivered); err != nil {
		return AddResult{}, err
	}
	s.refreshCache(ctx, identifier)

	return AddResult{Identifier: identifier, Status: res.Status, Delivered: res.Delivered}, nil
}

type CheckResult struct {
	Identifier string
	Status     string
	Delivered  bool
	Changed    bool
}

func (s *Service) Check(ctx context.Context, identifier string) (CheckResult, error) {
	lock := s.checkLock(identifier)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.store.GetRecord(ctx, identifier)
	if err != nil {
		return CheckResult{}, err
	}

	if rec.Delivered {
		// Терминальное состояние: проверка — чистый no-op.
		res := CheckResult{Identifier: identifier, Delivered: true}
		if rec.LastStatus != nil {
			res.Status = *rec.LastStatus
		}
		return res, nil
	}

	now := s.now()
	st, err := s.provider.FetchStatus(ctx, identifier, rec.StartedAt, now)
	if err != nil {
		return CheckResult{}, errors.Wrapf(models.ErrProviderUnavailable, "fetch status: %v", err)
	}

	// Единственный сигнал смены — точное сравнение строк статуса.
	changed := rec.LastStatus == nil || *rec.LastStatus != st.Status

	if !changed {
		// Доставка распознаётся и при неизменившейся строке статуса:
		// флаг фиксируется отдельной операцией, без записи в историю.
		if st.Delivered {
			err = s.store.MarkDelivered(ctx, identifier, now)
		} else {
			err = s.store.TouchChecked(ctx, identifier, now)
		}
		if err != nil {
			return CheckResult{}, err
		}
		s.refreshCache(ctx, identifier)
		return CheckResult{Identifier: identifier, Status: st.Status, Delivered: st.Delivered}, nil
	}

	if err := s.store.AppendHistory(ctx, identifier, st.Status, now, st.Delivered); err != nil {
		return CheckResult{}, err
	}
	s.refreshCache(ctx, identifier)

	if rec.NotificationsEnabled {
		if err := s.notifier.Notify(ctx, notify.StatusChanged{
			Identifier: identifier,
			Status:     st.Status,
			Delivered:  st.Delivered,
			ChangedAt:  now,
		}); err != nil {
			slog.Warn("notify status change", "identifier", identifier, "error", err.Error())
		}
	}

	return CheckResult{Identifier: identifier, Status: st.Status, Delivered: st.Delivered, Changed: true}, nil
}

func (s *Service) Get(ctx context.Context, identifier string) (*models.TrackingRecord, []*models.StatusEvent, error) {
	rec := s.cachedRecord(ctx, identifier)
	if rec == nil {
		var err error
		rec, err = s.store.GetRecord(ctx, identifier)
		if err != nil {
			return nil, nil, err
		}
		s.setCache(ctx, rec)
	}

	evs, err := s.store.ListHistory(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	return rec, evs, nil
}

func (s *Service) Delete(ctx context.Context, identifier string) error {
	if err := s.store.DeleteRecord(ctx, identifier); err != nil {
		return err
	}
	if s.cache != nil && s.cacheTTL > 0 {
		_ = s.cache.Del(ctx, recordKey(identifier))
	}
	// Мьютекс проверки остаётся в реестре: незавершённый Check по удалённому
	// треку не должен перекрываться с проверками после повторного добавления.
	return nil
}

func (s *Service) ActiveIdentifiers(ctx context.Context) ([]string, error) {
	return s.store.ListActiveIdentifiers(ctx)
}

func (s *Service) checkLock(identifier string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.checks[identifier]
	if !ok {
		l = &sync.Mutex{}
		s.checks[identifier] = l
	}
	return l
}

// refreshCache перечитывает запись из БД: кэш всегда обновляется от источника
// истины после мутации и никогда не считается авторитетным.
func (s *Service) refreshCache(ctx context.Context, identifier string) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	rec, err := s.store.GetRecord(ctx, identifier)
	if err != nil {
		return
	}
	s.setCache(ctx, rec)
}

func (s *Service) setCache(ctx context.Context, rec *models.TrackingRecord) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	b, _ := json.Marshal(rec)
	_ = s.cache.Set(ctx, recordKey(rec.Identifier), b, s.cacheTTL)
}

func (s *Service) cachedRecord(ctx context.Context, identifier string) *models.TrackingRecord {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}
	b, ok, err := s.cache.Get(ctx, recordKey(identifier))
	if err != nil || !ok {
		return nil
	}
	var rec models.TrackingRecord
	if json.Unmarshal(b, &rec) != nil {
		return nil
	}
	return &rec
}

func recordKey(identifier string) string {
	return fmt.Sprintf("tracking:%s:current", identifier)
}
