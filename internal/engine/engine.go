package engine

import (
	"context"
	"sync"

	"booking-server/internal/models"

	"go.uber.org/zap"
)

// Виды асинхронных операций, для которых ведётся монотонный счётчик
// поколений запросов: результат применяется только если его поколение
// совпадает с последним выданным для этого вида.
type asyncKind int

const (
	kindQuote asyncKind = iota
	kindAvailability
)

// Listener получает полный, свежесобранный снапшот состояния после каждой
// мутации. Снапшот - глубокая копия, слушатель может делать с ним что угодно.
type Listener func(models.EngineState)

// notification - один снапшот с набором слушателей, зафиксированным на
// момент мутации.
type notification struct {
	snapshot  models.EngineState
	listeners []Listener
}

// Collaborators - набор внешних зависимостей движка.
type Collaborators struct {
	Availability AvailabilityClient
	Catalog      CatalogClient
	Travel       TravelClient
	Sound        SoundPricingClient
	QuoteAPI     QuoteAPIClient
	BookingAPI   BookingAPIClient
	Drafts       DraftStore
	QuoteCache   QuoteCache
	Offline      OfflineDispatcher
}

// Engine - движок живого бронирования: владеет каноническим EngineState,
// секвенирует шаги визарда и диспатчит асинхронные операции.
//
// Вся мутация идёт через единственный редьюсер (reduce/reduceWith): он
// клонирует состояние, применяет частичное обновление и заменяет агрегат
// целиком, после чего синхронно уведомляет подписчиков. Подписчики никогда
// не видят частично применённого обновления.
type Engine struct {
	mu sync.Mutex // защищает state, listeners, gens и очередь уведомлений

	state     models.EngineState
	listeners map[int]Listener
	nextSubID int
	gens      map[asyncKind]uint64

	// Очередь доставки снапшотов. Доставкой в каждый момент занят ровно
	// один вызов (notifying); мутации, сделанные слушателями изнутри
	// уведомления, не рекурсируют, их снапшоты доезжают тем же циклом.
	pendingNotifies []notification
	notifying       bool

	key  string // live:{artistId}:{serviceId}
	deps Collaborators

	logger *zap.Logger
}

// New создаёт движок с дефолтным состоянием для пары (artist, service).
// Гидрация из локального снапшота выполняется отдельно (LoadDraft).
func New(artistID, serviceID int64, deps Collaborators, logger *zap.Logger) *Engine {
	return &Engine{
		state:     newDefaultState(artistID, serviceID),
		listeners: make(map[int]Listener),
		gens:      make(map[asyncKind]uint64),
		key:       models.SnapshotKey(artistID, serviceID),
		deps:      deps,
		logger:    logger.Named("BookingEngine").With(zap.Int64("artistID", artistID), zap.Int64("serviceID", serviceID)),
	}
}

func newDefaultState(artistID, serviceID int64) models.EngineState {
	steps := wizardSteps()
	return models.EngineState{
		ArtistID:  artistID,
		ServiceID: serviceID,
		StepID:    steps[0].ID,
		StepIndex: 0,
		Steps:     steps,
		Quote: models.Quote{
			IsDirty: true, // котировка ещё ни разу не считалась
		},
		Availability: models.Availability{Status: models.AvailabilityIdle},
		Booking:      models.BookingRef{Status: models.BookingIdle},
	}
}

// Key возвращает ключ локального снапшота этого движка.
func (e *Engine) Key() string {
	return e.key
}

// State возвращает глубокую копию текущего состояния.
func (e *Engine) State() models.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Subscribe регистрирует слушателя, немедленно вызывает его с текущим
// снапшотом и возвращает функцию отписки.
func (e *Engine) Subscribe(l Listener) func() {
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.listeners[id] = l
	snapshot := e.state.Clone()
	e.mu.Unlock()

	l(snapshot)

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// reduce - единственная точка мутации состояния. Клонирует текущее
// состояние, применяет mutate, заменяет агрегат целиком и синхронно
// рассылает новый снапшот всем подписчикам.
func (e *Engine) reduce(mutate func(s *models.EngineState)) models.EngineState {
	snap, _ := e.reduceWith(func(s *models.EngineState) error {
		mutate(s)
		return nil
	})
	return snap
}

// reduceWith - вариант редьюсера с проверкой: если mutate возвращает
// ошибку, состояние не меняется и подписчики не уведомляются. Так
// реализуются настоящие single-flight гварды - проверка флага и его
// установка происходят под одной блокировкой.
func (e *Engine) reduceWith(mutate func(s *models.EngineState) error) (models.EngineState, error) {
	e.mu.Lock()
	next := e.state.Clone()
	if err := mutate(&next); err != nil {
		prev := e.state.Clone()
		e.mu.Unlock()
		return prev, err
	}
	e.state = next
	snapshot := next.Clone()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.pendingNotifies = append(e.pendingNotifies, notification{snapshot: snapshot, listeners: listeners})
	e.drainNotifications()
	return snapshot, nil
}

// drainNotifications доставляет накопленные снапшоты в порядке применения
// мутаций. Вызывается с захваченным e.mu и возвращает управление с
// отпущенным. Слушатели вызываются без блокировки, поэтому подписчик может
// дёргать мутирующие методы движка прямо из уведомления: его мутация
// встанет в очередь и доедет этим же циклом доставки, без рекурсии.
func (e *Engine) drainNotifications() {
	if e.notifying {
		e.mu.Unlock()
		return
	}
	e.notifying = true
	for len(e.pendingNotifies) > 0 {
		n := e.pendingNotifies[0]
		e.pendingNotifies = e.pendingNotifies[1:]
		e.mu.Unlock()
		for _, l := range n.listeners {
			l(n.snapshot)
		}
		e.mu.Lock()
	}
	e.notifying = false
	e.mu.Unlock()
}

// nextGen выдаёт новое поколение запроса для данного вида операции.
// Вызывается только изнутри mutate-функции редьюсера.
func (e *Engine) nextGen(kind asyncKind) uint64 {
	e.gens[kind]++
	return e.gens[kind]
}

// applyIfCurrent применяет результат асинхронной операции только если её
// поколение всё ещё последнее выданное: устаревший ответ отбрасывается,
// а не перетирает более свежие данные.
func (e *Engine) applyIfCurrent(kind asyncKind, gen uint64, mutate func(s *models.EngineState)) bool {
	applied := false
	e.reduce(func(s *models.EngineState) {
		if e.gens[kind] != gen {
			return
		}
		applied = true
		mutate(s)
	})
	if !applied {
		e.logger.Debug("Stale async result dropped", zap.Int("kind", int(kind)), zap.Uint64("generation", gen))
	}
	return applied
}

// RefreshAvailability загружает недоступные даты исполнителя.
// Применение результата защищено поколением запроса: медленный ответ,
// пришедший после более позднего запроса, отбрасывается.
func (e *Engine) RefreshAvailability(ctx context.Context) error {
	var gen uint64
	e.reduce(func(s *models.EngineState) {
		gen = e.nextGen(kindAvailability)
		s.Availability.Status = models.AvailabilityLoading
		s.Flags.Loading = true
	})

	artistID := e.State().ArtistID
	dates, err := e.deps.Availability.GetUnavailableDates(ctx, artistID)
	if err != nil {
		e.logger.Warn("Failed to fetch unavailable dates", zap.Error(err))
		e.applyIfCurrent(kindAvailability, gen, func(s *models.EngineState) {
			s.Availability.Status = models.AvailabilityError
			s.Flags.Loading = false
		})
		return err
	}

	e.applyIfCurrent(kindAvailability, gen, func(s *models.EngineState) {
		s.Availability = models.Availability{
			UnavailableDates: dates,
			Status:           models.AvailabilityReady,
		}
		s.Flags.Loading = false
	})
	return nil
}

// SetOffline выставляет флаг офлайна в состоянии (сам факт офлайна
// определяет OfflineDispatcher; движок лишь отражает его для подписчиков).
func (e *Engine) SetOffline(offline bool) {
	e.reduce(func(s *models.EngineState) {
		s.Flags.Offline = offline
	})
}
