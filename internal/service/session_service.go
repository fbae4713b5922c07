package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"booking-server/internal/engine"
	"booking-server/internal/messaging"
	"booking-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session - живая сессия бронирования одного пользователя для пары
// (artist, service). Владеет движком; все операции над состоянием идут
// через него.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Engine    *engine.Engine
	CreatedAt time.Time
}

// SessionService держит реестр живых сессий. Одна сессия на пользователя и
// ключ live:{artist}:{service}: повторное открытие возвращает существующую
// сессию, а не плодит параллельные движки над одним черновиком.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	byKey    map[string]*Session // userID + snapshot key -> session

	deps   engine.Collaborators
	logger *zap.Logger
}

func NewSessionService(deps engine.Collaborators, logger *zap.Logger) *SessionService {
	return &SessionService{
		sessions: make(map[uuid.UUID]*Session),
		byKey:    make(map[string]*Session),
		deps:     deps,
		logger:   logger.Named("SessionService"),
	}
}

func sessionKey(userID uuid.UUID, artistID, serviceID int64) string {
	return userID.String() + ":" + models.SnapshotKey(artistID, serviceID)
}

// Open открывает (или возвращает существующую) сессию бронирования.
// Новая сессия гидрируется из локального черновика и асинхронно тянет
// занятость исполнителя.
func (s *SessionService) Open(ctx context.Context, userID uuid.UUID, artistID, serviceID int64) (*Session, error) {
	if artistID <= 0 || serviceID <= 0 {
		return nil, fmt.Errorf("%w: artist and service ids must be positive", models.ErrInvalidInput)
	}

	key := sessionKey(userID, artistID, serviceID)

	s.mu.Lock()
	if existing, ok := s.byKey[key]; ok {
		if existing.Engine.State().Booking.Status != models.BookingSubmitted {
			s.mu.Unlock()
			s.logger.Debug("Reusing existing booking session",
				zap.String("sessionID", existing.ID.String()), zap.String("key", key))
			return existing, nil
		}
		// Заявка этой пары уже отправлена: сессия отработала свой жизненный
		// цикл, новое открытие начинает его с чистого листа.
		delete(s.sessions, existing.ID)
		delete(s.byKey, key)
		s.logger.Info("Evicting submitted session, starting a fresh one",
			zap.String("sessionID", existing.ID.String()), zap.String("key", key))
	}

	session := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Engine:    engine.New(artistID, serviceID, s.deps, s.logger),
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[session.ID] = session
	s.byKey[key] = session
	s.mu.Unlock()

	s.logger.Info("Booking session opened",
		zap.String("sessionID", session.ID.String()),
		zap.Int64("artistID", artistID),
		zap.Int64("serviceID", serviceID))

	// Гидрация из локального зеркала: отказ стора не мешает открыть сессию
	// с чистого листа.
	if err := session.Engine.LoadDraft(ctx); err != nil {
		s.logger.Warn("Session opened without draft hydration", zap.Error(err))
	}

	// Занятость исполнителя тянем в фоне - визард не ждёт календарь.
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := session.Engine.RefreshAvailability(bgCtx); err != nil {
			s.logger.Warn("Initial availability refresh failed",
				zap.String("sessionID", session.ID.String()), zap.Error(err))
		}
	}()

	return session, nil
}

// Get возвращает сессию с проверкой владения.
func (s *SessionService) Get(sessionID, userID uuid.UUID) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: session %s", models.ErrSessionNotFound, sessionID)
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session belongs to another user", models.ErrForbidden)
	}
	return session, nil
}

// Close удаляет сессию из реестра (черновики и удалённое состояние не
// трогаются - их жизненный цикл у движка и booking API).
func (s *SessionService) Close(sessionID, userID uuid.UUID) error {
	session, err := s.Get(sessionID, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	for key, sess := range s.byKey {
		if sess.ID == sessionID {
			delete(s.byKey, key)
			break
		}
	}
	s.mu.Unlock()

	s.logger.Info("Booking session closed", zap.String("sessionID", session.ID.String()))
	return nil
}

// ResolveReplay выполняет отложенную отправку из durable-очереди: находит
// живую сессию по ключу снапшота и заново вызывает сабмит на её движке.
// Используется консьюмером очереди реплеев.
func (s *SessionService) ResolveReplay(ctx context.Context, payload messaging.ReplayTaskPayload) error {
	s.mu.RLock()
	var target *Session
	for _, session := range s.sessions {
		if session.Engine.Key() == payload.SessionKey {
			target = session
			break
		}
	}
	s.mu.RUnlock()

	if target == nil {
		return fmt.Errorf("%w: no live session for key %s", models.ErrSessionNotFound, payload.SessionKey)
	}

	// Дубликат доставки (или гонка с in-memory дренажом) молча
	// отбрасывается: заявка уходит не более одного раза.
	if target.Engine.State().Booking.Status == models.BookingSubmitted {
		s.logger.Info("Dropping replay for an already submitted booking",
			zap.String("taskID", payload.TaskID),
			zap.String("sessionKey", payload.SessionKey))
		return nil
	}

	s.logger.Info("Replaying deferred submission",
		zap.String("taskID", payload.TaskID),
		zap.String("sessionKey", payload.SessionKey))
	return target.Engine.SubmitBooking(ctx, payload.Message)
}

// SetConnectivity отражает режим связи во флагах всех живых сессий, чтобы
// их подписчики увидели переход офлайн/онлайн.
func (s *SessionService) SetConnectivity(offline bool) {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		session.Engine.SetOffline(offline)
	}
}
