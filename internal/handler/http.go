package handler

import (
	"errors"
	"fmt"
	"net/http"

	"booking-server/internal/models"
	"booking-server/internal/offline"
	"booking-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingHandler обрабатывает HTTP API живого бронирования.
type BookingHandler struct {
	sessions   *service.SessionService
	dispatcher *offline.Dispatcher
	jwtSecret  string
	logger     *zap.Logger
}

func NewBookingHandler(sessions *service.SessionService, dispatcher *offline.Dispatcher, jwtSecret string, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		sessions:   sessions,
		dispatcher: dispatcher,
		jwtSecret:  jwtSecret,
		logger:     logger.Named("BookingHandler"),
	}
}

// RegisterRoutes регистрирует маршруты живого бронирования.
func (h *BookingHandler) RegisterRoutes(router *gin.Engine) {
	live := router.Group("/live", h.AuthMiddleware())
	{
		live.POST("/sessions", h.openSession)
		live.GET("/sessions/:id", h.getSessionState)
		live.DELETE("/sessions/:id", h.closeSession)

		live.POST("/sessions/:id/steps/next", h.nextStep)
		live.POST("/sessions/:id/steps/prev", h.prevStep)
		live.POST("/sessions/:id/steps/goto", h.goToStep)

		live.PATCH("/sessions/:id/details", h.patchDetails)
		live.PUT("/sessions/:id/details/:field", h.updateField)

		live.POST("/sessions/:id/quote/recalculate", h.recalculateQuote)
		live.POST("/sessions/:id/availability/refresh", h.refreshAvailability)

		live.POST("/sessions/:id/draft", h.saveDraft)
		live.DELETE("/sessions/:id/draft", h.discardDraft)

		live.POST("/sessions/:id/submit", h.submitBooking)

		live.GET("/connectivity", h.getConnectivity)
		live.POST("/connectivity", h.setConnectivity)

		live.GET("/sessions/:id/ws", h.streamSession)
	}
}

// resolveSession достаёт сессию по path-параметру с проверкой владения.
func (h *BookingHandler) resolveSession(c *gin.Context) (*service.Session, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
			Code: models.ErrCodeTokenInvalid, Message: "User identity missing",
		})
		return nil, false
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleServiceError(c, fmt.Errorf("%w: invalid session id", models.ErrInvalidInput))
		return nil, false
	}

	session, err := h.sessions.Get(sessionID, userID)
	if err != nil {
		handleServiceError(c, err)
		return nil, false
	}
	return session, true
}

type openSessionRequest struct {
	ArtistID  int64 `json:"artist_id" binding:"required"`
	ServiceID int64 `json:"service_id" binding:"required"`
}

type sessionResponse struct {
	SessionID string             `json:"session_id"`
	State     models.EngineState `json:"state"`
}

func (h *BookingHandler) openSession(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
			Code: models.ErrCodeTokenInvalid, Message: "User identity missing",
		})
		return
	}

	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error()))
		return
	}

	session, err := h.sessions.Open(c.Request.Context(), userID, req.ArtistID, req.ServiceID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponse{
		SessionID: session.ID.String(),
		State:     session.Engine.State(),
	})
}

func (h *BookingHandler) getSessionState(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		SessionID: session.ID.String(),
		State:     session.Engine.State(),
	})
}

func (h *BookingHandler) closeSession(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	userID, _ := userIDFromContext(c)
	if err := h.sessions.Close(session.ID, userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BookingHandler) nextStep(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	state := session.Engine.NextStep()
	c.JSON(http.StatusOK, state)
}

func (h *BookingHandler) prevStep(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	state := session.Engine.PrevStep()
	c.JSON(http.StatusOK, state)
}

type goToStepRequest struct {
	Step models.StepID `json:"step" binding:"required"`
}

func (h *BookingHandler) goToStep(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	var req goToStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error()))
		return
	}
	state, err := session.Engine.GoToStep(req.Step)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *BookingHandler) patchDetails(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	var patch models.DetailsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error()))
		return
	}
	state, err := session.Engine.UpdateMany(patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type updateFieldRequest struct {
	Value interface{} `json:"value"`
}

func (h *BookingHandler) updateField(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	var req updateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error()))
		return
	}
	state, err := session.Engine.UpdateField(models.FieldKey(c.Param("field")), req.Value)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *BookingHandler) recalculateQuote(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	err := session.Engine.RecalculateQuote(c.Request.Context())
	if err != nil && !errors.Is(err, models.ErrQuoteClean) {
		// Чистая котировка - no-op, а не ошибка: отдаём текущее состояние.
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Engine.State())
}

func (h *BookingHandler) refreshAvailability(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	if err := session.Engine.RefreshAvailability(c.Request.Context()); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Engine.State())
}

func (h *BookingHandler) saveDraft(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	if err := session.Engine.SaveDraft(c.Request.Context()); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Engine.State())
}

func (h *BookingHandler) discardDraft(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	if err := session.Engine.DiscardDraft(c.Request.Context()); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Engine.State())
}

type submitRequest struct {
	Message string `json:"message"`
}

func (h *BookingHandler) submitBooking(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error()))
		return
	}
	if err := session.Engine.SubmitBooking(c.Request.Context(), req.Message); err != nil {
		handleServiceError(c, err)
		return
	}

	state := session.Engine.State()
	status := http.StatusOK
	if state.Flags.Offline {
		// Отправка отложена в очередь, а не выполнена.
		status = http.StatusAccepted
	}
	c.JSON(status, state)
}

type connectivityResponse struct {
	Offline    bool `json:"offline"`
	QueueDepth int  `json:"queue_depth"`
}

func (h *BookingHandler) getConnectivity(c *gin.Context) {
	c.JSON(http.StatusOK, connectivityResponse{
		Offline:    h.dispatcher.IsOffline(),
		QueueDepth: h.dispatcher.QueueDepth(),
	})
}

type setConnectivityRequest struct {
	Offline *bool `json:"offline" binding:"required"`
}

// setConnectivity переключает режим связи. Переход в онлайн синхронно
// дренирует очередь отложенных отправок; новый режим отражается во флагах
// всех живых сессий, чтобы их подписчики увидели переход.
func (h *BookingHandler) setConnectivity(c *gin.Context) {
	var req setConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error()))
		return
	}
	h.dispatcher.SetOffline(*req.Offline)
	h.sessions.SetConnectivity(*req.Offline)
	c.JSON(http.StatusOK, connectivityResponse{
		Offline:    h.dispatcher.IsOffline(),
		QueueDepth: h.dispatcher.QueueDepth(),
	})
}
