package handler

import (
	"net/http"
	"sync"
	"time"

	"booking-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	snapshotBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Доступ уже проверен AuthMiddleware; CORS-политика на уровне роутера.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamSession стримит снапшоты состояния движка по websocket. Первый
// кадр - текущее состояние (немедленный снапшот подписки), дальше - кадр
// на каждую мутацию в порядке применения.
func (h *BookingHandler) streamSession(c *gin.Context) {
	session, ok := h.resolveSession(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}

	log := h.logger.With(zap.String("sessionID", session.ID.String()))
	log.Info("Websocket stream opened")

	// Снапшоты уходят в буферизованный канал: медленный потребитель
	// отключается, а не тормозит рассылку движка.
	snapshots := make(chan models.EngineState, snapshotBuffer)
	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	unsubscribe := session.Engine.Subscribe(func(state models.EngineState) {
		select {
		case snapshots <- state:
		default:
			log.Warn("Websocket consumer too slow, dropping connection")
			closeDone()
		}
	})

	// Read pump: клиент ничего не шлёт по делу, читаем только ради
	// close-фреймов и pong'ов.
	go func() {
		defer closeDone()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		unsubscribe()
		ticker.Stop()
		_ = conn.Close()
		log.Info("Websocket stream closed")
	}()

	for {
		select {
		case <-done:
			return
		case state := <-snapshots:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(state); err != nil {
				log.Debug("Failed to write snapshot to websocket", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
