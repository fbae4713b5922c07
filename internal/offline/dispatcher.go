package offline

import (
	"context"
	"sync"
	"time"

	"booking-server/internal/engine"

	"go.uber.org/zap"
)

// Dispatcher - in-process очередь отложенных отправок заявок.
//
// Пока флаг офлайна поднят, задачи копятся в порядке постановки. Переход
// в онлайн синхронно дренирует очередь: задачи выполняются последовательно,
// FIFO. Ошибка реплея логируется и задача выбрасывается - Run каждой задачи
// перечитывает живое состояние движка, поэтому повторная постановка задачи
// с устаревшими данными бессмысленна.
//
// У каждой задачи ровно один владелец: при живом паблишере она уходит в
// durable-очередь брокера (и переживает рестарт процесса), in-memory
// очередь держит только задачи, которые опубликовать не удалось. Иначе
// одна отправка выполнилась бы дважды - из памяти и из брокера.
type Dispatcher struct {
	mu      sync.Mutex
	offline bool
	queue   []engine.ReplayTask

	publisher ReplayPublisher
	timeout   time.Duration
	logger    *zap.Logger
}

// ReplayPublisher дублирует отложенную задачу во внешнюю durable-очередь.
type ReplayPublisher interface {
	PublishReplayTask(ctx context.Context, task engine.ReplayTask) error
}

// NewDispatcher создаёт диспетчер. publisher может быть nil - тогда очередь
// живёт только в памяти процесса.
func NewDispatcher(publisher ReplayPublisher, replayTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if replayTimeout <= 0 {
		replayTimeout = 30 * time.Second
	}
	return &Dispatcher{
		publisher: publisher,
		timeout:   replayTimeout,
		logger:    logger.Named("OfflineDispatcher"),
	}
}

// IsOffline сообщает текущий режим связи.
func (d *Dispatcher) IsOffline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offline
}

// Enqueue регистрирует отложенную задачу: в durable-очередь брокера, если
// публикация удалась, иначе в хвост in-memory очереди. Владелец задачи
// всегда один.
func (d *Dispatcher) Enqueue(task engine.ReplayTask) error {
	if d.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.publisher.PublishReplayTask(ctx, task); err != nil {
			d.logger.Warn("Failed to publish replay task, keeping it in memory",
				zap.String("taskID", task.TaskID), zap.Error(err))
		} else {
			d.logger.Info("Replay task handed to durable queue",
				zap.String("taskID", task.TaskID),
				zap.String("sessionKey", task.SessionKey))
			return nil
		}
	}

	d.mu.Lock()
	d.queue = append(d.queue, task)
	depth := len(d.queue)
	d.mu.Unlock()

	d.logger.Info("Replay task enqueued in memory",
		zap.String("taskID", task.TaskID),
		zap.String("sessionKey", task.SessionKey),
		zap.Int("queueDepth", depth))
	return nil
}

// SetOffline переключает режим связи. Переход offline -> online дренирует
// очередь синхронно в порядке постановки.
func (d *Dispatcher) SetOffline(offline bool) {
	d.mu.Lock()
	wasOffline := d.offline
	d.offline = offline
	var drained []engine.ReplayTask
	if wasOffline && !offline {
		drained = d.queue
		d.queue = nil
	}
	d.mu.Unlock()

	if len(drained) == 0 {
		return
	}

	d.logger.Info("Connectivity restored, draining replay queue", zap.Int("tasks", len(drained)))
	for _, task := range drained {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := task.Run(ctx); err != nil {
			d.logger.Error("Replay task failed",
				zap.String("taskID", task.TaskID),
				zap.String("sessionKey", task.SessionKey),
				zap.Error(err))
		} else {
			d.logger.Info("Replay task completed", zap.String("taskID", task.TaskID))
		}
		cancel()
	}
}

// QueueDepth возвращает глубину in-memory очереди - задачи, ушедшие в
// брокер, здесь не считаются (их доставит консьюмер durable-очереди).
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
