package offline_test

import (
	"context"
	"errors"
	"testing"

	"booking-server/internal/engine"
	"booking-server/internal/offline"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Заглушка durable-паблишера: фиксирует опубликованные задачи или
// возвращает заданную ошибку.
type stubReplayPublisher struct {
	err       error
	published []engine.ReplayTask
}

func (s *stubReplayPublisher) PublishReplayTask(_ context.Context, task engine.ReplayTask) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, task)
	return nil
}

func TestDispatcher(t *testing.T) {
	t.Run("Starts online with empty queue", func(t *testing.T) {
		d := offline.NewDispatcher(nil, 0, zap.NewNop())
		assert.False(t, d.IsOffline())
		assert.Equal(t, 0, d.QueueDepth())
	})

	t.Run("Drains FIFO on reconnect", func(t *testing.T) {
		d := offline.NewDispatcher(nil, 0, zap.NewNop())
		d.SetOffline(true)

		var order []string
		enqueue := func(id string) {
			assert.NoError(t, d.Enqueue(engine.ReplayTask{
				TaskID: id,
				Run: func(context.Context) error {
					order = append(order, id)
					return nil
				},
			}))
		}
		enqueue("first")
		enqueue("second")
		enqueue("third")
		assert.Equal(t, 3, d.QueueDepth())

		d.SetOffline(false)
		assert.Equal(t, []string{"first", "second", "third"}, order)
		assert.Equal(t, 0, d.QueueDepth())
	})

	t.Run("Failed task does not block the rest", func(t *testing.T) {
		d := offline.NewDispatcher(nil, 0, zap.NewNop())
		d.SetOffline(true)

		ran := false
		assert.NoError(t, d.Enqueue(engine.ReplayTask{
			TaskID: "bad",
			Run:    func(context.Context) error { return errors.New("boom") },
		}))
		assert.NoError(t, d.Enqueue(engine.ReplayTask{
			TaskID: "good",
			Run: func(context.Context) error {
				ran = true
				return nil
			},
		}))

		d.SetOffline(false)
		assert.True(t, ran, "ошибка первой задачи не останавливает дренаж")
	})

	t.Run("Published task is owned by the broker alone", func(t *testing.T) {
		pub := &stubReplayPublisher{}
		d := offline.NewDispatcher(pub, 0, zap.NewNop())
		d.SetOffline(true)

		ran := false
		assert.NoError(t, d.Enqueue(engine.ReplayTask{
			TaskID: "durable",
			Run: func(context.Context) error {
				ran = true
				return nil
			},
		}))

		assert.Len(t, pub.published, 1)
		assert.Equal(t, 0, d.QueueDepth(), "опубликованная задача не дублируется в памяти")

		// Задачу из брокера выполнит консьюмер durable-очереди; дренаж
		// выполнил бы её второй раз.
		d.SetOffline(false)
		assert.False(t, ran)
	})

	t.Run("Publish failure falls back to memory", func(t *testing.T) {
		pub := &stubReplayPublisher{err: errors.New("broker down")}
		d := offline.NewDispatcher(pub, 0, zap.NewNop())
		d.SetOffline(true)

		ran := false
		assert.NoError(t, d.Enqueue(engine.ReplayTask{
			TaskID: "fallback",
			Run: func(context.Context) error {
				ran = true
				return nil
			},
		}))
		assert.Equal(t, 1, d.QueueDepth())

		d.SetOffline(false)
		assert.True(t, ran)
		assert.Empty(t, pub.published)
	})

	t.Run("Going offline twice does not drain", func(t *testing.T) {
		d := offline.NewDispatcher(nil, 0, zap.NewNop())
		d.SetOffline(true)

		ran := false
		assert.NoError(t, d.Enqueue(engine.ReplayTask{
			TaskID: "waiting",
			Run: func(context.Context) error {
				ran = true
				return nil
			},
		}))

		d.SetOffline(true) // повторный offline - no-op
		assert.False(t, ran)
		assert.Equal(t, 1, d.QueueDepth())
	})
}
