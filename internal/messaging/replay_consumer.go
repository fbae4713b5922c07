package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Пауза перед повторной попыткой, пока связь не восстановлена.
const offlineRequeueDelay = 5 * time.Second

// SessionResolver выполняет отложенную отправку для сессии, опознанной по
// её ключу. Возвращает ошибку, если сессия не найдена или сабмит провалился.
type SessionResolver func(ctx context.Context, payload ReplayTaskPayload) error

// RabbitMQReplayConsumer читает durable-очередь отложенных отправок и
// выполняет их через SessionResolver: сабмит всегда идёт по живому
// состоянию движка, а не по содержимому сообщения.
//
// Пока isOffline сообщает офлайн, сообщения возвращаются в очередь без
// обработки: реплей в офлайне снова уткнулся бы в офлайн-ветку сабмита и
// зациклил бы задачу через брокер.
type RabbitMQReplayConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	resolver  SessionResolver
	isOffline func() bool
}

// NewRabbitMQReplayConsumer открывает канал, объявляет очередь и выставляет
// prefetch=1: реплеи выполняются по одному, в порядке постановки.
// isOffline может быть nil - тогда консьюмер считает связь всегда живой.
func NewRabbitMQReplayConsumer(conn *amqp.Connection, queueName string, resolver SessionResolver, isOffline func() bool) (*RabbitMQReplayConsumer, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("session resolver is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &RabbitMQReplayConsumer{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		resolver:  resolver,
		isOffline: isOffline,
	}, nil
}

// StartConsuming блокирует до отмены контекста, обрабатывая сообщения по
// одному. Нерасшифровываемое сообщение отбрасывается (Nack без requeue),
// провалившийся реплей тоже: Run перечитывает живое состояние, так что
// бесконечный requeue с устаревшей задачей бессмысленен.
func (c *RabbitMQReplayConsumer) StartConsuming(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on '%s': %w", c.queueName, err)
	}

	log.Info().Str("queue", c.queueName).Msg("Replay consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("queue", c.queueName).Msg("Replay consumer stopping")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("replay delivery channel closed")
			}
			if c.isOffline != nil && c.isOffline() {
				// Возвращаем сообщение в очередь и ждём, чтобы не крутить
				// горячий цикл Nack/redeliver.
				_ = msg.Nack(false, true)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(offlineRequeueDelay):
				}
				continue
			}
			c.handleDelivery(ctx, msg)
		}
	}
}

func (c *RabbitMQReplayConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var payload ReplayTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal replay task, discarding")
		_ = msg.Nack(false, false)
		return
	}

	log.Info().Str("taskID", payload.TaskID).Str("sessionKey", payload.SessionKey).Msg("Processing replay task")

	if err := c.resolver(ctx, payload); err != nil {
		log.Error().Err(err).Str("taskID", payload.TaskID).Msg("Replay task failed, discarding")
		_ = msg.Nack(false, false)
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Error().Err(err).Str("taskID", payload.TaskID).Msg("Failed to ack replay task")
		return
	}
	log.Info().Str("taskID", payload.TaskID).Msg("Replay task completed")
}

// Close закрывает канал консьюмера.
func (c *RabbitMQReplayConsumer) Close() error {
	if c.channel != nil {
		return c.channel.Close()
	}
	return nil
}
