package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"booking-server/internal/engine"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// ReplayTaskPayload - сообщение в durable-очереди отложенных отправок.
// Замыкание Run не сериализуемо, поэтому в брокер уходит только идентификация
// сессии: консьюмер резолвит живой движок по SessionKey и заново вызывает
// сабмит на нём.
type ReplayTaskPayload struct {
	TaskID     string    `json:"task_id"`
	SessionKey string    `json:"session_key"`
	Message    string    `json:"message"`
	QueuedAt   time.Time `json:"queued_at"`
}

// RabbitMQReplayPublisher публикует отложенные отправки в durable-очередь,
// чтобы они переживали рестарт процесса.
type RabbitMQReplayPublisher struct {
	channel   *amqp.Channel
	queueName string
}

// NewRabbitMQReplayPublisher открывает канал и объявляет очередь.
// Важно: предполагается, что соединение уже установлено и переподключения
// управляются внешним кодом.
func NewRabbitMQReplayPublisher(conn *amqp.Connection, queueName string) (*RabbitMQReplayPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open a channel")
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Параметры очереди должны совпадать с консьюмером.
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error().Err(err).Str("queue", queueName).Msg("Failed to declare replay queue")
		return nil, fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}

	log.Info().Str("queue", queueName).Msg("Replay queue declared successfully")
	return &RabbitMQReplayPublisher{channel: ch, queueName: queueName}, nil
}

// PublishReplayTask публикует задачу с persistent delivery mode.
func (p *RabbitMQReplayPublisher) PublishReplayTask(ctx context.Context, task engine.ReplayTask) error {
	payload := ReplayTaskPayload{
		TaskID:     task.TaskID,
		SessionKey: task.SessionKey,
		Message:    task.Message,
		QueuedAt:   time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("taskID", task.TaskID).Msg("Failed to marshal replay task")
		return fmt.Errorf("failed to marshal replay task: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			MessageId:    task.TaskID,
		},
	)
	if err != nil {
		log.Error().Err(err).Str("taskID", task.TaskID).Msg("Failed to publish replay task")
		return fmt.Errorf("failed to publish replay task: %w", err)
	}

	log.Info().Str("taskID", task.TaskID).Str("sessionKey", task.SessionKey).Msg("Replay task published")
	return nil
}

// Close закрывает канал паблишера.
func (p *RabbitMQReplayPublisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
