package engine

import (
	"context"
	"fmt"

	"booking-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitBooking переводит заявку из черновика в pending_quote.
//
// В офлайне отправка не фейлится, а откладывается: в очередь диспетчера
// кладётся ReplayTask, чей Run при выполнении заново вызывает SubmitBooking
// на живом движке - реплей после восстановления связи отправляет
// АКТУАЛЬНЫЕ details, а не замороженную копию.
func (e *Engine) SubmitBooking(ctx context.Context, initialMessage string) error {
	// Отправляем не более одного раза: дубликат реплея (или повторный клик)
	// отскакивает от статуса, а не порождает вторую заявку.
	if e.State().Booking.Status == models.BookingSubmitted {
		return models.ErrAlreadySubmitted
	}

	if e.deps.Offline != nil && e.deps.Offline.IsOffline() {
		return e.enqueueSubmission(initialMessage)
	}

	_, err := e.reduceWith(func(s *models.EngineState) error {
		if s.Booking.Status == models.BookingSubmitted {
			return models.ErrAlreadySubmitted
		}
		if s.Flags.Submitting {
			return models.ErrSubmitInFlight
		}
		s.Flags.Submitting = true
		return nil
	})
	if err != nil {
		return err
	}

	// Черновик должен существовать до сабмита: без requestId создаём его
	// здесь же.
	if e.State().Booking.RequestID == "" {
		if err := e.SaveDraft(ctx); err != nil {
			e.reduce(func(s *models.EngineState) {
				s.Flags.Submitting = false
			})
			submissionsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to create draft before submit: %w", err)
		}
	}

	snap := e.State()
	payload := buildPayload(snap, models.PayloadStatusPendingQuote, initialMessage)

	if err := e.deps.BookingAPI.Submit(ctx, snap.Booking.RequestID, payload); err != nil {
		submissionsTotal.WithLabelValues("error").Inc()
		e.logger.Error("Booking submission failed",
			zap.String("requestID", snap.Booking.RequestID), zap.Error(err))
		// Статус не меняется - заявка остаётся черновиком, сабмит можно
		// повторить.
		e.reduce(func(s *models.EngineState) {
			s.Flags.Submitting = false
			s.Validation.GlobalError = "submission failed, please retry"
		})
		return fmt.Errorf("failed to submit booking: %w", err)
	}

	// Сопроводительное сообщение - best-effort: заявка уже отправлена.
	if initialMessage != "" {
		if err := e.deps.BookingAPI.PostSystemMessage(ctx, snap.Booking.RequestID, initialMessage); err != nil {
			e.logger.Warn("Failed to post initial message",
				zap.String("requestID", snap.Booking.RequestID), zap.Error(err))
		}
	}

	// Локальное зеркало черновика больше не нужно.
	if e.deps.Drafts != nil {
		if err := e.deps.Drafts.ClearDraft(ctx, e.key); err != nil {
			e.logger.Warn("Failed to clear draft snapshot after submit",
				zap.String("key", e.key), zap.Error(err))
		}
	}

	submissionsTotal.WithLabelValues("success").Inc()
	e.logger.Info("Booking submitted", zap.String("requestID", snap.Booking.RequestID))
	e.reduce(func(s *models.EngineState) {
		s.Booking.Status = models.BookingSubmitted
		s.Flags.Submitting = false
		// Успешный реплей означает, что связь есть.
		s.Flags.Offline = false
		s.Validation.GlobalError = ""
	})
	return nil
}

// enqueueSubmission откладывает сабмит до восстановления связи.
func (e *Engine) enqueueSubmission(initialMessage string) error {
	task := ReplayTask{
		TaskID:     uuid.NewString(),
		SessionKey: e.key,
		Message:    initialMessage,
		Run: func(ctx context.Context) error {
			return e.SubmitBooking(ctx, initialMessage)
		},
	}
	if err := e.deps.Offline.Enqueue(task); err != nil {
		e.logger.Error("Failed to enqueue offline submission", zap.Error(err))
		return fmt.Errorf("failed to enqueue offline submission: %w", err)
	}

	offlineEnqueuedTotal.Inc()
	e.logger.Info("Submission deferred to offline queue",
		zap.String("taskID", task.TaskID), zap.String("key", e.key))
	e.reduce(func(s *models.EngineState) {
		s.Flags.Offline = true
	})
	return nil
}
