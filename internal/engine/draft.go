package engine

import (
	"context"
	"fmt"
	"time"

	"booking-server/internal/models"

	"go.uber.org/zap"
)

// SaveDraft сохраняет текущие details как черновик заявки: первый вызов
// создаёт удалённый черновик и фиксирует requestId, последующие обновляют
// тот же черновик. Локальное зеркало (DraftStore) пишется best-effort -
// его отказ логируется, но не фейлит операцию.
func (e *Engine) SaveDraft(ctx context.Context) error {
	_, err := e.reduceWith(func(s *models.EngineState) error {
		if s.Flags.SavingDraft {
			return models.ErrSaveInFlight
		}
		s.Flags.SavingDraft = true
		return nil
	})
	if err != nil {
		return err
	}

	snap := e.State()
	payload := buildPayload(snap, models.PayloadStatusDraft, "")

	requestID := snap.Booking.RequestID
	if requestID == "" {
		requestID, err = e.deps.BookingAPI.CreateDraft(ctx, payload)
	} else {
		err = e.deps.BookingAPI.UpdateDraft(ctx, requestID, payload)
	}
	if err != nil {
		draftSavesTotal.WithLabelValues("error").Inc()
		e.logger.Error("Failed to save booking draft", zap.String("requestID", requestID), zap.Error(err))
		e.reduce(func(s *models.EngineState) {
			s.Flags.SavingDraft = false
			s.Validation.GlobalError = "failed to save draft, please retry"
		})
		return fmt.Errorf("failed to save draft: %w", err)
	}

	e.mirrorDraft(ctx, requestID, snap)

	draftSavesTotal.WithLabelValues("success").Inc()
	e.logger.Info("Booking draft saved", zap.String("requestID", requestID))
	e.reduce(func(s *models.EngineState) {
		s.Booking.RequestID = requestID
		s.Booking.Status = models.BookingDraft
		s.Flags.SavingDraft = false
		s.Validation.GlobalError = ""
	})
	return nil
}

// mirrorDraft пишет локальное зеркало черновика. Отказ - только warning.
func (e *Engine) mirrorDraft(ctx context.Context, requestID string, snap models.EngineState) {
	if e.deps.Drafts == nil {
		return
	}
	mirror := models.DraftSnapshot{
		Details:   snap.Details,
		RequestID: requestID,
		Travel:    snap.Travel,
		SavedAt:   time.Now().UTC(),
	}
	if err := e.deps.Drafts.SaveDraft(ctx, e.key, mirror); err != nil {
		e.logger.Warn("Failed to mirror draft locally", zap.String("key", e.key), zap.Error(err))
	}
}

// LoadDraft гидрирует движок из локального зеркала, если оно есть.
// Ненулевые поля снапшота побеждают дефолты; отсутствие снапшота - не ошибка.
func (e *Engine) LoadDraft(ctx context.Context) error {
	if e.deps.Drafts == nil {
		return nil
	}
	snapshot, err := e.deps.Drafts.LoadDraft(ctx, e.key)
	if err != nil {
		e.logger.Warn("Failed to load draft snapshot", zap.String("key", e.key), zap.Error(err))
		return fmt.Errorf("failed to load draft snapshot: %w", err)
	}
	if snapshot == nil {
		return nil
	}

	e.logger.Info("Hydrating engine from draft snapshot",
		zap.String("key", e.key), zap.String("requestID", snapshot.RequestID))
	e.reduce(func(s *models.EngineState) {
		s.Details = snapshot.Details
		s.Travel = snapshot.Travel
		if snapshot.RequestID != "" {
			s.Booking.RequestID = snapshot.RequestID
			s.Booking.Status = models.BookingDraft
		}
		// Гидрированные details ещё не оценивались этим процессом.
		s.Quote.IsDirty = true
	})
	return nil
}

// DiscardDraft удаляет локальное зеркало и сбрасывает состояние движка к
// дефолтному. Удалённый черновик НЕ трогается: requestId забывается, но
// запись на стороне booking API остаётся до её собственной уборки.
func (e *Engine) DiscardDraft(ctx context.Context) error {
	if e.deps.Drafts != nil {
		if err := e.deps.Drafts.ClearDraft(ctx, e.key); err != nil {
			e.logger.Warn("Failed to clear draft snapshot", zap.String("key", e.key), zap.Error(err))
			return fmt.Errorf("failed to clear draft snapshot: %w", err)
		}
	}
	e.logger.Info("Draft discarded, resetting engine state", zap.String("key", e.key))
	e.reduce(func(s *models.EngineState) {
		*s = newDefaultState(s.ArtistID, s.ServiceID)
	})
	return nil
}

// buildPayload собирает исходящий payload заявки из снапшота состояния.
// proposed_datetime_1 склеивается из даты и времени события; время
// опционально.
func buildPayload(snap models.EngineState, status, message string) models.BookingPayload {
	details := snap.Details

	proposed := ""
	if details.EventDate != "" {
		proposed = details.EventDate
		if details.EventTime != "" {
			proposed = details.EventDate + "T" + details.EventTime
		}
	}

	breakdown := models.TravelBreakdown{
		VenueName:        details.VenueName,
		VenueType:        details.VenueType,
		EventType:        details.EventType,
		GuestCount:       details.GuestCount,
		SoundRequired:    details.SoundRequiredBool(),
		StageRequired:    details.StageRequired,
		LightingRequired: details.LightingRequired,
	}
	travelMode := ""
	travelCost := 0.0
	if snap.Travel != nil {
		breakdown.DistanceKm = snap.Travel.DistanceKm
		breakdown.Mode = snap.Travel.Mode
		travelMode = snap.Travel.Mode
		travelCost = snap.Travel.Cost
	}

	return models.BookingPayload{
		ArtistID:          snap.ArtistID,
		ServiceID:         snap.ServiceID,
		Status:            status,
		ProposedDatetime1: proposed,
		Message:           message,
		Details:           details,
		TravelBreakdown:   breakdown,
		SoundContext: models.SoundContext{
			SoundRequired:     details.SoundRequiredBool(),
			Mode:              details.SoundModePreference,
			GuestCount:        details.GuestCount,
			VenueType:         details.VenueType,
			StageRequired:     details.StageRequired,
			LightingRequired:  details.LightingRequired,
			SupplierServiceID: details.SoundSupplierServiceID,
		},
		RiderUnits:        snap.Quote.RiderUnits,
		BacklineRequested: snap.Quote.Backline,
		TravelMode:        travelMode,
		TravelCost:        travelCost,
	}
}
