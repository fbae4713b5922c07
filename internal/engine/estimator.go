package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"booking-server/internal/models"

	"go.uber.org/zap"
)

// RecalculateQuote пересчитывает ценовое разложение из текущих details.
//
// No-op (с сентинелом), если котировка не грязная или расчёт уже в полёте:
// это single-flight гвард, а не очередь - второй вызов во время расчёта
// отбрасывается, не откладывается.
//
// Пайплайн: райдер -> нормализация -> дистанция до поставщика звука ->
// кэш -> удалённый pricing-сервис -> локальный fallback стоимости звука.
// При успехе объект quote заменяется целиком, isDirty снимается. При
// ошибке удалённого расчёта предыдущая котировка остаётся нетронутой,
// выставляется глобальная ошибка. Ошибки fallback-пути проглатываются
// (только лог) и не мешают публикации валидных полей основного ответа.
func (e *Engine) RecalculateQuote(ctx context.Context) error {
	var gen uint64
	_, err := e.reduceWith(func(s *models.EngineState) error {
		if !s.Quote.IsDirty {
			return models.ErrQuoteClean
		}
		if s.Flags.QuoteLoading {
			return models.ErrRecalcInFlight
		}
		gen = e.nextGen(kindQuote)
		s.Flags.QuoteLoading = true
		return nil
	})
	if err != nil {
		return err
	}

	snap := e.State()
	log := e.logger.With(zap.Uint64("generation", gen))

	result, travel, calcErr := e.computeQuote(ctx, snap, log)
	if calcErr != nil {
		quoteRecalcTotal.WithLabelValues("error").Inc()
		log.Error("Quote recalculation failed", zap.Error(calcErr))
		// Предыдущая котировка не трогается: снимаем флаг и ставим
		// глобальную ошибку.
		e.applyIfCurrent(kindQuote, gen, func(s *models.EngineState) {
			s.Flags.QuoteLoading = false
			s.Validation.GlobalError = "quote calculation failed, please retry"
		})
		return calcErr
	}

	applied := e.applyIfCurrent(kindQuote, gen, func(s *models.EngineState) {
		s.Quote = *result
		s.Travel = travel
		s.Flags.QuoteLoading = false
		s.Validation.GlobalError = ""
	})
	if applied {
		quoteRecalcTotal.WithLabelValues("success").Inc()
	} else {
		quoteRecalcTotal.WithLabelValues("stale").Inc()
	}
	return nil
}

// computeQuote выполняет собственно расчёт без мутации состояния.
// Возвращает новую котировку (isDirty уже снят) и travel-результат.
func (e *Engine) computeQuote(ctx context.Context, snap models.EngineState, log *zap.Logger) (*models.Quote, *models.TravelResult, error) {
	details := snap.Details

	// 1. Метаданные бронируемого сервиса: базовая ставка и глобальный
	// режим обеспечения звука.
	service, err := e.deps.Catalog.GetService(ctx, snap.ServiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve booked service %d: %w", snap.ServiceID, err)
	}
	if service == nil {
		return nil, nil, fmt.Errorf("%w: service %d", models.ErrNotFound, snap.ServiceID)
	}

	// 2. Райдер -> канонические ценовые единицы + бэклайн.
	spec, err := e.deps.Catalog.GetRiderSpec(ctx, snap.ServiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve rider spec for service %d: %w", snap.ServiceID, err)
	}
	rider := normalizeRider(spec)
	if len(rider.Dropped) > 0 {
		log.Debug("Unrecognized rider items dropped from pricing", zap.Strings("items", rider.Dropped))
	}

	// 3. Дистанция туда-обратно до базы выбранного поставщика звука.
	var travel *models.TravelResult
	if details.SoundSupplierServiceID != 0 && details.Location != "" {
		travel, err = e.resolveSupplierTravel(ctx, details, log)
		if err != nil {
			return nil, nil, err
		}
	}
	if travel == nil {
		travel = snap.Travel // дистанцию не резолвили - сохраняем прежний результат
	}

	distanceKm := 0.0
	if travel != nil {
		distanceKm = travel.DistanceKm
	}

	req := QuoteEstimateRequest{
		ArtistID:         snap.ArtistID,
		ServiceID:        snap.ServiceID,
		BaseFee:          service.BaseFee,
		DistanceKm:       distanceKm,
		VenueType:        details.VenueType,
		GuestCount:       details.GuestCount,
		SoundRequired:    details.SoundRequiredBool(),
		StageRequired:    details.StageRequired,
		LightingRequired: details.LightingRequired,
		RiderUnits:       rider.Units,
		Backline:         rider.Backline,
	}

	// 4. Кэш котировок: явная зависимость с ограниченным скоупом ключа.
	cacheKey := e.quoteCacheKey(req)
	if e.deps.QuoteCache != nil {
		cached, cacheErr := e.deps.QuoteCache.Get(ctx, cacheKey)
		if cacheErr != nil {
			log.Warn("Quote cache lookup failed", zap.Error(cacheErr))
		} else if cached != nil {
			quoteCacheHitsTotal.Inc()
			log.Debug("Quote served from cache", zap.String("cacheKey", cacheKey))
			q := cached.Quote
			q.IsDirty = false
			return &q, cached.Travel, nil
		}
	}

	// 5. Удалённый pricing-сервис.
	resp, err := e.deps.QuoteAPI.EstimateQuote(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("remote quote estimate failed: %w", err)
	}

	soundCost := resp.SoundCost

	// 6. Локальный fallback стоимости звука - строго по предусловию.
	if e.soundFallbackApplies(details, service, soundCost) {
		fallbackCost := e.fallbackSoundCost(ctx, details, rider, distanceKm, log)
		if fallbackCost != nil {
			soundCost = fallbackCost
		}
	}

	// Выбираем вариант проезда из ответа, если провайдер дистанции молчал.
	travelCost := pickTravelCost(resp.TravelEstimates, travel)
	if travel == nil && len(resp.TravelEstimates) > 0 {
		est := resp.TravelEstimates[0]
		travel = &models.TravelResult{DistanceKm: est.DistanceKm, Cost: est.Cost, Mode: est.Mode}
	}

	quote := &models.Quote{
		Items:      resp.Items,
		Total:      resp.Total,
		SoundCost:  soundCost,
		TravelCost: travelCost,
		RiderUnits: rider.Units,
		Backline:   rider.Backline,
		IsDirty:    false,
	}

	if e.deps.QuoteCache != nil {
		if cacheErr := e.deps.QuoteCache.Set(ctx, cacheKey, CachedQuote{Quote: *quote, Travel: travel}); cacheErr != nil {
			log.Warn("Failed to store quote in cache", zap.Error(cacheErr))
		}
	}

	return quote, travel, nil
}

// resolveSupplierTravel резолвит дистанцию туда-обратно до базовой локации
// выбранного поставщика звука. nil от провайдера - это "не смог посчитать",
// не ошибка.
func (e *Engine) resolveSupplierTravel(ctx context.Context, details models.EventDetails, log *zap.Logger) (*models.TravelResult, error) {
	supplier, err := e.deps.Catalog.GetService(ctx, details.SoundSupplierServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sound supplier %d: %w", details.SoundSupplierServiceID, err)
	}
	if supplier == nil || supplier.BaseLocation == "" {
		log.Debug("Sound supplier has no base location, skipping travel resolution",
			zap.Int64("supplierServiceID", details.SoundSupplierServiceID))
		return nil, nil
	}

	oneWay, err := e.deps.Travel.GetDistanceKm(ctx, supplier.BaseLocation, details.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve travel distance: %w", err)
	}
	if oneWay == nil {
		return nil, nil
	}
	return &models.TravelResult{
		DistanceKm: *oneWay * 2, // туда-обратно
		Mode:       "drive",
	}, nil
}

// soundFallbackApplies - точное предусловие fallback-прайсинга звука:
// звук нужен, удалённая стоимость нулевая/отсутствует, поставщик выбран и
// режим обеспечения указывает на внешнего поставщика.
func (e *Engine) soundFallbackApplies(details models.EventDetails, service *ServiceInfo, soundCost *float64) bool {
	if !details.SoundRequiredBool() {
		return false
	}
	if soundCost != nil && *soundCost > 0 {
		return false
	}
	if details.SoundSupplierServiceID == 0 {
		return false
	}
	switch details.SoundModePreference {
	case models.SoundModeSupplier, models.SoundModeExternalProviders:
		return true
	}
	return service.ProvisioningMode == models.SoundModeExternalProviders
}

// fallbackSoundCost считает стоимость звука локально из тех же
// нормализованных входов. Собственные ошибки этого пути проглатываются:
// только лог и метрика, основной результат публикуется в любом случае.
func (e *Engine) fallbackSoundCost(ctx context.Context, details models.EventDetails, rider riderNormalization, distanceKm float64, log *zap.Logger) *float64 {
	payload := SoundEstimatePayload{
		RiderUnits:   rider.Units,
		Backline:     rider.Backline,
		GuestCount:   details.GuestCount,
		VenueType:    details.VenueType,
		DistanceKm:   distanceKm,
		EventDate:    details.EventDate,
		StageNeeded:  details.StageRequired,
		LightsNeeded: details.LightingRequired,
	}

	est, err := e.deps.Sound.PricebookEstimate(ctx, details.SoundSupplierServiceID, payload)
	if err != nil || !usableEstimate(est) {
		if err != nil {
			log.Warn("Pricebook sound estimate failed, trying direct calculation", zap.Error(err))
		}
		est, err = e.deps.Sound.CalculateEstimate(ctx, details.SoundSupplierServiceID, payload)
		if err != nil {
			soundFallbackTotal.WithLabelValues("error").Inc()
			log.Warn("Fallback sound estimate failed, sound cost stays unavailable", zap.Error(err))
			return nil
		}
	}
	if !usableEstimate(est) {
		soundFallbackTotal.WithLabelValues("unusable").Inc()
		log.Warn("Fallback sound estimate produced no usable value")
		return nil
	}

	cost := est.Total
	if cost <= 0 {
		// Нет точного значения - берём середину границ прайсбука.
		cost = (est.Min + est.Max) / 2
	}
	soundFallbackTotal.WithLabelValues("success").Inc()
	log.Info("Sound cost derived via local fallback", zap.Float64("cost", cost))
	return &cost
}

func usableEstimate(est *SoundEstimate) bool {
	if est == nil {
		return false
	}
	return est.Total > 0 || est.Max > 0
}

// pickTravelCost выбирает стоимость проезда: резолвленный travel-результат
// имеет приоритет, иначе первый вариант из ответа pricing-сервиса.
func pickTravelCost(estimates []TravelEstimate, travel *models.TravelResult) *float64 {
	if travel != nil && travel.Cost > 0 {
		v := travel.Cost
		return &v
	}
	if len(estimates) > 0 {
		v := estimates[0].Cost
		return &v
	}
	return nil
}

// quoteCacheKey - скоуп ключа кэша: артист, сервис и fnv-хэш канонического
// запроса. Вытеснение - по TTL на стороне реализации кэша.
func (e *Engine) quoteCacheKey(req QuoteEstimateRequest) string {
	h := fnv.New64a()
	if data, err := json.Marshal(req); err == nil {
		_, _ = h.Write(data)
	}
	return fmt.Sprintf("quote:%d:%d:%x", req.ArtistID, req.ServiceID, h.Sum64())
}
