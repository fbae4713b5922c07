package engine_test

import (
	"context"
	"errors"
	"testing"

	"booking-server/internal/engine"
	"booking-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func floatPtr(v float64) *float64 { return &v }

// baseService - бронируемый сервис по умолчанию в тестах прайсинга.
func baseService() *engine.ServiceInfo {
	return &engine.ServiceInfo{
		ID:               7,
		ArtistID:         42,
		Title:            "Live set",
		BaseFee:          5000,
		ProvisioningMode: models.SoundModeArtistProvides,
	}
}

func TestRecalculateQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("Clean quote is a no-op", func(t *testing.T) {
		eng, c := newTestEngine(t)
		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil).Once()
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil).Once()
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil).Once()
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil).Once()
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		assert.False(t, eng.State().Quote.IsDirty)

		// Повторный вызов без изменений details отбрасывается.
		err := eng.RecalculateQuote(ctx)
		assert.ErrorIs(t, err, models.ErrQuoteClean)
		c.QuoteAPI.AssertNumberOfCalls(t, "EstimateQuote", 1)
	})

	t.Run("Single flight", func(t *testing.T) {
		eng, c := newTestEngine(t)
		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)

		// Пока первый расчёт висит в EstimateQuote, второй вызов обязан
		// отскочить от гварда, а не начать параллельный расчёт.
		var inFlightErr error
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Run(func(mock.Arguments) {
				inFlightErr = eng.RecalculateQuote(ctx)
			}).
			Return(&engine.QuoteEstimateResponse{Total: 5000}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		assert.ErrorIs(t, inFlightErr, models.ErrRecalcInFlight)
		c.QuoteAPI.AssertNumberOfCalls(t, "EstimateQuote", 1)
	})

	t.Run("Remote failure preserves previous quote", func(t *testing.T) {
		eng, c := newTestEngine(t)
		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)

		// Первый расчёт успешен.
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{
				Items: []models.QuoteItem{{Label: "Base fee", Amount: 5000}},
				Total: 5000,
			}, nil).Once()
		assert.NoError(t, eng.RecalculateQuote(ctx))

		// Меняем details и падаем на удалённом расчёте.
		_, err := eng.UpdateField(models.FieldGuestCount, 200)
		assert.NoError(t, err)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(nil, errors.New("pricing unavailable")).Once()

		err = eng.RecalculateQuote(ctx)
		assert.Error(t, err)

		state := eng.State()
		assert.Equal(t, 5000.0, state.Quote.Total, "предыдущая котировка не перетёрта")
		assert.Len(t, state.Quote.Items, 1)
		assert.True(t, state.Quote.IsDirty, "котировка остаётся грязной после провала")
		assert.False(t, state.Flags.QuoteLoading)
		assert.NotEmpty(t, state.Validation.GlobalError)

		// После починки ретрай проходит и снимает глобальную ошибку.
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 7000}, nil).Once()
		assert.NoError(t, eng.RecalculateQuote(ctx))
		state = eng.State()
		assert.Equal(t, 7000.0, state.Quote.Total)
		assert.Empty(t, state.Validation.GlobalError)
	})

	t.Run("Cache hit skips remote estimate", func(t *testing.T) {
		eng, c := newTestEngine(t)
		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)

		cached := &engine.CachedQuote{
			Quote: models.Quote{
				Items: []models.QuoteItem{{Label: "Base fee", Amount: 5000}},
				Total: 5000,
			},
		}
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(cached, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		state := eng.State()
		assert.Equal(t, 5000.0, state.Quote.Total)
		assert.False(t, state.Quote.IsDirty)
		c.QuoteAPI.AssertNotCalled(t, "EstimateQuote", ctx, mock.Anything)
	})

	t.Run("Cache lookup error falls through to remote", func(t *testing.T) {
		eng, c := newTestEngine(t)
		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, errors.New("redis down")).Once()
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil).Once()
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		assert.Equal(t, 5000.0, eng.State().Quote.Total)
	})

	t.Run("Rider normalization feeds the request", func(t *testing.T) {
		eng, c := newTestEngine(t)
		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(&engine.RiderSpec{
			ServiceID: 7,
			Items:     []string{"2x vocal mic", "IEM pack", "bass amp", "хрустальная люстра"},
		}, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.MatchedBy(func(req engine.QuoteEstimateRequest) bool {
			return req.RiderUnits.VocalMics == 1 &&
				req.RiderUnits.IEMPacks == 1 &&
				req.Backline["amp"] == 1
		})).Return(&engine.QuoteEstimateResponse{Total: 6000}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		state := eng.State()
		assert.Equal(t, 1, state.Quote.RiderUnits.VocalMics)
		assert.Equal(t, map[string]int{"amp": 1}, state.Quote.Backline)
		c.QuoteAPI.AssertExpectations(t)
	})
}

func TestSoundCostFallback(t *testing.T) {
	ctx := context.Background()

	// setupSoundDetails подготавливает details, при которых предусловие
	// fallback выполняется: звук нужен, поставщик выбран, режим supplier.
	setupSoundDetails := func(t *testing.T, eng *engine.Engine) {
		t.Helper()
		soundRequired := "yes"
		soundMode := models.SoundModeSupplier
		supplierID := int64(99)
		_, err := eng.UpdateMany(models.DetailsPatch{
			SoundRequired:          &soundRequired,
			SoundModePreference:    &soundMode,
			SoundSupplierServiceID: &supplierID,
		})
		assert.NoError(t, err)
	}

	t.Run("Zero remote sound cost triggers pricebook fallback", func(t *testing.T) {
		eng, c := newTestEngine(t)
		setupSoundDetails(t, eng)

		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		// У поставщика нет базовой локации - travel пропускается.
		c.Catalog.On("GetService", ctx, int64(99)).Return(&engine.ServiceInfo{ID: 99}, nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000, SoundCost: floatPtr(0)}, nil).Once()
		c.Sound.On("PricebookEstimate", ctx, int64(99), mock.Anything).
			Return(&engine.SoundEstimate{Total: 1200}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		state := eng.State()
		if assert.NotNil(t, state.Quote.SoundCost) {
			assert.Equal(t, 1200.0, *state.Quote.SoundCost)
		}
		c.Sound.AssertExpectations(t)
	})

	t.Run("Pricebook miss falls back to direct calculation", func(t *testing.T) {
		eng, c := newTestEngine(t)
		setupSoundDetails(t, eng)

		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetService", ctx, int64(99)).Return(&engine.ServiceInfo{ID: 99}, nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000}, nil).Once()
		c.Sound.On("PricebookEstimate", ctx, int64(99), mock.Anything).
			Return(nil, errors.New("no pricebook")).Once()
		// Прямой расчёт отдаёт только границы - берём середину.
		c.Sound.On("CalculateEstimate", ctx, int64(99), mock.Anything).
			Return(&engine.SoundEstimate{Min: 800, Max: 1600}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		state := eng.State()
		if assert.NotNil(t, state.Quote.SoundCost) {
			assert.Equal(t, 1200.0, *state.Quote.SoundCost)
		}
	})

	t.Run("Fallback failure never nulls out a valid quote", func(t *testing.T) {
		eng, c := newTestEngine(t)
		setupSoundDetails(t, eng)

		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetService", ctx, int64(99)).Return(&engine.ServiceInfo{ID: 99}, nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000}, nil).Once()
		c.Sound.On("PricebookEstimate", ctx, int64(99), mock.Anything).
			Return(nil, errors.New("down")).Once()
		c.Sound.On("CalculateEstimate", ctx, int64(99), mock.Anything).
			Return(nil, errors.New("down")).Once()

		// Основной ответ публикуется, sound cost остаётся отсутствующим -
		// НЕ нулём.
		assert.NoError(t, eng.RecalculateQuote(ctx))
		state := eng.State()
		assert.Equal(t, 5000.0, state.Quote.Total)
		assert.Nil(t, state.Quote.SoundCost)
		assert.False(t, state.Quote.IsDirty)
	})

	t.Run("No fallback when sound not required", func(t *testing.T) {
		eng, c := newTestEngine(t)
		supplierID := int64(99)
		soundMode := models.SoundModeSupplier
		_, err := eng.UpdateMany(models.DetailsPatch{
			SoundModePreference:    &soundMode,
			SoundSupplierServiceID: &supplierID,
		})
		assert.NoError(t, err)

		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetService", ctx, int64(99)).Return(&engine.ServiceInfo{ID: 99}, nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000, SoundCost: floatPtr(0)}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		c.Sound.AssertNotCalled(t, "PricebookEstimate", ctx, mock.Anything, mock.Anything)
	})

	t.Run("No fallback without supplier selection", func(t *testing.T) {
		eng, c := newTestEngine(t)
		soundRequired := "yes"
		soundMode := models.SoundModeSupplier
		_, err := eng.UpdateMany(models.DetailsPatch{
			SoundRequired:       &soundRequired,
			SoundModePreference: &soundMode,
		})
		assert.NoError(t, err)

		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		c.Sound.AssertNotCalled(t, "PricebookEstimate", ctx, mock.Anything, mock.Anything)
	})

	t.Run("Positive remote sound cost wins over fallback", func(t *testing.T) {
		eng, c := newTestEngine(t)
		setupSoundDetails(t, eng)

		c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
		c.Catalog.On("GetService", ctx, int64(99)).Return(&engine.ServiceInfo{ID: 99}, nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000, SoundCost: floatPtr(900)}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		state := eng.State()
		if assert.NotNil(t, state.Quote.SoundCost) {
			assert.Equal(t, 900.0, *state.Quote.SoundCost)
		}
		c.Sound.AssertNotCalled(t, "PricebookEstimate", ctx, mock.Anything, mock.Anything)
	})

	t.Run("Global provisioning mode enables fallback", func(t *testing.T) {
		eng, c := newTestEngine(t)
		// Пользователь не выбрал режим, но сервис глобально работает через
		// внешних поставщиков.
		soundRequired := "yes"
		supplierID := int64(99)
		_, err := eng.UpdateMany(models.DetailsPatch{
			SoundRequired:          &soundRequired,
			SoundSupplierServiceID: &supplierID,
		})
		assert.NoError(t, err)

		service := baseService()
		service.ProvisioningMode = models.SoundModeExternalProviders
		c.Catalog.On("GetService", ctx, int64(7)).Return(service, nil)
		c.Catalog.On("GetService", ctx, int64(99)).Return(&engine.ServiceInfo{ID: 99}, nil)
		c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
		c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
		c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
		c.QuoteAPI.On("EstimateQuote", ctx, mock.Anything).
			Return(&engine.QuoteEstimateResponse{Total: 5000}, nil).Once()
		c.Sound.On("PricebookEstimate", ctx, int64(99), mock.Anything).
			Return(&engine.SoundEstimate{Total: 1500}, nil).Once()

		assert.NoError(t, eng.RecalculateQuote(ctx))
		if assert.NotNil(t, eng.State().Quote.SoundCost) {
			assert.Equal(t, 1500.0, *eng.State().Quote.SoundCost)
		}
	})
}

func TestSupplierTravelResolution(t *testing.T) {
	ctx := context.Background()

	eng, c := newTestEngine(t)
	location := "Берлин, Кройцберг"
	soundRequired := "yes"
	soundMode := models.SoundModeSupplier
	supplierID := int64(99)
	_, err := eng.UpdateMany(models.DetailsPatch{
		Location:               &location,
		SoundRequired:          &soundRequired,
		SoundModePreference:    &soundMode,
		SoundSupplierServiceID: &supplierID,
	})
	assert.NoError(t, err)

	c.Catalog.On("GetService", ctx, int64(7)).Return(baseService(), nil)
	c.Catalog.On("GetService", ctx, int64(99)).
		Return(&engine.ServiceInfo{ID: 99, BaseLocation: "Потсдам"}, nil)
	c.Catalog.On("GetRiderSpec", ctx, int64(7)).Return(nil, nil)
	c.Travel.On("GetDistanceKm", ctx, "Потсдам", "Берлин, Кройцберг").
		Return(floatPtr(35), nil).Once()
	c.QuoteCache.On("Get", ctx, mock.Anything).Return(nil, nil)
	c.QuoteCache.On("Set", ctx, mock.Anything, mock.Anything).Return(nil)
	c.QuoteAPI.On("EstimateQuote", ctx, mock.MatchedBy(func(req engine.QuoteEstimateRequest) bool {
		// Дистанция в запросе - туда-обратно.
		return req.DistanceKm == 70
	})).Return(&engine.QuoteEstimateResponse{Total: 5000, SoundCost: floatPtr(900)}, nil).Once()

	assert.NoError(t, eng.RecalculateQuote(ctx))
	state := eng.State()
	if assert.NotNil(t, state.Travel) {
		assert.Equal(t, 70.0, state.Travel.DistanceKm)
	}
	c.Travel.AssertExpectations(t)
	c.QuoteAPI.AssertExpectations(t)
}
