package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-server/internal/engine"
	"booking-server/internal/engine/mocks"
	"booking-server/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// newTestEngine собирает движок на моках. Возвращает и сами моки, чтобы
// тест мог навесить ожидания до вызова операций.
func newTestEngine(t *testing.T) (*engine.Engine, *testCollaborators) {
	t.Helper()
	c := &testCollaborators{
		Availability: new(mocks.AvailabilityClient),
		Catalog:      new(mocks.CatalogClient),
		Travel:       new(mocks.TravelClient),
		Sound:        new(mocks.SoundPricingClient),
		QuoteAPI:     new(mocks.QuoteAPIClient),
		BookingAPI:   new(mocks.BookingAPIClient),
		Drafts:       new(mocks.DraftStore),
		QuoteCache:   new(mocks.QuoteCache),
		Offline:      new(mocks.OfflineDispatcher),
	}
	eng := engine.New(42, 7, engine.Collaborators{
		Availability: c.Availability,
		Catalog:      c.Catalog,
		Travel:       c.Travel,
		Sound:        c.Sound,
		QuoteAPI:     c.QuoteAPI,
		BookingAPI:   c.BookingAPI,
		Drafts:       c.Drafts,
		QuoteCache:   c.QuoteCache,
		Offline:      c.Offline,
	}, zap.NewNop())
	return eng, c
}

type testCollaborators struct {
	Availability *mocks.AvailabilityClient
	Catalog      *mocks.CatalogClient
	Travel       *mocks.TravelClient
	Sound        *mocks.SoundPricingClient
	QuoteAPI     *mocks.QuoteAPIClient
	BookingAPI   *mocks.BookingAPIClient
	Drafts       *mocks.DraftStore
	QuoteCache   *mocks.QuoteCache
	Offline      *mocks.OfflineDispatcher
}

func TestNewEngineDefaults(t *testing.T) {
	eng, _ := newTestEngine(t)
	state := eng.State()

	assert.Equal(t, int64(42), state.ArtistID)
	assert.Equal(t, int64(7), state.ServiceID)
	assert.Equal(t, models.StepDescription, state.StepID)
	assert.Equal(t, 0, state.StepIndex)
	assert.True(t, state.Quote.IsDirty, "свежий движок обязан считать котировку грязной")
	assert.Equal(t, models.AvailabilityIdle, state.Availability.Status)
	assert.Equal(t, models.BookingIdle, state.Booking.Status)
	assert.Equal(t, "live:42:7", eng.Key())
}

func TestSubscribe(t *testing.T) {
	t.Run("Immediate snapshot on subscribe", func(t *testing.T) {
		eng, _ := newTestEngine(t)

		var got []models.EngineState
		unsubscribe := eng.Subscribe(func(s models.EngineState) {
			got = append(got, s)
		})
		defer unsubscribe()

		assert.Len(t, got, 1, "подписчик получает текущий снапшот сразу")
		assert.Equal(t, models.StepDescription, got[0].StepID)
	})

	t.Run("Notifications follow mutation order", func(t *testing.T) {
		eng, _ := newTestEngine(t)

		var steps []models.StepID
		unsubscribe := eng.Subscribe(func(s models.EngineState) {
			steps = append(steps, s.StepID)
		})
		defer unsubscribe()

		_, err := eng.UpdateField(models.FieldDescription, "Свадьба на 100 гостей")
		assert.NoError(t, err)
		eng.NextStep()

		assert.Equal(t, []models.StepID{
			models.StepDescription, // initial snapshot
			models.StepDescription, // after UpdateField
			models.StepLocation,    // after NextStep
		}, steps)
	})

	t.Run("Unsubscribed listener stops receiving", func(t *testing.T) {
		eng, _ := newTestEngine(t)

		calls := 0
		unsubscribe := eng.Subscribe(func(models.EngineState) { calls++ })
		unsubscribe()

		_, err := eng.UpdateField(models.FieldDescription, "x")
		assert.NoError(t, err)
		assert.Equal(t, 1, calls, "после отписки приходит только начальный снапшот")
	})

	t.Run("Subscriber may mutate the engine from a notification", func(t *testing.T) {
		eng, _ := newTestEngine(t)

		reentered := false
		offlineSeen := false
		unsubscribe := eng.Subscribe(func(s models.EngineState) {
			if s.Details.Description != "" && !reentered {
				reentered = true
				eng.SetOffline(true)
			}
			if s.Flags.Offline {
				offlineSeen = true
			}
		})
		defer unsubscribe()

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := eng.UpdateField(models.FieldDescription, "Концерт")
			assert.NoError(t, err)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("UpdateField заблокировался на реентерабельном подписчике")
		}

		assert.True(t, eng.State().Flags.Offline)
		assert.True(t, offlineSeen, "снапшот вложенной мутации доставлен тем же циклом")
	})

	t.Run("Failed mutation does not notify", func(t *testing.T) {
		eng, _ := newTestEngine(t)

		calls := 0
		unsubscribe := eng.Subscribe(func(models.EngineState) { calls++ })
		defer unsubscribe()

		_, err := eng.GoToStep(models.StepID("no_such_step"))
		assert.ErrorIs(t, err, models.ErrNoSuchStep)
		assert.Equal(t, 1, calls)
	})
}

func TestRefreshAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		eng, c := newTestEngine(t)
		c.Availability.On("GetUnavailableDates", ctx, int64(42)).
			Return([]string{"2026-09-01", "2026-09-02"}, nil).Once()

		err := eng.RefreshAvailability(ctx)
		assert.NoError(t, err)

		state := eng.State()
		assert.Equal(t, models.AvailabilityReady, state.Availability.Status)
		assert.Equal(t, []string{"2026-09-01", "2026-09-02"}, state.Availability.UnavailableDates)
		assert.False(t, state.Flags.Loading)
		c.Availability.AssertExpectations(t)
	})

	t.Run("Provider error", func(t *testing.T) {
		eng, c := newTestEngine(t)
		c.Availability.On("GetUnavailableDates", ctx, int64(42)).
			Return(nil, errors.New("calendar unreachable")).Once()

		err := eng.RefreshAvailability(ctx)
		assert.Error(t, err)

		state := eng.State()
		assert.Equal(t, models.AvailabilityError, state.Availability.Status)
		assert.False(t, state.Flags.Loading)
	})
}

func TestSetOffline(t *testing.T) {
	eng, _ := newTestEngine(t)

	eng.SetOffline(true)
	assert.True(t, eng.State().Flags.Offline)

	eng.SetOffline(false)
	assert.False(t, eng.State().Flags.Offline)
}

// Снапшоты должны быть глубокими копиями: мутация полученного снапшота не
// должна протекать в состояние движка.
func TestStateIsDeepCopy(t *testing.T) {
	eng, _ := newTestEngine(t)

	snap := eng.State()
	snap.Details.Description = "mutated"
	snap.Steps[0].Required[0] = models.FieldNotes

	fresh := eng.State()
	assert.Empty(t, fresh.Details.Description)
	assert.Equal(t, models.FieldDescription, fresh.Steps[0].Required[0])
}
