package mocks

import (
	"context"

	"booking-server/internal/engine"
	"booking-server/internal/models"

	"github.com/stretchr/testify/mock"
)

// Mock AvailabilityClient
type AvailabilityClient struct {
	mock.Mock
}

func (m *AvailabilityClient) GetUnavailableDates(ctx context.Context, artistID int64) ([]string, error) {
	args := m.Called(ctx, artistID)
	dates, _ := args.Get(0).([]string)
	return dates, args.Error(1)
}

// Mock CatalogClient
type CatalogClient struct {
	mock.Mock
}

func (m *CatalogClient) GetService(ctx context.Context, serviceID int64) (*engine.ServiceInfo, error) {
	args := m.Called(ctx, serviceID)
	info, _ := args.Get(0).(*engine.ServiceInfo)
	return info, args.Error(1)
}
func (m *CatalogClient) GetRiderSpec(ctx context.Context, serviceID int64) (*engine.RiderSpec, error) {
	args := m.Called(ctx, serviceID)
	spec, _ := args.Get(0).(*engine.RiderSpec)
	return spec, args.Error(1)
}

// Mock TravelClient
type TravelClient struct {
	mock.Mock
}

func (m *TravelClient) GetDistanceKm(ctx context.Context, origin, destination string) (*float64, error) {
	args := m.Called(ctx, origin, destination)
	km, _ := args.Get(0).(*float64)
	return km, args.Error(1)
}

// Mock SoundPricingClient
type SoundPricingClient struct {
	mock.Mock
}

func (m *SoundPricingClient) PricebookEstimate(ctx context.Context, serviceID int64, payload engine.SoundEstimatePayload) (*engine.SoundEstimate, error) {
	args := m.Called(ctx, serviceID, payload)
	est, _ := args.Get(0).(*engine.SoundEstimate)
	return est, args.Error(1)
}
func (m *SoundPricingClient) CalculateEstimate(ctx context.Context, serviceID int64, payload engine.SoundEstimatePayload) (*engine.SoundEstimate, error) {
	args := m.Called(ctx, serviceID, payload)
	est, _ := args.Get(0).(*engine.SoundEstimate)
	return est, args.Error(1)
}

// Mock QuoteAPIClient
type QuoteAPIClient struct {
	mock.Mock
}

func (m *QuoteAPIClient) EstimateQuote(ctx context.Context, req engine.QuoteEstimateRequest) (*engine.QuoteEstimateResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*engine.QuoteEstimateResponse)
	return resp, args.Error(1)
}

// Mock BookingAPIClient
type BookingAPIClient struct {
	mock.Mock
}

func (m *BookingAPIClient) CreateDraft(ctx context.Context, payload models.BookingPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}
func (m *BookingAPIClient) UpdateDraft(ctx context.Context, requestID string, payload models.BookingPayload) error {
	args := m.Called(ctx, requestID, payload)
	return args.Error(0)
}
func (m *BookingAPIClient) Submit(ctx context.Context, requestID string, payload models.BookingPayload) error {
	args := m.Called(ctx, requestID, payload)
	return args.Error(0)
}
func (m *BookingAPIClient) PostSystemMessage(ctx context.Context, requestID, content string) error {
	args := m.Called(ctx, requestID, content)
	return args.Error(0)
}

// Mock DraftStore
type DraftStore struct {
	mock.Mock
}

func (m *DraftStore) LoadDraft(ctx context.Context, key string) (*models.DraftSnapshot, error) {
	args := m.Called(ctx, key)
	snapshot, _ := args.Get(0).(*models.DraftSnapshot)
	return snapshot, args.Error(1)
}
func (m *DraftStore) SaveDraft(ctx context.Context, key string, snapshot models.DraftSnapshot) error {
	args := m.Called(ctx, key, snapshot)
	return args.Error(0)
}
func (m *DraftStore) ClearDraft(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Mock QuoteCache
type QuoteCache struct {
	mock.Mock
}

func (m *QuoteCache) Get(ctx context.Context, key string) (*engine.CachedQuote, error) {
	args := m.Called(ctx, key)
	cached, _ := args.Get(0).(*engine.CachedQuote)
	return cached, args.Error(1)
}
func (m *QuoteCache) Set(ctx context.Context, key string, value engine.CachedQuote) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// Mock OfflineDispatcher
type OfflineDispatcher struct {
	mock.Mock
}

func (m *OfflineDispatcher) IsOffline() bool {
	args := m.Called()
	return args.Bool(0)
}
func (m *OfflineDispatcher) Enqueue(task engine.ReplayTask) error {
	args := m.Called(task)
	return args.Error(0)
}
