package engine

import (
	"context"

	"booking-server/internal/models"
)

// Движок зависит только от интерфейсов внешних коллабораторов.
// Все вызовы асинхронны (с точки зрения движка) и могут завершаться ошибкой;
// собственные переходы состояния движка синхронны.

// AvailabilityClient отдаёт недоступные даты исполнителя (ISO строки).
type AvailabilityClient interface {
	GetUnavailableDates(ctx context.Context, artistID int64) ([]string, error)
}

// ServiceInfo - метаданные бронируемого сервиса исполнителя/поставщика.
type ServiceInfo struct {
	ID               int64   `json:"id"`
	ArtistID         int64   `json:"artist_id"`
	Title            string  `json:"title"`
	BaseFee          float64 `json:"base_fee"`
	BaseLocation     string  `json:"base_location"`
	ProvisioningMode string  `json:"provisioning_mode"` // глобальный режим обеспечения звука
}

// RiderSpec - технический райдер сервиса: свободный текст названий позиций.
// Нормализация в ценовые единицы - забота движка, не каталога.
type RiderSpec struct {
	ServiceID int64    `json:"service_id"`
	Items     []string `json:"items"`
}

// CatalogClient отдаёт метаданные сервисов и райдеры.
// Отсутствующий райдер - это (nil, nil), а не ошибка.
type CatalogClient interface {
	GetService(ctx context.Context, serviceID int64) (*ServiceInfo, error)
	GetRiderSpec(ctx context.Context, serviceID int64) (*RiderSpec, error)
}

// TravelClient резолвит дистанцию в километрах между двумя локациями.
// nil означает "провайдер не смог посчитать" и не является ошибкой.
type TravelClient interface {
	GetDistanceKm(ctx context.Context, origin, destination string) (*float64, error)
}

// SoundEstimatePayload - нормализованные входы локального/удалённого
// расчёта стоимости звука.
type SoundEstimatePayload struct {
	RiderUnits   models.RiderUnits `json:"rider_units"`
	Backline     map[string]int    `json:"backline"`
	GuestCount   int               `json:"guest_count"`
	VenueType    string            `json:"venue_type"`
	DistanceKm   float64           `json:"distance_km"`
	EventDate    string            `json:"event_date,omitempty"`
	StageNeeded  bool              `json:"stage_needed"`
	LightsNeeded bool              `json:"lights_needed"`
}

// SoundEstimate - границы оценки и/или итоговая стоимость звука.
type SoundEstimate struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Total float64 `json:"total"`
}

// SoundPricingClient - прайсбук поставщика звука плюс прямой расчёт.
type SoundPricingClient interface {
	PricebookEstimate(ctx context.Context, serviceID int64, payload SoundEstimatePayload) (*SoundEstimate, error)
	CalculateEstimate(ctx context.Context, serviceID int64, payload SoundEstimatePayload) (*SoundEstimate, error)
}

// QuoteEstimateRequest - запрос к удалённому pricing-сервису.
type QuoteEstimateRequest struct {
	ArtistID         int64             `json:"artist_id"`
	ServiceID        int64             `json:"service_id"`
	BaseFee          float64           `json:"base_fee"`
	DistanceKm       float64           `json:"distance_km"`
	VenueType        string            `json:"venue_type"`
	GuestCount       int               `json:"guest_count"`
	SoundRequired    bool              `json:"sound_required"`
	StageRequired    bool              `json:"stage_required"`
	LightingRequired bool              `json:"lighting_required"`
	RiderUnits       models.RiderUnits `json:"rider_units"`
	Backline         map[string]int    `json:"backline"`
}

// TravelEstimate - один вариант проезда в ответе pricing-сервиса.
type TravelEstimate struct {
	Mode       string  `json:"mode"`
	Cost       float64 `json:"cost"`
	DistanceKm float64 `json:"distance_km"`
}

// QuoteEstimateResponse - ответ удалённого pricing-сервиса.
// SoundCost может отсутствовать или быть нулевым - тогда движок решает,
// применять ли локальный fallback.
type QuoteEstimateResponse struct {
	Items           []models.QuoteItem `json:"items"`
	Total           float64            `json:"total"`
	TravelEstimates []TravelEstimate   `json:"travel_estimates"`
	SoundCost       *float64           `json:"sound_cost,omitempty"`
}

// QuoteAPIClient - удалённый pricing-сервис.
type QuoteAPIClient interface {
	EstimateQuote(ctx context.Context, req QuoteEstimateRequest) (*QuoteEstimateResponse, error)
}

// BookingAPIClient - удалённый сервис заявок (черновики и сабмит).
type BookingAPIClient interface {
	CreateDraft(ctx context.Context, payload models.BookingPayload) (string, error)
	UpdateDraft(ctx context.Context, requestID string, payload models.BookingPayload) error
	Submit(ctx context.Context, requestID string, payload models.BookingPayload) error
	PostSystemMessage(ctx context.Context, requestID, content string) error
}

// DraftStore - локальное зеркало черновика под ключом live:{artist}:{service}.
// LoadDraft возвращает (nil, nil), когда снапшота нет.
type DraftStore interface {
	LoadDraft(ctx context.Context, key string) (*models.DraftSnapshot, error)
	SaveDraft(ctx context.Context, key string, snapshot models.DraftSnapshot) error
	ClearDraft(ctx context.Context, key string) error
}

// CachedQuote - значение в кэше котировок.
type CachedQuote struct {
	Quote  models.Quote         `json:"quote"`
	Travel *models.TravelResult `json:"travel,omitempty"`
}

// QuoteCache - явно инжектируемый кэш котировок с ограниченной областью
// ключей и TTL-вытеснением (вместо амбиентного глобального кэша).
// Get возвращает (nil, nil) при промахе.
type QuoteCache interface {
	Get(ctx context.Context, key string) (*CachedQuote, error)
	Set(ctx context.Context, key string, value CachedQuote) error
}

// ReplayTask - отложенная отправка заявки. Run перечитывает состояние
// движка в момент выполнения, а не замыкается на копию: реплей после
// восстановления связи отправит актуальные details.
type ReplayTask struct {
	TaskID     string
	SessionKey string
	Message    string
	Run        func(ctx context.Context) error
}

// OfflineDispatcher - очередь отложенных отправок.
type OfflineDispatcher interface {
	IsOffline() bool
	Enqueue(task ReplayTask) error
}
