package models

import (
	"fmt"
	"time"
)

// Статусы исходящих payload'ов заявки.
const (
	PayloadStatusDraft        = "draft"
	PayloadStatusPendingQuote = "pending_quote"
)

// TravelBreakdown - проекция атрибутов события, влияющих на проезд и
// логистику, в исходящем payload'е.
type TravelBreakdown struct {
	DistanceKm       float64 `json:"distance_km"`
	Mode             string  `json:"mode"`
	VenueName        string  `json:"venue_name"`
	VenueType        string  `json:"venue_type"`
	EventType        string  `json:"event_type"`
	GuestCount       int     `json:"guest_count"`
	SoundRequired    bool    `json:"sound_required"`
	StageRequired    bool    `json:"stage_required"`
	LightingRequired bool    `json:"lighting_required"`
}

// SoundContext - звуковой контекст заявки для удалённого сервиса.
type SoundContext struct {
	SoundRequired     bool   `json:"sound_required"`
	Mode              string `json:"mode"`
	GuestCount        int    `json:"guest_count"`
	VenueType         string `json:"venue_type"`
	StageRequired     bool   `json:"stage_required"`
	LightingRequired  bool   `json:"lighting_required"`
	SupplierServiceID int64  `json:"supplier_service_id,omitempty"`
}

// BookingPayload - исходящий payload черновика/сабмита заявки.
// Набор полей зафиксирован контрактом booking API.
type BookingPayload struct {
	ArtistID          int64           `json:"artist_id"`
	ServiceID         int64           `json:"service_id"`
	Status            string          `json:"status"`
	ProposedDatetime1 string          `json:"proposed_datetime_1,omitempty"` // ISO-8601
	Message           string          `json:"message,omitempty"`
	Details           EventDetails    `json:"details"`
	TravelBreakdown   TravelBreakdown `json:"travel_breakdown"`
	SoundContext      SoundContext    `json:"sound_context"`
	RiderUnits        RiderUnits      `json:"rider_units"`
	BacklineRequested map[string]int  `json:"backline_requested"`
	TravelMode        string          `json:"travel_mode,omitempty"`
	TravelCost        float64         `json:"travel_cost,omitempty"`
}

// DraftSnapshot - локальное зеркало черновика, хранится под ключом
// live:{artistId}:{serviceId} и переживает перезагрузку страницы/процесса.
type DraftSnapshot struct {
	Details   EventDetails  `json:"details"`
	RequestID string        `json:"request_id,omitempty"`
	Travel    *TravelResult `json:"travel,omitempty"`
	SavedAt   time.Time     `json:"saved_at"`
}

// SnapshotKey возвращает ключ локального зеркала для пары (artist, service).
func SnapshotKey(artistID, serviceID int64) string {
	return fmt.Sprintf("live:%d:%d", artistID, serviceID)
}
