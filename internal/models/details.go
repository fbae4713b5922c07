package models

import (
	"fmt"
	"strings"
)

// FieldKey идентифицирует одно поле EventDetails для операций обновления
// и для пошаговой валидации визарда.
type FieldKey string

const (
	FieldDescription       FieldKey = "description"
	FieldLocation          FieldKey = "location"
	FieldEventDate         FieldKey = "event_date"
	FieldEventTime         FieldKey = "event_time"
	FieldEventType         FieldKey = "event_type"
	FieldGuestCount        FieldKey = "guest_count"
	FieldVenueName         FieldKey = "venue_name"
	FieldVenueType         FieldKey = "venue_type"
	FieldSoundRequired     FieldKey = "sound_required"
	FieldSoundMode         FieldKey = "sound_mode"
	FieldSoundSupplier     FieldKey = "sound_supplier_service_id"
	FieldStageRequired     FieldKey = "stage_required"
	FieldLightingRequired  FieldKey = "lighting_required"
	FieldNotes             FieldKey = "notes"
	FieldAttachmentURL     FieldKey = "attachment_url"
)

// Трёхзначный выбор "нужен ли звук": пустая строка означает,
// что пользователь ещё не сделал выбор на шаге sound.
const (
	SoundChoiceUnset = ""
	SoundChoiceYes   = "yes"
	SoundChoiceNo    = "no"
)

// Режимы обеспечения звука (provisioning mode).
const (
	SoundModeSupplier          = "supplier"
	SoundModeExternalProviders = "external_providers"
	SoundModeArtistProvides    = "artist_provides"
)

// EventDetails - полностью типизированная запись фактов о событии,
// введённых пользователем. Мутируется ТОЛЬКО через операции контроллера
// (ApplyField / DetailsPatch), где и происходит валидация.
type EventDetails struct {
	Description            string `json:"description"`
	Location               string `json:"location"`
	EventDate              string `json:"event_date"` // ISO дата (YYYY-MM-DD)
	EventTime              string `json:"event_time"` // HH:MM
	EventType              string `json:"event_type"`
	GuestCount             int    `json:"guest_count"`
	VenueName              string `json:"venue_name"`
	VenueType              string `json:"venue_type"`
	SoundRequired          string `json:"sound_required"` // "", "yes", "no"
	SoundModePreference    string `json:"sound_mode"`
	SoundSupplierServiceID int64  `json:"sound_supplier_service_id"` // 0 = не выбран
	StageRequired          bool   `json:"stage_required"`
	LightingRequired       bool   `json:"lighting_required"`
	Notes                  string `json:"notes"`
	AttachmentURL          string `json:"attachment_url"`
}

// ApplyField применяет одно обновление поля по его ключу.
// Валидация происходит на границе мутации: неизвестный ключ или
// неподходящий тип значения отклоняются с ErrInvalidInput.
func (d *EventDetails) ApplyField(key FieldKey, value interface{}) error {
	switch key {
	case FieldDescription:
		return assignString(&d.Description, key, value)
	case FieldLocation:
		return assignString(&d.Location, key, value)
	case FieldEventDate:
		return assignString(&d.EventDate, key, value)
	case FieldEventTime:
		return assignString(&d.EventTime, key, value)
	case FieldEventType:
		return assignString(&d.EventType, key, value)
	case FieldGuestCount:
		return assignInt(&d.GuestCount, key, value)
	case FieldVenueName:
		return assignString(&d.VenueName, key, value)
	case FieldVenueType:
		return assignString(&d.VenueType, key, value)
	case FieldSoundRequired:
		s, err := coerceString(key, value)
		if err != nil {
			return err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s != SoundChoiceUnset && s != SoundChoiceYes && s != SoundChoiceNo {
			return fmt.Errorf("%w: sound_required must be 'yes', 'no' or empty, got %q", ErrInvalidInput, s)
		}
		d.SoundRequired = s
		return nil
	case FieldSoundMode:
		s, err := coerceString(key, value)
		if err != nil {
			return err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		switch s {
		case "", SoundModeSupplier, SoundModeExternalProviders, SoundModeArtistProvides:
			d.SoundModePreference = s
			return nil
		}
		return fmt.Errorf("%w: unknown sound mode %q", ErrInvalidInput, s)
	case FieldSoundSupplier:
		return assignInt64(&d.SoundSupplierServiceID, key, value)
	case FieldStageRequired:
		return assignBool(&d.StageRequired, key, value)
	case FieldLightingRequired:
		return assignBool(&d.LightingRequired, key, value)
	case FieldNotes:
		return assignString(&d.Notes, key, value)
	case FieldAttachmentURL:
		return assignString(&d.AttachmentURL, key, value)
	}
	return fmt.Errorf("%w: unknown detail field %q", ErrInvalidInput, key)
}

// SoundRequiredBool возвращает true только при явном выборе "yes".
func (d EventDetails) SoundRequiredBool() bool {
	return d.SoundRequired == SoundChoiceYes
}

// FieldEmpty сообщает, является ли поле пустым/незаполненным с точки зрения
// пошаговой валидации (nextStep).
func (d EventDetails) FieldEmpty(key FieldKey) bool {
	switch key {
	case FieldDescription:
		return strings.TrimSpace(d.Description) == ""
	case FieldLocation:
		return strings.TrimSpace(d.Location) == ""
	case FieldEventDate:
		return strings.TrimSpace(d.EventDate) == ""
	case FieldEventTime:
		return strings.TrimSpace(d.EventTime) == ""
	case FieldEventType:
		return strings.TrimSpace(d.EventType) == ""
	case FieldGuestCount:
		return d.GuestCount <= 0
	case FieldVenueName:
		return strings.TrimSpace(d.VenueName) == ""
	case FieldVenueType:
		return strings.TrimSpace(d.VenueType) == ""
	case FieldSoundRequired:
		return d.SoundRequired == SoundChoiceUnset
	case FieldSoundMode:
		return d.SoundModePreference == ""
	case FieldSoundSupplier:
		return d.SoundSupplierServiceID == 0
	case FieldNotes:
		return strings.TrimSpace(d.Notes) == ""
	case FieldAttachmentURL:
		return strings.TrimSpace(d.AttachmentURL) == ""
	}
	// Булевые флаги (stage/lighting) всегда считаются заполненными.
	return false
}

// DetailsPatch - типизированный частичный апдейт EventDetails.
// nil-поля не трогают текущее значение.
type DetailsPatch struct {
	Description            *string `json:"description,omitempty"`
	Location               *string `json:"location,omitempty"`
	EventDate              *string `json:"event_date,omitempty"`
	EventTime              *string `json:"event_time,omitempty"`
	EventType              *string `json:"event_type,omitempty"`
	GuestCount             *int    `json:"guest_count,omitempty"`
	VenueName              *string `json:"venue_name,omitempty"`
	VenueType              *string `json:"venue_type,omitempty"`
	SoundRequired          *string `json:"sound_required,omitempty"`
	SoundModePreference    *string `json:"sound_mode,omitempty"`
	SoundSupplierServiceID *int64  `json:"sound_supplier_service_id,omitempty"`
	StageRequired          *bool   `json:"stage_required,omitempty"`
	LightingRequired       *bool   `json:"lighting_required,omitempty"`
	Notes                  *string `json:"notes,omitempty"`
	AttachmentURL          *string `json:"attachment_url,omitempty"`
}

// Apply накатывает патч на details через ту же границу валидации,
// что и одиночные обновления.
func (p DetailsPatch) Apply(d *EventDetails) error {
	set := func(key FieldKey, v interface{}) error {
		return d.ApplyField(key, v)
	}
	if p.Description != nil {
		if err := set(FieldDescription, *p.Description); err != nil {
			return err
		}
	}
	if p.Location != nil {
		if err := set(FieldLocation, *p.Location); err != nil {
			return err
		}
	}
	if p.EventDate != nil {
		if err := set(FieldEventDate, *p.EventDate); err != nil {
			return err
		}
	}
	if p.EventTime != nil {
		if err := set(FieldEventTime, *p.EventTime); err != nil {
			return err
		}
	}
	if p.EventType != nil {
		if err := set(FieldEventType, *p.EventType); err != nil {
			return err
		}
	}
	if p.GuestCount != nil {
		if err := set(FieldGuestCount, *p.GuestCount); err != nil {
			return err
		}
	}
	if p.VenueName != nil {
		if err := set(FieldVenueName, *p.VenueName); err != nil {
			return err
		}
	}
	if p.VenueType != nil {
		if err := set(FieldVenueType, *p.VenueType); err != nil {
			return err
		}
	}
	if p.SoundRequired != nil {
		if err := set(FieldSoundRequired, *p.SoundRequired); err != nil {
			return err
		}
	}
	if p.SoundModePreference != nil {
		if err := set(FieldSoundMode, *p.SoundModePreference); err != nil {
			return err
		}
	}
	if p.SoundSupplierServiceID != nil {
		if err := set(FieldSoundSupplier, *p.SoundSupplierServiceID); err != nil {
			return err
		}
	}
	if p.StageRequired != nil {
		if err := set(FieldStageRequired, *p.StageRequired); err != nil {
			return err
		}
	}
	if p.LightingRequired != nil {
		if err := set(FieldLightingRequired, *p.LightingRequired); err != nil {
			return err
		}
	}
	if p.Notes != nil {
		if err := set(FieldNotes, *p.Notes); err != nil {
			return err
		}
	}
	if p.AttachmentURL != nil {
		if err := set(FieldAttachmentURL, *p.AttachmentURL); err != nil {
			return err
		}
	}
	return nil
}

// --- Вспомогательные функции приведения типов --- //
// JSON-числа приходят как float64, поэтому принимаем оба представления.

func coerceString(key FieldKey, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q expects a string, got %T", ErrInvalidInput, key, value)
	}
	return s, nil
}

func assignString(dst *string, key FieldKey, value interface{}) error {
	s, err := coerceString(key, value)
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

func assignInt(dst *int, key FieldKey, value interface{}) error {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return fmt.Errorf("%w: field %q must not be negative", ErrInvalidInput, key)
		}
		*dst = v
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: field %q must not be negative", ErrInvalidInput, key)
		}
		*dst = int(v)
		return nil
	case float64:
		if v < 0 || v != float64(int(v)) {
			return fmt.Errorf("%w: field %q expects a non-negative integer", ErrInvalidInput, key)
		}
		*dst = int(v)
		return nil
	}
	return fmt.Errorf("%w: field %q expects an integer, got %T", ErrInvalidInput, key, value)
}

func assignInt64(dst *int64, key FieldKey, value interface{}) error {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return fmt.Errorf("%w: field %q must not be negative", ErrInvalidInput, key)
		}
		*dst = int64(v)
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: field %q must not be negative", ErrInvalidInput, key)
		}
		*dst = v
		return nil
	case float64:
		if v < 0 || v != float64(int64(v)) {
			return fmt.Errorf("%w: field %q expects a non-negative integer", ErrInvalidInput, key)
		}
		*dst = int64(v)
		return nil
	}
	return fmt.Errorf("%w: field %q expects an integer, got %T", ErrInvalidInput, key, value)
}

func assignBool(dst *bool, key FieldKey, value interface{}) error {
	b, ok := value.(bool)
	if !ok {
		return fmt.Errorf("%w: field %q expects a boolean, got %T", ErrInvalidInput, key, value)
	}
	*dst = b
	return nil
}
