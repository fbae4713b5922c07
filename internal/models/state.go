package models

// StepID идентифицирует шаг визарда.
type StepID string

// Фиксированный порядок шагов живого бронирования.
const (
	StepDescription StepID = "description"
	StepLocation    StepID = "location"
	StepDateTime    StepID = "datetime"
	StepEventType   StepID = "event_type"
	StepGuests      StepID = "guests"
	StepVenue       StepID = "venue"
	StepSound       StepID = "sound"
	StepNotes       StepID = "notes"
	StepReview      StepID = "review"
)

// Step описывает один шаг визарда и его обязательные поля.
type Step struct {
	ID       StepID     `json:"id"`
	Required []FieldKey `json:"required,omitempty"`
}

// RiderUnits - канонические ценовые единицы, полученные нормализацией
// райдера (технических требований исполнителя).
type RiderUnits struct {
	VocalMics    int `json:"vocal_mics"`
	SpeechMics   int `json:"speech_mics"`
	MonitorMixes int `json:"monitor_mixes"`
	IEMPacks     int `json:"iem_packs"`
	DIBoxes      int `json:"di_boxes"`
}

// Total возвращает суммарное количество единиц (для логов и метрик).
func (r RiderUnits) Total() int {
	return r.VocalMics + r.SpeechMics + r.MonitorMixes + r.IEMPacks + r.DIBoxes
}

// QuoteItem - одна строка ценового разложения.
type QuoteItem struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Quote - вычисленное ценовое разложение.
// SoundCost остаётся nil, когда ни удалённая оценка, ни fallback не дали
// пригодного значения: потребители обязаны трактовать nil как
// "недоступно", а не как ноль.
type Quote struct {
	Items      []QuoteItem    `json:"items"`
	Total      float64        `json:"total"`
	SoundCost  *float64       `json:"sound_cost,omitempty"`
	TravelCost *float64       `json:"travel_cost,omitempty"`
	RiderUnits RiderUnits     `json:"rider_units"`
	Backline   map[string]int `json:"backline"`
	IsDirty    bool           `json:"is_dirty"`
}

// TravelResult - результат резолюции дистанции/стоимости проезда. Nullable.
type TravelResult struct {
	DistanceKm float64 `json:"distance_km"`
	Cost       float64 `json:"cost"`
	Mode       string  `json:"mode"`
}

// AvailabilityStatus - статус загрузки недоступных дат исполнителя.
type AvailabilityStatus string

const (
	AvailabilityIdle    AvailabilityStatus = "idle"
	AvailabilityLoading AvailabilityStatus = "loading"
	AvailabilityReady   AvailabilityStatus = "ready"
	AvailabilityError   AvailabilityStatus = "error"
)

// Availability - недоступные даты исполнителя.
type Availability struct {
	UnavailableDates []string           `json:"unavailable_dates"`
	Status           AvailabilityStatus `json:"status"`
}

// BookingStatus - статус жизненного цикла черновика/заявки.
type BookingStatus string

const (
	BookingIdle      BookingStatus = "idle"
	BookingDraft     BookingStatus = "draft"
	BookingSubmitted BookingStatus = "submitted"
)

// BookingRef - ссылка на удалённый черновик заявки.
// RequestID присваивается не более одного раза за жизненный цикл черновика
// и сбрасывается только явным discard.
type BookingRef struct {
	RequestID string        `json:"request_id,omitempty"`
	Status    BookingStatus `json:"status"`
}

// Flags - операционные флаги движка. Single-flight гварды
// (SavingDraft/QuoteLoading/Submitting) обеспечиваются внутри единой точки
// мутации состояния, а не по договорённости.
type Flags struct {
	Loading      bool `json:"loading"`
	SavingDraft  bool `json:"saving_draft"`
	Submitting   bool `json:"submitting"`
	Offline      bool `json:"offline"`
	QuoteLoading bool `json:"quote_loading"`
}

// FieldError - ошибка валидации одного обязательного поля текущего шага.
type FieldError struct {
	Field   FieldKey `json:"field"`
	Message string   `json:"message"`
}

// Validation - ошибки текущего шага плюс глобальная ошибка движка.
type Validation struct {
	CurrentStepErrors []FieldError `json:"current_step_errors,omitempty"`
	GlobalError       string       `json:"global_error,omitempty"`
}

// EngineState - единственный владеемый агрегат движка. Любая запись
// заменяет его целиком (никаких частичных мутаций на месте); замену
// выполняет только редьюсер.
type EngineState struct {
	ArtistID  int64 `json:"artist_id"`
	ServiceID int64 `json:"service_id"`

	StepID    StepID `json:"step_id"`
	StepIndex int    `json:"step_index"`
	Steps     []Step `json:"steps"`

	Details      EventDetails  `json:"details"`
	Availability Availability  `json:"availability"`
	Travel       *TravelResult `json:"travel,omitempty"`
	Quote        Quote         `json:"quote"`
	Booking      BookingRef    `json:"booking"`
	Flags        Flags         `json:"flags"`
	Validation   Validation    `json:"validation"`
}

// CurrentStep возвращает описание активного шага.
func (s EngineState) CurrentStep() Step {
	if s.StepIndex < 0 || s.StepIndex >= len(s.Steps) {
		return Step{}
	}
	return s.Steps[s.StepIndex]
}

// Clone делает глубокую копию состояния, чтобы подписчики никогда не
// наблюдали частично применённое обновление.
func (s EngineState) Clone() EngineState {
	out := s

	out.Steps = make([]Step, len(s.Steps))
	copy(out.Steps, s.Steps)
	for i, st := range s.Steps {
		if st.Required != nil {
			req := make([]FieldKey, len(st.Required))
			copy(req, st.Required)
			out.Steps[i].Required = req
		}
	}

	if s.Availability.UnavailableDates != nil {
		dates := make([]string, len(s.Availability.UnavailableDates))
		copy(dates, s.Availability.UnavailableDates)
		out.Availability.UnavailableDates = dates
	}

	if s.Travel != nil {
		t := *s.Travel
		out.Travel = &t
	}

	out.Quote = s.Quote.clone()

	if s.Validation.CurrentStepErrors != nil {
		errs := make([]FieldError, len(s.Validation.CurrentStepErrors))
		copy(errs, s.Validation.CurrentStepErrors)
		out.Validation.CurrentStepErrors = errs
	}

	return out
}

func (q Quote) clone() Quote {
	out := q
	if q.Items != nil {
		items := make([]QuoteItem, len(q.Items))
		copy(items, q.Items)
		out.Items = items
	}
	if q.SoundCost != nil {
		v := *q.SoundCost
		out.SoundCost = &v
	}
	if q.TravelCost != nil {
		v := *q.TravelCost
		out.TravelCost = &v
	}
	if q.Backline != nil {
		bl := make(map[string]int, len(q.Backline))
		for k, v := range q.Backline {
			bl[k] = v
		}
		out.Backline = bl
	}
	return out
}
