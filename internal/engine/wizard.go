package engine

import (
	"fmt"

	"booking-server/internal/models"
)

// wizardSteps возвращает фиксированный упорядоченный список шагов визарда
// с их обязательными полями. Терминальный шаг - review: после него
// состояния нет, сабмит - сайд-эффект, а не переход.
func wizardSteps() []models.Step {
	return []models.Step{
		{ID: models.StepDescription, Required: []models.FieldKey{models.FieldDescription}},
		{ID: models.StepLocation, Required: []models.FieldKey{models.FieldLocation}},
		{ID: models.StepDateTime, Required: []models.FieldKey{models.FieldEventDate}},
		{ID: models.StepEventType, Required: []models.FieldKey{models.FieldEventType}},
		{ID: models.StepGuests, Required: []models.FieldKey{models.FieldGuestCount}},
		{ID: models.StepVenue, Required: []models.FieldKey{models.FieldVenueType}},
		{ID: models.StepSound, Required: []models.FieldKey{models.FieldSoundRequired}},
		{ID: models.StepNotes},
		{ID: models.StepReview},
	}
}

// GoToStep делает шаг id текущим, если он входит в список шагов, и очищает
// ошибки текущего шага. Валидацию целевого шага НЕ запускает: прыжковая
// навигация обходит гейт полноты, который обеспечивает NextStep.
func (e *Engine) GoToStep(id models.StepID) (models.EngineState, error) {
	return e.reduceWith(func(s *models.EngineState) error {
		for i, step := range s.Steps {
			if step.ID == id {
				s.StepID = id
				s.StepIndex = i
				s.Validation.CurrentStepErrors = nil
				return nil
			}
		}
		return fmt.Errorf("%w: %q", models.ErrNoSuchStep, id)
	})
}

// NextStep валидирует обязательные поля активного шага. При любом
// отсутствующем значении записывает по ошибке на поле и не продвигается;
// иначе инкрементирует StepIndex с потолком на последнем индексе.
func (e *Engine) NextStep() models.EngineState {
	return e.reduce(func(s *models.EngineState) {
		step := s.CurrentStep()
		var errs []models.FieldError
		for _, field := range step.Required {
			if s.Details.FieldEmpty(field) {
				errs = append(errs, models.FieldError{
					Field:   field,
					Message: fmt.Sprintf("field %q is required for step %q", field, step.ID),
				})
			}
		}
		if len(errs) > 0 {
			s.Validation.CurrentStepErrors = errs
			return
		}
		s.Validation.CurrentStepErrors = nil
		if s.StepIndex < len(s.Steps)-1 {
			s.StepIndex++
			s.StepID = s.Steps[s.StepIndex].ID
		}
	})
}

// PrevStep декрементирует StepIndex с полом на нуле; никогда не фейлится.
func (e *Engine) PrevStep() models.EngineState {
	return e.reduce(func(s *models.EngineState) {
		if s.StepIndex > 0 {
			s.StepIndex--
			s.StepID = s.Steps[s.StepIndex].ID
		}
		s.Validation.CurrentStepErrors = nil
	})
}

// UpdateField применяет одно обновление поля details. Любое изменение
// details инвалидирует последнюю посчитанную котировку - даже поля, не
// влияющие на цену: модель намеренно простая.
func (e *Engine) UpdateField(key models.FieldKey, value interface{}) (models.EngineState, error) {
	return e.reduceWith(func(s *models.EngineState) error {
		if err := s.Details.ApplyField(key, value); err != nil {
			return err
		}
		s.Quote.IsDirty = true
		return nil
	})
}

// UpdateMany применяет типизированный патч к details; котировка
// помечается грязной безусловно.
func (e *Engine) UpdateMany(patch models.DetailsPatch) (models.EngineState, error) {
	return e.reduceWith(func(s *models.EngineState) error {
		if err := patch.Apply(&s.Details); err != nil {
			return err
		}
		s.Quote.IsDirty = true
		return nil
	})
}
