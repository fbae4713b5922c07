package engine

import (
	"strings"

	"booking-server/internal/models"
)

// Детерминированный классификатор по ключевым словам: свободный текст
// позиций райдера превращается в канонические ценовые единицы плюс тэллай
// бэклайна. Нераспознанные позиции молча выпадают из прайсинга.

// riderNormalization - результат нормализации райдера.
type riderNormalization struct {
	Units    models.RiderUnits
	Backline map[string]int
	Dropped  []string
}

// Категории бэклайна в порядке проверки. Порядок фиксирован, чтобы
// классификация была детерминированной ("bass amp" - это amp).
var backlineCategories = []struct {
	Name     string
	Keywords []string
}{
	{"amp", []string{"amp", "amplifier", "cabinet", "cab"}},
	{"drums", []string{"drum", "kick", "snare", "cymbal"}},
	{"keyboard", []string{"keyboard", "keys", "piano", "synth"}},
	{"guitar", []string{"guitar"}},
	{"bass", []string{"bass"}},
	{"dj_booth", []string{"dj", "turntable", "cdj", "controller"}},
}

// normalizeRider классифицирует каждую позицию райдера. Порядок проверок
// важен: IEM раньше мониторов ("iem monitor"), речевые микрофоны раньше
// вокальных ("speech mic").
func normalizeRider(spec *RiderSpec) riderNormalization {
	out := riderNormalization{Backline: make(map[string]int)}
	if spec == nil {
		return out
	}
	for _, raw := range spec.Items {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		switch {
		case containsAny(name, "iem", "in-ear", "in ear"):
			out.Units.IEMPacks++
		case containsAny(name, "monitor", "wedge", "foldback"):
			out.Units.MonitorMixes++
		case containsAny(name, "di box", "di-box", "direct box") || name == "di":
			out.Units.DIBoxes++
		case containsAny(name, "speech mic", "talk mic", "speech microphone", "podium mic", "lectern"):
			out.Units.SpeechMics++
		case containsAny(name, "vocal mic", "vocal microphone", "mic", "microphone"):
			out.Units.VocalMics++
		default:
			if category, ok := classifyBackline(name); ok {
				out.Backline[category]++
			} else {
				out.Dropped = append(out.Dropped, raw)
			}
		}
	}
	return out
}

func classifyBackline(name string) (string, bool) {
	for _, category := range backlineCategories {
		for _, kw := range category.Keywords {
			if strings.Contains(name, kw) {
				return category.Name, true
			}
		}
	}
	return "", false
}

func containsAny(name string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
