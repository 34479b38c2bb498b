package advisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"flota/internal/core"
)

// Advice is one recommendation for a vehicle.
type Advice struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Priority Priority `json:"priority"`
	Content  string   `json:"content"`
}

type Priority string

const (
	PriorityHigh   Priority = "Alta"
	PriorityMedium Priority = "Media"
	PriorityLow    Priority = "Baja"
)

func parsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alta", "high":
		return PriorityHigh
	case "baja", "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// FleetAnalysis is the executive analysis of the whole fleet.
type FleetAnalysis struct {
	Summary              string `json:"summary"`
	ProfitabilityInsight string `json:"profitabilityInsight"`
	BestVehicle          string `json:"bestVehicle"`
	WorstVehicle         string `json:"worstVehicle"`
	StrategicAdvice      string `json:"strategicAdvice"`
}

var errEmptyAnswer = errors.New("empty answer")

type rawSuggestion struct {
	Type           string   `json:"type"`
	Category       string   `json:"category"`
	IntervalKm     *float64 `json:"intervalKm"`
	IntervalMonths *float64 `json:"intervalMonths"`
	Description    string   `json:"description"`
}

func parseSuggestions(text string) ([]core.Suggestion, error) {
	var raw []rawSuggestion
	if err := decode(text, &raw); err != nil {
		return nil, err
	}
	out := make([]core.Suggestion, 0, len(raw))
	for _, r := range raw {
		label := r.Type
		if label == "" {
			label = r.Category
		}
		km := wholeNumber(r.IntervalKm)
		// "5" meaning 5.000 km is a common slip.
		if km > 0 && km < 100 {
			km *= 1000
		}
		out = append(out, core.Suggestion{
			Category:       matchCategory(label),
			IntervalKm:     km,
			IntervalMonths: wholeNumber(r.IntervalMonths),
			Rationale:      strings.TrimSpace(r.Description),
		})
	}
	return out, nil
}

func parseAdvice(text string) ([]Advice, error) {
	var raw []struct {
		Title    string `json:"title"`
		Category string `json:"category"`
		Priority string `json:"priority"`
		Content  string `json:"content"`
	}
	if err := decode(text, &raw); err != nil {
		return nil, err
	}
	out := make([]Advice, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Content) == "" {
			continue
		}
		out = append(out, Advice{
			Title:    strings.TrimSpace(r.Title),
			Category: strings.TrimSpace(r.Category),
			Priority: parsePriority(r.Priority),
			Content:  strings.TrimSpace(r.Content),
		})
	}
	return out, nil
}

func parseAnalysis(text string) (*FleetAnalysis, error) {
	var a FleetAnalysis
	if err := decode(text, &a); err != nil {
		return nil, err
	}
	if a.Summary == "" {
		return nil, fmt.Errorf("decode answer: missing summary")
	}
	return &a, nil
}

// decode strips markdown code fences the model sometimes adds.
func decode(text string, out any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return errEmptyAnswer
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return nil
}

func wholeNumber(f *float64) int {
	if f == nil || *f <= 0 || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return 0
	}
	return int(math.Round(*f))
}

// keywords map free-form labels to categories. More specific phrases come
// first: "filtro de aire" must win over "aire" and "filtro".
var keywords = []struct {
	word     string
	category core.Category
}{
	{"filtro de aire", core.CategoryAirFilter},
	{"air filter", core.CategoryAirFilter},
	{"aire acondicionado", core.CategoryACRecharge},
	{"a/c", core.CategoryACRecharge},
	{"aceite", core.CategoryOilFilter},
	{"oil", core.CategoryOilFilter},
	{"freno", core.CategoryBrakes},
	{"brake", core.CategoryBrakes},
	{"correa", core.CategoryTimingBelt},
	{"cadenilla", core.CategoryTimingBelt},
	{"timing", core.CategoryTimingBelt},
	{"amortigu", core.CategoryShockAbsorbers},
	{"shock", core.CategoryShockAbsorbers},
	{"suspens", core.CategorySuspension},
	{"bujía", core.CategorySparkPlugs},
	{"bujia", core.CategorySparkPlugs},
	{"spark", core.CategorySparkPlugs},
	{"llanta", core.CategoryTires},
	{"tire", core.CategoryTires},
	{"tyre", core.CategoryTires},
	{"alineaci", core.CategoryAlignment},
	{"alignment", core.CategoryAlignment},
	{"afinaci", core.CategoryEngineTuning},
	{"tune", core.CategoryEngineTuning},
}

// matchCategory resolves a category code, a display label, or a free-form
// description. Anything unrecognised becomes CategoryOther.
func matchCategory(label string) core.Category {
	if c, err := core.ParseCategory(label); err == nil {
		return c
	}
	l := strings.ToLower(label)
	for _, k := range keywords {
		if strings.Contains(l, k.word) {
			return k.category
		}
	}
	return core.CategoryOther
}
