package core

import "strings"

// Warning windows given to rules created from suggestions.
const (
	SuggestedWarningKm   = 500
	SuggestedWarningDays = 15
)

// Suggestion is a proposed maintenance interval for one category, usually
// produced by the advisor.
type Suggestion struct {
	Category       Category `json:"category"`
	IntervalKm     int      `json:"intervalKm,omitempty"`
	IntervalMonths int      `json:"intervalMonths,omitempty"`
	Rationale      string   `json:"rationale,omitempty"`
}

// Rule turns the suggestion into a maintenance rule with the default
// warning windows.
func (s Suggestion) Rule() MaintenanceRule {
	km, months := max(s.IntervalKm, 0), max(s.IntervalMonths, 0)
	return MaintenanceRule{
		Category: s.Category,
		Schedule: ScheduleFromIntervals(km, months, SuggestedWarningKm, SuggestedWarningDays),
		Notes:    strings.TrimSpace(s.Rationale),
	}
}

// MergeSuggestions applies suggestions onto rules and returns the new list.
// A suggestion for an existing category replaces its schedule and notes but
// keeps the manual override; others are appended. Suggestions without a
// maintenance category or without any interval are skipped.
func MergeSuggestions(rules []MaintenanceRule, suggestions []Suggestion) []MaintenanceRule {
	out := append([]MaintenanceRule(nil), rules...)
	for _, s := range suggestions {
		if !s.Category.IsValid() || s.Category.IsIncome() || s.Category == CategoryOther {
			continue
		}
		if s.IntervalKm <= 0 && s.IntervalMonths <= 0 {
			continue
		}
		next := s.Rule()
		replaced := false
		for i := range out {
			if out[i].Category == s.Category {
				next.Override = out[i].Override
				out[i] = next
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, next)
		}
	}
	return out
}
