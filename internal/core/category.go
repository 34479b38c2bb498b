package core

import (
	"encoding/json"
	"strings"
)

// Category is a closed set of transaction and maintenance categories.
// Codes are the matching keys; labels are for display only.
type Category string

const (
	CategoryOilFilter       Category = "oil_filter"
	CategoryBrakes          Category = "brakes"
	CategoryTires           Category = "tires"
	CategoryAlignment       Category = "alignment"
	CategoryAirFilter       Category = "air_filter"
	CategoryACRecharge      Category = "ac_recharge"
	CategoryTimingBelt      Category = "timing_belt"
	CategorySuspension      Category = "suspension"
	CategoryShockAbsorbers  Category = "shock_absorbers"
	CategorySparkPlugs      Category = "spark_plugs"
	CategoryEngineTuning    Category = "engine_tuning"
	CategorySOAT            Category = "soat"
	CategoryTechMechanical  Category = "tech_mechanical"
	CategoryInsurancePolicy Category = "insurance_policy"
	CategoryWeeklySettle    Category = "weekly_settlement"
	CategoryBonus           Category = "bonus"
	CategoryOther           Category = "other"
)

var categoryLabels = map[Category]string{
	CategoryOilFilter:       "Aceite y Filtros",
	CategoryBrakes:          "Frenos",
	CategoryTires:           "Llantas",
	CategoryAlignment:       "Alineación y Balanceo",
	CategoryAirFilter:       "Filtro de Aire",
	CategoryACRecharge:      "Recarga Aire Acondicionado",
	CategoryTimingBelt:      "Correa/Cadenilla",
	CategorySuspension:      "Suspensión",
	CategoryShockAbsorbers:  "Amortiguadores",
	CategorySparkPlugs:      "Cables y Bujías",
	CategoryEngineTuning:    "Afinación Motor",
	CategorySOAT:            "SOAT",
	CategoryTechMechanical:  "Técnico Mecánica",
	CategoryInsurancePolicy: "Póliza Todo Riesgo",
	CategoryWeeklySettle:    "Liquidación Semanal",
	CategoryBonus:           "Bono",
	CategoryOther:           "Otro",
}

// maintenanceOrder is the display order of expense categories.
var maintenanceOrder = []Category{
	CategoryOilFilter,
	CategoryBrakes,
	CategoryTires,
	CategoryAlignment,
	CategoryAirFilter,
	CategoryACRecharge,
	CategoryTimingBelt,
	CategorySuspension,
	CategoryShockAbsorbers,
	CategorySparkPlugs,
	CategoryEngineTuning,
	CategorySOAT,
	CategoryTechMechanical,
	CategoryInsurancePolicy,
}

// byLabel indexes normalised labels and codes back to categories.
var byLabel = func() map[string]Category {
	m := make(map[string]Category, len(categoryLabels)*2)
	for c, l := range categoryLabels {
		m[normalizeKey(l)] = c
		m[normalizeKey(string(c))] = c
	}
	// Labels seen in older exports and AI answers.
	m[normalizeKey("Otro/Other")] = CategoryOther
	m[normalizeKey("Tecnomecánica")] = CategoryTechMechanical
	m[normalizeKey("Bujías")] = CategorySparkPlugs
	m[normalizeKey("Correa")] = CategoryTimingBelt
	m[normalizeKey("Cadenilla")] = CategoryTimingBelt
	return m
}()

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ParseCategory resolves a code or display label into a Category.
func ParseCategory(s string) (Category, error) {
	if c, ok := byLabel[normalizeKey(s)]; ok {
		return c, nil
	}
	return "", ErrUnknownCategory
}

func (c Category) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the display label, or the raw code for unknown values.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (c Category) String() string {
	return string(c)
}

// IsDocument reports whether the category is a legal document renewal.
func (c Category) IsDocument() bool {
	switch c {
	case CategorySOAT, CategoryTechMechanical, CategoryInsurancePolicy:
		return true
	}
	return false
}

// IsIncome reports whether the category only applies to income.
func (c Category) IsIncome() bool {
	return c == CategoryWeeklySettle || c == CategoryBonus
}

// ExpenseCategories returns the categories selectable for expenses, in display order.
func ExpenseCategories() []Category {
	out := append([]Category(nil), maintenanceOrder...)
	return append(out, CategoryOther)
}

// IncomeCategories returns the categories selectable for income.
func IncomeCategories() []Category {
	return []Category{CategoryWeeklySettle, CategoryBonus, CategoryOther}
}

// UnmarshalJSON accepts codes and legacy labels.
func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AllMaintenanceCategories returns the service and document categories a
// maintenance rule may track.
func AllMaintenanceCategories() []Category {
	return append([]Category(nil), maintenanceOrder...)
}
