package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TrackingKind names the way a rule measures dueness.
type TrackingKind string

const (
	TrackDistance TrackingKind = "distance"
	TrackTime     TrackingKind = "time"
	TrackDocument TrackingKind = "document"
)

// Schedule is the interval shape of a maintenance rule. The only
// implementations are ByDistance, ByTime and Document.
type Schedule interface {
	Kind() TrackingKind
	validate() error
}

// ByDistance is due every IntervalKm kilometres. IntervalMonths is kept for
// display only when the stored rule carried both intervals.
type ByDistance struct {
	IntervalKm     int
	WarningKm      int
	IntervalMonths int
}

// ByTime is due every IntervalMonths calendar months.
type ByTime struct {
	IntervalMonths int
	WarningDays    int
}

// Document has no interval and is always valid.
type Document struct{}

func (ByDistance) Kind() TrackingKind { return TrackDistance }
func (ByTime) Kind() TrackingKind     { return TrackTime }
func (Document) Kind() TrackingKind   { return TrackDocument }

func (s ByDistance) validate() error {
	if s.IntervalKm <= 0 || s.WarningKm < 0 || s.IntervalMonths < 0 {
		return ErrInvalidInterval
	}
	return nil
}

func (s ByTime) validate() error {
	if s.IntervalMonths <= 0 || s.WarningDays < 0 {
		return ErrInvalidInterval
	}
	return nil
}

func (Document) validate() error { return nil }

// ScheduleFromIntervals maps the loose stored shape onto a Schedule.
// A kilometre interval wins over a month interval; zero means absent.
func ScheduleFromIntervals(intervalKm, intervalMonths, warningKm, warningDays int) Schedule {
	switch {
	case intervalKm != 0:
		return ByDistance{IntervalKm: intervalKm, WarningKm: warningKm, IntervalMonths: intervalMonths}
	case intervalMonths != 0:
		return ByTime{IntervalMonths: intervalMonths, WarningDays: warningDays}
	default:
		return Document{}
	}
}

// ManualOverride records a service done outside the transaction history.
// Zero values mean absent.
type ManualOverride struct {
	Date Date
	Km   int
}

func (o ManualOverride) IsEmpty() bool {
	return o.Date.IsZero() && o.Km == 0
}

// Merge returns o with the non-empty inputs applied. An empty date or a
// zero km keeps the previous value.
func (o ManualOverride) Merge(date Date, km int) ManualOverride {
	if !date.IsZero() {
		o.Date = date
	}
	if km > 0 {
		o.Km = km
	}
	return o
}

// MaintenanceRule defines how one category is kept up to date on a vehicle.
type MaintenanceRule struct {
	Category Category
	Schedule Schedule
	Override ManualOverride
	Notes    string
}

func (r MaintenanceRule) Validate() error {
	if !r.Category.IsValid() {
		return ErrUnknownCategory
	}
	if r.Category.IsIncome() {
		return fmt.Errorf("%w: %s is an income category", ErrCategoryMismatch, r.Category)
	}
	if r.Schedule == nil {
		return ErrInvalidInterval
	}
	if err := r.Schedule.validate(); err != nil {
		return err
	}
	if r.Override.Km < 0 {
		return ErrInvalidOdometer
	}
	return nil
}

// Kind returns the tracking kind, treating a missing schedule as a document.
func (r MaintenanceRule) Kind() TrackingKind {
	if r.Schedule == nil {
		return TrackDocument
	}
	return r.Schedule.Kind()
}

// IntervalLabel renders the interval for humans, e.g. "cada 5500 km".
func (r MaintenanceRule) IntervalLabel() string {
	switch s := r.Schedule.(type) {
	case ByDistance:
		if s.IntervalMonths > 0 {
			return fmt.Sprintf("cada %d km o %d meses", s.IntervalKm, s.IntervalMonths)
		}
		return fmt.Sprintf("cada %d km", s.IntervalKm)
	case ByTime:
		return fmt.Sprintf("cada %d meses", s.IntervalMonths)
	default:
		return "según vencimiento"
	}
}

type ruleJSON struct {
	Type                 Category `json:"type"`
	IntervalKm           int      `json:"intervalKm,omitempty"`
	IntervalMonths       int      `json:"intervalMonths,omitempty"`
	WarningThresholdKm   int      `json:"warningThresholdKm,omitempty"`
	WarningThresholdDays int      `json:"warningThresholdDays,omitempty"`
	LastManualDate       *Date    `json:"lastManualDate,omitempty"`
	LastManualKm         int      `json:"lastManualKm,omitempty"`
	Description          string   `json:"description,omitempty"`
}

// MarshalJSON writes the flat stored shape.
func (r MaintenanceRule) MarshalJSON() ([]byte, error) {
	out := ruleJSON{
		Type:           r.Category,
		LastManualDate: r.Override.Date.Ptr(),
		LastManualKm:   r.Override.Km,
		Description:    r.Notes,
	}
	switch s := r.Schedule.(type) {
	case ByDistance:
		out.IntervalKm = s.IntervalKm
		out.WarningThresholdKm = s.WarningKm
		out.IntervalMonths = s.IntervalMonths
	case ByTime:
		out.IntervalMonths = s.IntervalMonths
		out.WarningThresholdDays = s.WarningDays
	}
	return json.Marshal(out)
}

func (r *MaintenanceRule) UnmarshalJSON(b []byte) error {
	var in ruleJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var date Date
	if in.LastManualDate != nil {
		date = *in.LastManualDate
	}
	*r = MaintenanceRule{
		Category: in.Type,
		Schedule: ScheduleFromIntervals(in.IntervalKm, in.IntervalMonths, in.WarningThresholdKm, in.WarningThresholdDays),
		Override: ManualOverride{Date: date, Km: in.LastManualKm},
		Notes:    strings.TrimSpace(in.Description),
	}
	return nil
}

// DefaultMaintenanceRules returns a fresh copy of the rules every new
// vehicle starts with.
func DefaultMaintenanceRules() []MaintenanceRule {
	return []MaintenanceRule{
		{Category: CategoryOilFilter, Schedule: ByDistance{IntervalKm: 5500, WarningKm: 500}},
		{Category: CategoryBrakes, Schedule: ByDistance{IntervalKm: 25000, WarningKm: 1000}},
		{Category: CategoryTires, Schedule: ByTime{IntervalMonths: 6, WarningDays: 15}},
		{Category: CategoryAlignment, Schedule: ByTime{IntervalMonths: 6, WarningDays: 15}},
		{Category: CategoryAirFilter, Schedule: ByTime{IntervalMonths: 6, WarningDays: 15}},
		{Category: CategoryACRecharge, Schedule: ByTime{IntervalMonths: 36, WarningDays: 30}},
		{Category: CategorySuspension, Schedule: ByTime{IntervalMonths: 6, WarningDays: 15}},
		{Category: CategoryShockAbsorbers, Schedule: ByTime{IntervalMonths: 24, WarningDays: 30}},
		{Category: CategorySparkPlugs, Schedule: ByDistance{IntervalKm: 50000, WarningKm: 2000}},
		{Category: CategoryEngineTuning, Schedule: ByDistance{IntervalKm: 50000, WarningKm: 2000}},
	}
}
