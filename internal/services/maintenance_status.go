// Package services provides business logic and orchestration services.
//
// This file implements the maintenance status engine. Each schedule kind
// (distance, time, document) has its own checker that turns the effective
// last-service facts of a rule into an OK / WARNING / DANGER verdict.

package services

import (
	"fmt"
	"sort"

	"flota/internal/core"
)

// Level is the status tier of a maintenance rule or document.
type Level string

const (
	LevelOK      Level = "OK"
	LevelWarning Level = "WARNING"
	LevelDanger  Level = "DANGER"
)

// rank orders levels from most to least urgent.
func (l Level) rank() int {
	switch l {
	case LevelDanger:
		return 0
	case LevelWarning:
		return 1
	default:
		return 2
	}
}

// Reason tags why a level was chosen.
type Reason string

const (
	ReasonNoRecord Reason = "no_record"
	ReasonOverdue  Reason = "overdue"
	ReasonDueSoon  Reason = "due_soon"
	ReasonUpToDate Reason = "up_to_date"
	ReasonValid    Reason = "valid"
)

// Label returns the Spanish message shown next to a status.
func (r Reason) Label() string {
	switch r {
	case ReasonNoRecord:
		return "Sin registro"
	case ReasonOverdue:
		return "Vencido"
	case ReasonDueSoon:
		return "Próximo"
	case ReasonValid:
		return "Vigente"
	default:
		return "OK"
	}
}

// MaintenanceStatus is the verdict for one rule of one vehicle.
type MaintenanceStatus struct {
	Category      core.Category      `json:"category"`
	Tracking      core.TrackingKind  `json:"tracking"`
	Level         Level              `json:"level"`
	Reason        Reason             `json:"reason"`
	LastDate      *core.Date         `json:"lastDate"`
	LastKm        int                `json:"lastKm"`
	TotalSpent    core.Money         `json:"totalSpent"`
	Transactions  []core.Transaction `json:"transactions"`
	NextDueKm     *int               `json:"nextDueKm,omitempty"`
	KmRemaining   *int               `json:"kmRemaining,omitempty"`
	NextDueDate   *core.Date         `json:"nextDueDate,omitempty"`
	DaysRemaining *int               `json:"daysRemaining,omitempty"`
}

// ServiceFacts are the reconciled last-service facts a checker works from.
type ServiceFacts struct {
	LastDate core.Date // zero when there is neither a transaction nor an override date
	LastKm   int
	Override core.ManualOverride
}

// StatusChecker is the strategy interface for one schedule kind.
type StatusChecker interface {
	Check(v *core.Vehicle, s core.Schedule, facts ServiceFacts, today core.Date) MaintenanceStatus
}

// DistanceChecker evaluates ByDistance schedules against the odometer.
type DistanceChecker struct{}

func (DistanceChecker) Check(v *core.Vehicle, s core.Schedule, f ServiceFacts, _ core.Date) MaintenanceStatus {
	sched := s.(core.ByDistance)
	nextDue := f.LastKm + sched.IntervalKm
	remaining := nextDue - v.CurrentOdometer

	st := MaintenanceStatus{NextDueKm: &nextDue, KmRemaining: &remaining}
	switch {
	case f.LastDate.IsEmpty() && f.LastKm == 0:
		st.Level, st.Reason = LevelWarning, ReasonNoRecord
	case remaining <= 0:
		st.Level, st.Reason = LevelDanger, ReasonOverdue
	case sched.WarningKm > 0 && remaining <= sched.WarningKm:
		st.Level, st.Reason = LevelWarning, ReasonDueSoon
	default:
		st.Level, st.Reason = LevelOK, ReasonUpToDate
	}
	return st
}

// TimeChecker evaluates ByTime schedules against the calendar. A rule that
// was never serviced is anchored on January 1 of the model year.
type TimeChecker struct{}

func (TimeChecker) Check(v *core.Vehicle, s core.Schedule, f ServiceFacts, today core.Date) MaintenanceStatus {
	sched := s.(core.ByTime)
	anchor := f.LastDate
	if anchor.IsEmpty() {
		anchor = core.NewDate(v.Year, 1, 1)
	}
	nextDue := anchor.AddMonths(sched.IntervalMonths)
	remaining := today.DaysUntil(nextDue)

	st := MaintenanceStatus{NextDueDate: &nextDue, DaysRemaining: &remaining}
	switch {
	case f.LastDate.IsEmpty() && f.LastKm == 0 && f.Override.Date.IsEmpty():
		st.Level, st.Reason = LevelWarning, ReasonNoRecord
	case remaining <= 0:
		st.Level, st.Reason = LevelDanger, ReasonOverdue
	case sched.WarningDays > 0 && remaining <= sched.WarningDays:
		st.Level, st.Reason = LevelWarning, ReasonDueSoon
	default:
		st.Level, st.Reason = LevelOK, ReasonUpToDate
	}
	return st
}

// DocumentChecker handles rules without an interval. They are always valid.
type DocumentChecker struct{}

func (DocumentChecker) Check(*core.Vehicle, core.Schedule, ServiceFacts, core.Date) MaintenanceStatus {
	return MaintenanceStatus{Level: LevelOK, Reason: ReasonValid}
}

// statusCheckers maps tracking kinds to their checkers.
var statusCheckers = map[core.TrackingKind]StatusChecker{
	core.TrackDistance: DistanceChecker{},
	core.TrackTime:     TimeChecker{},
	core.TrackDocument: DocumentChecker{},
}

// GetStatusChecker returns the checker for a tracking kind.
func GetStatusChecker(kind core.TrackingKind) (StatusChecker, error) {
	checker, ok := statusCheckers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown tracking kind: %s", kind)
	}
	return checker, nil
}

// MatchingServices returns the EXPENSE transactions of the rule's category,
// most recent first. Transactions on the same date keep their input order.
func MatchingServices(c core.Category, txs []core.Transaction) []core.Transaction {
	var out []core.Transaction
	for _, t := range txs {
		if t.Type == core.Expense && t.Category == c {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// EffectiveFacts reconciles the most recent matching transaction with the
// rule's manual override. The override wins only when strictly newer
// (date) or strictly greater (km).
func EffectiveFacts(rule core.MaintenanceRule, matching []core.Transaction) ServiceFacts {
	f := ServiceFacts{Override: rule.Override}
	if len(matching) > 0 {
		f.LastDate = matching[0].Date
		if km := matching[0].OdometerSnapshot; km != nil {
			f.LastKm = *km
		}
	}
	if od := rule.Override.Date; !od.IsEmpty() && (f.LastDate.IsEmpty() || od.After(f.LastDate)) {
		f.LastDate = od
	}
	if rule.Override.Km > f.LastKm {
		f.LastKm = rule.Override.Km
	}
	return f
}

// EvaluateMaintenance computes the status of one rule of a vehicle on the
// given calendar day. txs may hold every transaction of the vehicle; they
// are filtered here. A nil vehicle is a caller bug and panics.
func EvaluateMaintenance(v *core.Vehicle, rule core.MaintenanceRule, txs []core.Transaction, today core.Date) MaintenanceStatus {
	if v == nil {
		panic("services: EvaluateMaintenance called with nil vehicle")
	}

	kind := rule.Kind()
	checker, err := GetStatusChecker(kind)
	if err != nil {
		panic(err)
	}
	if kind == core.TrackDocument {
		st := checker.Check(v, rule.Schedule, ServiceFacts{}, today)
		st.Category, st.Tracking = rule.Category, kind
		st.Transactions = []core.Transaction{}
		return st
	}

	matching := MatchingServices(rule.Category, txs)
	facts := EffectiveFacts(rule, matching)

	st := checker.Check(v, rule.Schedule, facts, today)
	st.Category, st.Tracking = rule.Category, kind
	st.LastDate = facts.LastDate.Ptr()
	st.LastKm = facts.LastKm
	st.Transactions = matching
	if st.Transactions == nil {
		st.Transactions = []core.Transaction{}
	}
	for _, t := range matching {
		st.TotalSpent = st.TotalSpent.Add(t.Amount)
	}
	return st
}

// EvaluateVehicle evaluates every rule of the vehicle in rule order.
func EvaluateVehicle(v *core.Vehicle, txs []core.Transaction, today core.Date) []MaintenanceStatus {
	if v == nil {
		panic("services: EvaluateVehicle called with nil vehicle")
	}
	out := make([]MaintenanceStatus, 0, len(v.Rules))
	for _, r := range v.Rules {
		out = append(out, EvaluateMaintenance(v, r, txs, today))
	}
	return out
}
