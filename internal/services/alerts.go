package services

import (
	"sort"

	"flota/internal/core"
)

// Alert is a non-OK maintenance or document status, flattened for listing.
type Alert struct {
	VehicleID     string `json:"vehicleId"`
	Plate         string `json:"plate"`
	Subject       string `json:"subject"`
	Level         Level  `json:"level"`
	Reason        Reason `json:"reason"`
	KmRemaining   *int   `json:"kmRemaining,omitempty"`
	DaysRemaining *int   `json:"daysRemaining,omitempty"`
}

// Message renders the alert for logs and notifications.
func (a Alert) Message() string {
	return a.Plate + " · " + a.Subject + ": " + a.Reason.Label()
}

// FleetAlerts collects every non-OK status of the fleet, DANGER first,
// then by plate. txs may contain transactions of any vehicle.
func FleetAlerts(vehicles []core.Vehicle, txs []core.Transaction, today core.Date) []Alert {
	byVehicle := make(map[string][]core.Transaction, len(vehicles))
	for _, t := range txs {
		byVehicle[t.VehicleID] = append(byVehicle[t.VehicleID], t)
	}

	var alerts []Alert
	for i := range vehicles {
		v := &vehicles[i]
		for _, st := range EvaluateVehicle(v, byVehicle[v.ID], today) {
			if st.Level == LevelOK {
				continue
			}
			alerts = append(alerts, Alert{
				VehicleID:     v.ID,
				Plate:         v.Plate,
				Subject:       st.Category.Label(),
				Level:         st.Level,
				Reason:        st.Reason,
				KmRemaining:   st.KmRemaining,
				DaysRemaining: st.DaysRemaining,
			})
		}
		for _, d := range CheckDocuments(v, today) {
			if d.Level == LevelOK {
				continue
			}
			alerts = append(alerts, Alert{
				VehicleID:     v.ID,
				Plate:         v.Plate,
				Subject:       d.Document.Label(),
				Level:         d.Level,
				Reason:        d.Reason,
				DaysRemaining: d.DaysRemaining,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Level != alerts[j].Level {
			return alerts[i].Level.rank() < alerts[j].Level.rank()
		}
		return alerts[i].Plate < alerts[j].Plate
	})
	return alerts
}
