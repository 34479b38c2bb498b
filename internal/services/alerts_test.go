package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flota/internal/core"
)

func TestCheckDocuments(t *testing.T) {
	today := core.NewDate(2024, 6, 1)
	v := &core.Vehicle{
		Documents: core.Documents{
			SOATExpiry:           core.NewDate(2024, 5, 31),
			TechMechanicalExpiry: core.NewDate(2024, 6, 1),
			InsuranceExpiry:      core.NewDate(2024, 7, 1),
		},
	}

	got := CheckDocuments(v, today)

	require.Len(t, got, 4)
	assert.Equal(t, DocSOAT, got[0].Document)
	assert.Equal(t, LevelDanger, got[0].Level)
	assert.Equal(t, -1, *got[0].DaysRemaining)

	assert.Equal(t, LevelWarning, got[1].Level, "expiring today is still a warning")
	assert.Equal(t, ReasonDueSoon, got[1].Reason)

	assert.Equal(t, LevelOK, got[2].Level)
	assert.Equal(t, 30, *got[2].DaysRemaining)

	assert.Equal(t, DocTax, got[3].Document)
	assert.Equal(t, ReasonNoRecord, got[3].Reason)
	assert.Nil(t, got[3].Expiry)
	assert.Nil(t, got[3].DaysRemaining)
}

func TestFleetAlerts_OrderAndContent(t *testing.T) {
	today := core.NewDate(2024, 6, 1)
	fine := core.Documents{
		SOATExpiry:           core.NewDate(2025, 1, 1),
		TechMechanicalExpiry: core.NewDate(2025, 1, 1),
		InsuranceExpiry:      core.NewDate(2025, 1, 1),
		TaxExpiry:            core.NewDate(2025, 1, 1),
	}
	zzz := core.Vehicle{ID: "z", Plate: "ZZZ999", Year: 2022, CurrentOdometer: 10000, Documents: fine,
		Rules: []core.MaintenanceRule{oilRule()}}
	aaa := core.Vehicle{ID: "a", Plate: "AAA111", Year: 2022, CurrentOdometer: 10000, Documents: fine,
		Rules: []core.MaintenanceRule{oilRule()}}
	aaa.Documents.SOATExpiry = core.NewDate(2024, 1, 1)

	txs := []core.Transaction{
		// ZZZ999 overdue oil change.
		{ID: "1", VehicleID: "z", Date: core.NewDate(2024, 1, 1), Type: core.Expense, Amount: core.Money{Cents: 1},
			Category: core.CategoryOilFilter, OdometerSnapshot: km(3000)},
		// AAA111 recent oil change.
		{ID: "2", VehicleID: "a", Date: core.NewDate(2024, 5, 1), Type: core.Expense, Amount: core.Money{Cents: 1},
			Category: core.CategoryOilFilter, OdometerSnapshot: km(9500)},
	}

	alerts := FleetAlerts([]core.Vehicle{zzz, aaa}, txs, today)

	require.Len(t, alerts, 2)
	assert.Equal(t, "AAA111", alerts[0].Plate)
	assert.Equal(t, "SOAT", alerts[0].Subject)
	assert.Equal(t, LevelDanger, alerts[0].Level)
	assert.Equal(t, "ZZZ999", alerts[1].Plate)
	assert.Equal(t, core.CategoryOilFilter.Label(), alerts[1].Subject)
	assert.Equal(t, -1000, *alerts[1].KmRemaining)
	assert.Contains(t, alerts[1].Message(), "Vencido")
}

func TestFleetAlerts_WarningsAfterDanger(t *testing.T) {
	today := core.NewDate(2024, 6, 1)
	a := core.Vehicle{ID: "a", Plate: "AAA111", Year: 2024}
	b := core.Vehicle{ID: "b", Plate: "BBB222", Year: 2024}
	b.SOATExpiry = core.NewDate(2024, 1, 1)

	alerts := FleetAlerts([]core.Vehicle{a, b}, nil, today)

	require.NotEmpty(t, alerts)
	assert.Equal(t, LevelDanger, alerts[0].Level)
	assert.Equal(t, "BBB222", alerts[0].Plate)
	for _, al := range alerts[1:] {
		assert.Equal(t, LevelWarning, al.Level)
	}
}
