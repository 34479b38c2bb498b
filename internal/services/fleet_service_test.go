package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flota/internal/core"
	applog "flota/internal/log"
	"flota/internal/repo"
	"flota/internal/repo/memory"
)

var fixedNow = time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)

func newTestFleet(t *testing.T, r repo.Repository) *FleetService {
	t.Helper()
	n := 0
	return NewFleetService(r,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(applog.Discard()),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
}

func logan() core.Vehicle {
	return core.Vehicle{
		Plate:           " gft-982 ",
		Brand:           "Renault",
		Model:           "Logan",
		Year:            2020,
		CurrentOdometer: 95000,
	}
}

func registerLogan(t *testing.T, s *FleetService) core.Vehicle {
	t.Helper()
	v, err := s.RegisterVehicle(context.Background(), logan())
	require.NoError(t, err)
	return v
}

func TestRegisterVehicle_Defaults(t *testing.T) {
	s := newTestFleet(t, memory.New())

	v := registerLogan(t, s)

	assert.Equal(t, "id-1", v.ID)
	assert.Equal(t, "GFT-982", v.Plate)
	assert.Equal(t, core.NewDate(2024, 6, 1), v.LastOdometerUpdate)
	assert.Len(t, v.Rules, len(core.DefaultMaintenanceRules()))

	stored, err := s.GetVehicle(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Plate, stored.Plate)
}

func TestRegisterVehicle_DuplicatePlate(t *testing.T) {
	s := newTestFleet(t, memory.New())
	registerLogan(t, s)

	dup := logan()
	dup.Plate = "GFT-982"
	_, err := s.RegisterVehicle(context.Background(), dup)
	assert.ErrorIs(t, err, ErrDuplicatePlate)
}

func TestRegisterVehicle_Invalid(t *testing.T) {
	s := newTestFleet(t, memory.New())

	v := logan()
	v.Plate = "  "
	_, err := s.RegisterVehicle(context.Background(), v)
	assert.ErrorIs(t, err, core.ErrEmptyPlate)

	v = logan()
	v.Rules = []core.MaintenanceRule{oilRule(), oilRule()}
	_, err = s.RegisterVehicle(context.Background(), v)
	assert.ErrorIs(t, err, core.ErrDuplicateRule)
}

func TestRegisterVehicle_YearFollowsClock(t *testing.T) {
	s := newTestFleet(t, memory.New())

	v := logan()
	v.Year = 2025
	_, err := s.RegisterVehicle(context.Background(), v)
	require.NoError(t, err)

	v = logan()
	v.Plate = "KLM-123"
	v.Year = 2026
	_, err = s.RegisterVehicle(context.Background(), v)
	assert.ErrorIs(t, err, core.ErrInvalidYear)
}

func TestUpdateOdometer(t *testing.T) {
	s := newTestFleet(t, memory.New())
	v := registerLogan(t, s)
	ctx := context.Background()

	got, err := s.UpdateOdometer(ctx, v.ID, 96500)
	require.NoError(t, err)
	assert.Equal(t, 96500, got.CurrentOdometer)

	// lower readings are accepted
	got, err = s.UpdateOdometer(ctx, v.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, got.CurrentOdometer)

	_, err = s.UpdateOdometer(ctx, v.ID, -1)
	assert.ErrorIs(t, err, core.ErrInvalidOdometer)

	_, err = s.UpdateOdometer(ctx, "missing", 10)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUpdateDocumentsAndDriver(t *testing.T) {
	s := newTestFleet(t, memory.New())
	v := registerLogan(t, s)
	ctx := context.Background()

	docs := core.Documents{SOATExpiry: core.NewDate(2024, 6, 20)}
	_, err := s.UpdateDocuments(ctx, v.ID, docs)
	require.NoError(t, err)

	got, err := s.UpdateDriver(ctx, v.ID, core.Driver{Name: " Carlos ", Phone: "300"})
	require.NoError(t, err)
	assert.Equal(t, "Carlos", got.Driver.Name)
	assert.Equal(t, docs.SOATExpiry, got.SOATExpiry)
}

func TestSetManualOverride_PartialMerge(t *testing.T) {
	s := newTestFleet(t, memory.New())
	v := registerLogan(t, s)
	ctx := context.Background()

	_, err := s.SetManualOverride(ctx, v.ID, core.CategoryOilFilter, core.NewDate(2024, 5, 1), 94000)
	require.NoError(t, err)

	got, err := s.SetManualOverride(ctx, v.ID, core.CategoryOilFilter, core.Date{}, 94500)
	require.NoError(t, err)

	rule, ok := got.Rule(core.CategoryOilFilter)
	require.True(t, ok)
	assert.Equal(t, core.NewDate(2024, 5, 1), rule.Override.Date)
	assert.Equal(t, 94500, rule.Override.Km)

	_, err = s.SetManualOverride(ctx, v.ID, core.CategoryTimingBelt, core.NewDate(2024, 5, 1), 0)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestApplySuggestions(t *testing.T) {
	s := newTestFleet(t, memory.New())
	v := registerLogan(t, s)

	got, err := s.ApplySuggestions(context.Background(), v.ID, []core.Suggestion{
		{Category: core.CategoryOilFilter, IntervalKm: 7000},
		{Category: core.CategoryTimingBelt, IntervalKm: 60000},
	})
	require.NoError(t, err)

	assert.Len(t, got.Rules, len(core.DefaultMaintenanceRules())+1)
	oil, _ := got.Rule(core.CategoryOilFilter)
	assert.Equal(t, core.ByDistance{IntervalKm: 7000, WarningKm: core.SuggestedWarningKm}, oil.Schedule)
}

func TestRecordTransaction(t *testing.T) {
	s := newTestFleet(t, memory.New())
	v := registerLogan(t, s)
	ctx := context.Background()

	tx, err := s.RecordTransaction(ctx, core.Transaction{
		VehicleID:   v.ID,
		Date:        core.NewDate(2024, 5, 20),
		Type:        core.Expense,
		Amount:      core.Money{Cents: 18000000},
		Category:    core.CategoryOilFilter,
		Description: "  cambio de aceite ",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-2", tx.ID)
	assert.Equal(t, "cambio de aceite", tx.Description)
	require.NotNil(t, tx.OdometerSnapshot)
	assert.Equal(t, 95000, *tx.OdometerSnapshot)

	txs, err := s.ListTransactions(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	_, err = s.RecordTransaction(ctx, core.Transaction{
		VehicleID: v.ID,
		Date:      core.NewDate(2024, 5, 20),
		Type:      core.Income,
		Amount:    core.Money{Cents: 1},
		Category:  core.CategoryBrakes,
	})
	assert.ErrorIs(t, err, core.ErrCategoryMismatch)

	_, err = s.RecordTransaction(ctx, core.Transaction{VehicleID: "nope"})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestEditAndDeleteTransaction(t *testing.T) {
	s := newTestFleet(t, memory.New())
	v := registerLogan(t, s)
	ctx := context.Background()

	tx, err := s.RecordTransaction(ctx, core.Transaction{
		VehicleID: v.ID,
		Date:      core.NewDate(2024, 5, 20),
		Type:      core.Income,
		Amount:    core.Money{Cents: 50000000},
		Category:  core.CategoryWeeklySettle,
	})
	require.NoError(t, err)

	amount := core.Money{Cents: 45000000}
	edited, err := s.EditTransaction(ctx, tx.ID, core.TransactionEdit{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, amount, edited.Amount)

	cat := core.CategoryBonus
	_, err = s.EditTransaction(ctx, tx.ID, core.TransactionEdit{Category: &cat})
	assert.ErrorIs(t, err, core.ErrImmutableField)

	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))
	txs, err := s.ListTransactions(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

// appendOnly hides the memory store's delete support.
type appendOnly struct{ repo.Repository }

func TestDeleteTransaction_Unsupported(t *testing.T) {
	s := newTestFleet(t, appendOnly{memory.New()})
	assert.ErrorIs(t, s.DeleteTransaction(context.Background(), "x"), ErrDeleteUnsupported)
}

func TestMaintenanceReport(t *testing.T) {
	s := newTestFleet(t, memory.New())
	v := registerLogan(t, s)
	ctx := context.Background()

	_, err := s.RecordTransaction(ctx, core.Transaction{
		VehicleID:        v.ID,
		Date:             core.NewDate(2024, 1, 10),
		Type:             core.Expense,
		Amount:           core.Money{Cents: 10000000},
		Category:         core.CategoryOilFilter,
		OdometerSnapshot: km(90000),
	})
	require.NoError(t, err)

	report, err := s.MaintenanceReport(ctx, v.ID, s.Today())
	require.NoError(t, err)

	assert.Equal(t, core.NewDate(2024, 6, 1), report.AsOf)
	require.Len(t, report.Maintenance, len(v.Rules))
	oil := report.Maintenance[0]
	assert.Equal(t, core.CategoryOilFilter, oil.Category)
	assert.Equal(t, LevelWarning, oil.Level)
	assert.Equal(t, 500, *oil.KmRemaining)
	assert.Len(t, report.Documents, 4)
	assert.Equal(t, int64(10000000), report.Balance.Expense.Cents)
	assert.Equal(t, LevelWarning, report.Level())

	_, err = s.MaintenanceReport(ctx, "missing", s.Today())
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestAlertsAndSummary(t *testing.T) {
	seed, err := memory.ReadSeed("../../data/seed.json")
	require.NoError(t, err)
	s := newTestFleet(t, memory.NewFromSeed(seed))
	ctx := context.Background()

	alerts, err := s.Alerts(ctx, core.NewDate(2025, 1, 15))
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	for i := 1; i < len(alerts); i++ {
		assert.LessOrEqual(t, alerts[i-1].Level.rank(), alerts[i].Level.rank())
	}

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Len(t, sum.Vehicles, len(seed.Vehicles))
	assert.Equal(t, sum.Income.Cents-sum.Expense.Cents, sum.Balance)
}

type failingRepo struct{ repo.Repository }

func (failingRepo) ListTransactions(context.Context) ([]core.Transaction, error) {
	return nil, errors.New("boom")
}

func TestSnapshot_PropagatesErrors(t *testing.T) {
	s := newTestFleet(t, failingRepo{memory.New()})
	_, err := s.Summary(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list transactions")
}

func TestFindByPlate(t *testing.T) {
	s := newTestFleet(t, memory.New())
	v := registerLogan(t, s)

	got, err := s.FindByPlate(context.Background(), "gft-982")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	_, err = s.FindByPlate(context.Background(), "zzz")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
