package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"flota/internal/core"
	applog "flota/internal/log"
	"flota/internal/repo"
)

var (
	// ErrDuplicatePlate is returned when registering a plate that is already in the fleet.
	ErrDuplicatePlate = repo.ErrDuplicatePlate
	// ErrVehicleExists is returned when registering a vehicle with an id already in use.
	ErrVehicleExists = errors.New("vehicle already exists")
	// ErrRuleNotFound is returned when a vehicle has no rule for the category.
	ErrRuleNotFound = errors.New("maintenance rule not found")
	// ErrDeleteUnsupported is returned when the backend cannot delete transactions.
	ErrDeleteUnsupported = errors.New("transaction deletion not supported by backend")
)

// FleetService orchestrates vehicle and transaction operations over a repository.
type FleetService struct {
	repo   repo.Repository
	logger *applog.Logger
	now    func() time.Time
	newID  func() string
}

// Option customises a FleetService.
type Option func(*FleetService)

// WithClock overrides the wall clock used to derive "today".
func WithClock(now func() time.Time) Option {
	return func(s *FleetService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *applog.Logger) Option {
	return func(s *FleetService) { s.logger = l }
}

// WithIDGenerator overrides uuid generation. Used by tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *FleetService) { s.newID = gen }
}

func NewFleetService(r repo.Repository, opts ...Option) *FleetService {
	s := &FleetService{
		repo:  r,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentFleet)
	}
	return s
}

// Today is the calendar day used for status evaluation.
func (s *FleetService) Today() core.Date {
	return core.Today(s.now())
}

// Repository exposes the underlying store, e.g. for health checks.
func (s *FleetService) Repository() repo.Repository {
	return s.repo
}

// Snapshot is a consistent read of the whole fleet.
type Snapshot struct {
	Vehicles     []core.Vehicle
	Transactions []core.Transaction
}

// Snapshot loads vehicles and transactions concurrently.
func (s *FleetService) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vs, err := s.repo.ListVehicles(gctx)
		if err != nil {
			return fmt.Errorf("list vehicles: %w", err)
		}
		snap.Vehicles = vs
		return nil
	})
	g.Go(func() error {
		txs, err := s.repo.ListTransactions(gctx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		snap.Transactions = txs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *FleetService) ListVehicles(ctx context.Context) ([]core.Vehicle, error) {
	vs, err := s.repo.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return vs, nil
}

func (s *FleetService) GetVehicle(ctx context.Context, id string) (core.Vehicle, error) {
	v, err := s.repo.GetVehicle(ctx, id)
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("get vehicle %s: %w", id, err)
	}
	return v, nil
}

// FindByPlate returns the vehicle with the given plate, ignoring case.
func (s *FleetService) FindByPlate(ctx context.Context, plate string) (core.Vehicle, error) {
	vs, err := s.ListVehicles(ctx)
	if err != nil {
		return core.Vehicle{}, err
	}
	want := core.NormalizePlate(plate)
	for _, v := range vs {
		if core.NormalizePlate(v.Plate) == want {
			return v, nil
		}
	}
	return core.Vehicle{}, fmt.Errorf("plate %s: %w", want, repo.ErrNotFound)
}

// RegisterVehicle adds a vehicle to the fleet. Vehicles without rules get
// the default maintenance plan.
func (s *FleetService) RegisterVehicle(ctx context.Context, v core.Vehicle) (core.Vehicle, error) {
	if v.ID == "" {
		v.ID = s.newID()
	}
	v.Plate = core.NormalizePlate(v.Plate)
	if len(v.Rules) == 0 {
		v.Rules = core.DefaultMaintenanceRules()
	}
	v.LastOdometerUpdate = s.Today()
	if err := v.Validate(s.Today()); err != nil {
		return core.Vehicle{}, err
	}

	existing, err := s.ListVehicles(ctx)
	if err != nil {
		return core.Vehicle{}, err
	}
	for _, e := range existing {
		if e.ID == v.ID {
			return core.Vehicle{}, fmt.Errorf("%w: %s", ErrVehicleExists, v.ID)
		}
		if core.NormalizePlate(e.Plate) == v.Plate {
			return core.Vehicle{}, fmt.Errorf("%w: %s", ErrDuplicatePlate, v.Plate)
		}
	}

	if err := s.repo.SaveVehicle(ctx, v); err != nil {
		return core.Vehicle{}, fmt.Errorf("save vehicle: %w", err)
	}
	s.logger.InfoContext(ctx, "Vehicle registered",
		applog.FieldVehicleID, v.ID,
		applog.FieldPlate, v.Plate,
		"rules", len(v.Rules))
	return v, nil
}

// UpdateOdometer records a new reading. Lower readings are accepted and
// logged, since odometers get replaced and readings get mistyped.
func (s *FleetService) UpdateOdometer(ctx context.Context, id string, km int) (core.Vehicle, error) {
	if km < 0 {
		return core.Vehicle{}, core.ErrInvalidOdometer
	}
	return s.updateVehicle(ctx, id, func(v *core.Vehicle) error {
		if km < v.CurrentOdometer {
			s.logger.WarnContext(ctx, "Odometer reading decreased",
				applog.FieldVehicleID, v.ID,
				"previous_km", v.CurrentOdometer,
				applog.FieldOdometer, km)
		}
		v.CurrentOdometer = km
		v.LastOdometerUpdate = s.Today()
		return nil
	})
}

func (s *FleetService) UpdateDocuments(ctx context.Context, id string, docs core.Documents) (core.Vehicle, error) {
	return s.updateVehicle(ctx, id, func(v *core.Vehicle) error {
		v.Documents = docs
		return nil
	})
}

func (s *FleetService) UpdateDriver(ctx context.Context, id string, d core.Driver) (core.Vehicle, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.IDNumber = strings.TrimSpace(d.IDNumber)
	d.Phone = strings.TrimSpace(d.Phone)
	return s.updateVehicle(ctx, id, func(v *core.Vehicle) error {
		v.Driver = d
		return nil
	})
}

// SetManualOverride records a service done outside the transaction history.
// An empty date or a zero km keeps the previous override value.
func (s *FleetService) SetManualOverride(ctx context.Context, id string, c core.Category, date core.Date, km int) (core.Vehicle, error) {
	if km < 0 {
		return core.Vehicle{}, core.ErrInvalidOdometer
	}
	return s.updateVehicle(ctx, id, func(v *core.Vehicle) error {
		for i := range v.Rules {
			if v.Rules[i].Category == c {
				v.Rules[i].Override = v.Rules[i].Override.Merge(date, km)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrRuleNotFound, c)
	})
}

// ApplySuggestions merges suggested intervals into the vehicle's rules.
func (s *FleetService) ApplySuggestions(ctx context.Context, id string, suggestions []core.Suggestion) (core.Vehicle, error) {
	return s.updateVehicle(ctx, id, func(v *core.Vehicle) error {
		v.Rules = core.MergeSuggestions(v.Rules, suggestions)
		return nil
	})
}

func (s *FleetService) updateVehicle(ctx context.Context, id string, mutate func(*core.Vehicle) error) (core.Vehicle, error) {
	v, err := s.GetVehicle(ctx, id)
	if err != nil {
		return core.Vehicle{}, err
	}
	if err := mutate(&v); err != nil {
		return core.Vehicle{}, err
	}
	if err := v.Validate(s.Today()); err != nil {
		return core.Vehicle{}, err
	}
	if err := s.repo.SaveVehicle(ctx, v); err != nil {
		return core.Vehicle{}, fmt.Errorf("save vehicle: %w", err)
	}
	return v, nil
}

// ListTransactions returns the transactions of a vehicle, most recent first.
func (s *FleetService) ListTransactions(ctx context.Context, vehicleID string) ([]core.Transaction, error) {
	txs, err := s.repo.ListTransactionsByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	sortByDateDesc(txs)
	return txs, nil
}

// RecordTransaction stores a new income or expense. Without an odometer
// snapshot the vehicle's current reading is used.
func (s *FleetService) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if strings.TrimSpace(t.VehicleID) == "" {
		return core.Transaction{}, core.ErrMissingVehicle
	}
	v, err := s.GetVehicle(ctx, t.VehicleID)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = s.newID()
	}
	t.Description = strings.TrimSpace(t.Description)
	if t.OdometerSnapshot == nil {
		km := v.CurrentOdometer
		t.OdometerSnapshot = &km
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.repo.SaveTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	applog.NewStructuredLogger(s.logger).LogTransactionRecorded(ctx,
		t.VehicleID, t.ID, string(t.Type), string(t.Category), t.Amount.Cents)
	return t, nil
}

// EditTransaction corrects the date, amount, description or odometer of a
// transaction. Type and category are fixed.
func (s *FleetService) EditTransaction(ctx context.Context, id string, edit core.TransactionEdit) (core.Transaction, error) {
	t, err := repo.FindTransaction(ctx, s.repo, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	updated, err := t.ApplyEdit(edit)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.repo.SaveTransaction(ctx, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction edited", applog.FieldTxID, id)
	return updated, nil
}

func (s *FleetService) DeleteTransaction(ctx context.Context, id string) error {
	d, ok := s.repo.(repo.TransactionDeleter)
	if !ok {
		return ErrDeleteUnsupported
	}
	if err := d.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted", applog.FieldTxID, id)
	return nil
}

// VehicleReport is the full maintenance picture of one vehicle.
type VehicleReport struct {
	Vehicle     core.Vehicle        `json:"vehicle"`
	AsOf        core.Date           `json:"asOf"`
	Maintenance []MaintenanceStatus `json:"maintenance"`
	Documents   []DocumentStatus    `json:"documents"`
	Balance     core.VehicleBalance `json:"balance"`
}

// Level returns the most urgent level across maintenance and documents.
func (r VehicleReport) Level() Level {
	worst := LevelOK
	for _, m := range r.Maintenance {
		if m.Level.rank() < worst.rank() {
			worst = m.Level
		}
	}
	for _, d := range r.Documents {
		if d.Level.rank() < worst.rank() {
			worst = d.Level
		}
	}
	return worst
}

// MaintenanceReport evaluates every rule and document of a vehicle on today.
func (s *FleetService) MaintenanceReport(ctx context.Context, id string, today core.Date) (VehicleReport, error) {
	var (
		v   core.Vehicle
		txs []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		v, err = s.GetVehicle(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.repo.ListTransactionsByVehicle(gctx, id)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return VehicleReport{}, err
	}

	summary := core.Summarize([]core.Vehicle{v}, txs)
	return VehicleReport{
		Vehicle:     v,
		AsOf:        today,
		Maintenance: EvaluateVehicle(&v, txs, today),
		Documents:   CheckDocuments(&v, today),
		Balance:     summary.Vehicles[0],
	}, nil
}

// Alerts lists every non-OK status of the fleet on today.
func (s *FleetService) Alerts(ctx context.Context, today core.Date) ([]Alert, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return FleetAlerts(snap.Vehicles, snap.Transactions, today), nil
}

// Summary computes the financial overview of the fleet.
func (s *FleetService) Summary(ctx context.Context) (core.FleetSummary, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.FleetSummary{}, err
	}
	return core.Summarize(snap.Vehicles, snap.Transactions), nil
}

func sortByDateDesc(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
}
