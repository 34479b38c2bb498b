package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"flota/internal/core"
	"flota/internal/repo"
)

// Ensure interface conformance
var (
	_ repo.Repository         = (*Store)(nil)
	_ repo.TransactionDeleter = (*Store)(nil)
	_ repo.TransactionGetter  = (*Store)(nil)
)

// Seed is the on-disk shape of data/seed.json.
type Seed struct {
	Vehicles     []core.Vehicle     `json:"vehicles"`
	Transactions []core.Transaction `json:"transactions"`
}

// Store keeps vehicles and transactions in insertion order.
type Store struct {
	mu       sync.Mutex
	vehicles []core.Vehicle
	txs      []core.Transaction
}

func New() *Store {
	return &Store{}
}

// NewFromSeed returns a store holding a copy of the seed.
func NewFromSeed(seed Seed) *Store {
	s := New()
	for _, v := range seed.Vehicles {
		s.vehicles = append(s.vehicles, cloneVehicle(v))
	}
	s.txs = append(s.txs, seed.Transactions...)
	return s
}

// NewFromFile loads a seed file. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	seed, err := ReadSeed(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	return NewFromSeed(seed), nil
}

// ReadSeed decodes a seed file.
func ReadSeed(path string) (Seed, error) {
	var seed Seed
	b, err := os.ReadFile(path)
	if err != nil {
		return seed, err
	}
	if err := json.Unmarshal(b, &seed); err != nil {
		return seed, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return seed, nil
}

func (s *Store) ListVehicles(_ context.Context) ([]core.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Vehicle, len(s.vehicles))
	for i, v := range s.vehicles {
		out[i] = cloneVehicle(v)
	}
	return out, nil
}

func (s *Store) GetVehicle(_ context.Context, id string) (core.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if v.ID == id {
			return cloneVehicle(v), nil
		}
	}
	return core.Vehicle{}, repo.ErrNotFound
}

// SaveVehicle upserts by id.
func (s *Store) SaveVehicle(_ context.Context, v core.Vehicle) error {
	if v.ID == "" {
		return core.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.vehicles {
		if s.vehicles[i].ID == v.ID {
			s.vehicles[i] = cloneVehicle(v)
			return nil
		}
	}
	s.vehicles = append(s.vehicles, cloneVehicle(v))
	return nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

func (s *Store) ListTransactionsByVehicle(_ context.Context, vehicleID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if t.VehicleID == vehicleID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, repo.ErrNotFound
}

// SaveTransaction upserts by id.
func (s *Store) SaveTransaction(_ context.Context, t core.Transaction) error {
	if t.ID == "" {
		return core.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].ID == t.ID {
			s.txs[i] = t
			return nil
		}
	}
	s.txs = append(s.txs, t)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

// Snapshot returns a copy of everything held, in seed file shape.
func (s *Store) Snapshot() Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	seed := Seed{Transactions: append([]core.Transaction(nil), s.txs...)}
	for _, v := range s.vehicles {
		seed.Vehicles = append(seed.Vehicles, cloneVehicle(v))
	}
	return seed
}

// cloneVehicle copies the rule slice so callers cannot alias stored state.
func cloneVehicle(v core.Vehicle) core.Vehicle {
	v.Rules = append([]core.MaintenanceRule(nil), v.Rules...)
	return v
}
