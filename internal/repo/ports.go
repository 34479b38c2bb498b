// Package repo defines the persistence ports shared by every storage
// adapter (memory, sqlite, Google Sheets, MongoDB).
package repo

import (
	"context"
	"errors"

	"flota/internal/core"
)

var (
	// ErrNotFound is returned when a vehicle or transaction id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePlate is returned when another vehicle already uses the plate.
	ErrDuplicatePlate = errors.New("plate already registered")
)

// Ports for outbound adapters.
type (
	VehicleStore interface {
		ListVehicles(ctx context.Context) ([]core.Vehicle, error)
		GetVehicle(ctx context.Context, id string) (core.Vehicle, error)
		// SaveVehicle inserts or replaces the vehicle with the same id.
		SaveVehicle(ctx context.Context, v core.Vehicle) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		ListTransactionsByVehicle(ctx context.Context, vehicleID string) ([]core.Transaction, error)
		// SaveTransaction inserts or replaces the transaction with the same id.
		SaveTransaction(ctx context.Context, t core.Transaction) error
	}

	// Repository is the full persistence port used by the fleet service.
	Repository interface {
		VehicleStore
		TransactionStore
	}

	// TransactionDeleter is implemented by adapters that support hard deletes.
	TransactionDeleter interface {
		DeleteTransaction(ctx context.Context, id string) error
	}

	// TransactionGetter is implemented by adapters that can fetch a single
	// transaction without listing.
	TransactionGetter interface {
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	}
)

// FindTransaction looks a transaction up by id, using TransactionGetter when
// the store implements it.
func FindTransaction(ctx context.Context, s TransactionStore, id string) (core.Transaction, error) {
	if g, ok := s.(TransactionGetter); ok {
		return g.GetTransaction(ctx, id)
	}
	all, err := s.ListTransactions(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, ErrNotFound
}
