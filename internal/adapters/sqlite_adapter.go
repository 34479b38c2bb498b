package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"flota/internal/amqp"
	"flota/internal/core"
	"flota/internal/repo"
	"flota/internal/storage"
)

// Ensure interface conformance
var (
	_ repo.Repository         = (*SQLiteAdapter)(nil)
	_ repo.TransactionDeleter = (*SQLiteAdapter)(nil)
	_ repo.TransactionGetter  = (*SQLiteAdapter)(nil)
)

// SyncPublisher announces changed records to the sync worker.
type SyncPublisher interface {
	PublishSync(ctx context.Context, kind, id string, version int64) error
	PublishDelete(ctx context.Context, id string) error
}

// SQLiteAdapter stores records in SQLite and publishes a sync message for
// every write, so the worker can mirror them to Google Sheets. Publishing
// is best effort: the write has already succeeded locally.
type SQLiteAdapter struct {
	storage   *storage.SQLiteRepository
	publisher SyncPublisher
}

// NewSQLiteAdapter wraps storage. publisher may be nil to disable sync.
func NewSQLiteAdapter(storage *storage.SQLiteRepository, publisher SyncPublisher) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage:   storage,
		publisher: publisher,
	}
}

func (a *SQLiteAdapter) ListVehicles(ctx context.Context) ([]core.Vehicle, error) {
	return a.storage.ListVehicles(ctx)
}

func (a *SQLiteAdapter) GetVehicle(ctx context.Context, id string) (core.Vehicle, error) {
	return a.storage.GetVehicle(ctx, id)
}

func (a *SQLiteAdapter) SaveVehicle(ctx context.Context, v core.Vehicle) error {
	version, err := a.storage.SaveVehicleVersion(ctx, v)
	if err != nil {
		return err
	}
	a.publish(ctx, amqp.KindVehicle, v.ID, version)
	return nil
}

func (a *SQLiteAdapter) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return a.storage.ListTransactions(ctx)
}

func (a *SQLiteAdapter) ListTransactionsByVehicle(ctx context.Context, vehicleID string) ([]core.Transaction, error) {
	return a.storage.ListTransactionsByVehicle(ctx, vehicleID)
}

func (a *SQLiteAdapter) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return a.storage.GetTransaction(ctx, id)
}

func (a *SQLiteAdapter) SaveTransaction(ctx context.Context, t core.Transaction) error {
	version, err := a.storage.SaveTransactionVersion(ctx, t)
	if err != nil {
		return err
	}
	a.publish(ctx, amqp.KindTransaction, t.ID, version)
	return nil
}

func (a *SQLiteAdapter) DeleteTransaction(ctx context.Context, id string) error {
	if err := a.storage.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	if a.publisher == nil {
		return nil
	}
	if err := a.publisher.PublishDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
	}
	return nil
}

// Ping reports whether SQLite is reachable.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}

func (a *SQLiteAdapter) publish(ctx context.Context, kind, id string, version int64) {
	if a.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping sync message", "kind", kind, "id", id)
		return
	}
	if err := a.publisher.PublishSync(ctx, kind, id, version); err != nil {
		// The sync worker picks pending rows up again on startup.
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"kind", kind,
			"id", id,
			"version", version,
			"error", err)
	}
}

// Close closes both storage and the publisher when it holds a connection.
func (a *SQLiteAdapter) Close() error {
	var errs []error

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := a.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close sqlite adapter: %w", err)
	}
	return nil
}
