package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"flota/internal/amqp"
	"flota/internal/core"
	"flota/internal/repo"
	"flota/internal/storage"
)

// Source is the local store records are mirrored from.
type Source interface {
	GetVehicle(ctx context.Context, id string) (core.Vehicle, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	MarkSynced(ctx context.Context, kind, id string, version int64) error
	MarkSyncError(ctx context.Context, kind, id string) error
}

// Mirror is the remote store records are mirrored to.
type Mirror interface {
	SaveVehicle(ctx context.Context, v core.Vehicle) error
	SaveTransaction(ctx context.Context, t core.Transaction) error
}

// SyncWorker mirrors vehicles and transactions from SQLite to Google Sheets
type SyncWorker struct {
	source    Source
	mirror    Mirror
	batchSize int
}

func NewSyncWorker(source Source, mirror Mirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"kind", msg.Kind,
		"op", msg.Op,
		"id", msg.ID,
		"version", msg.Version)

	if msg.Op == amqp.OpDelete {
		return w.deleteTransaction(ctx, msg.ID)
	}
	return w.syncRecord(ctx, msg.Kind, msg.ID, msg.Version)
}

// syncRecord mirrors the current state of a record and marks it synced
// only if it is still at version.
func (w *SyncWorker) syncRecord(ctx context.Context, kind, id string, version int64) error {
	var err error
	switch kind {
	case amqp.KindVehicle:
		var v core.Vehicle
		if v, err = w.source.GetVehicle(ctx, id); err == nil {
			err = w.mirror.SaveVehicle(ctx, v)
		}
	case amqp.KindTransaction:
		var t core.Transaction
		if t, err = w.source.GetTransaction(ctx, id); err == nil {
			err = w.mirror.SaveTransaction(ctx, t)
		}
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}

	if errors.Is(err, repo.ErrNotFound) {
		// Deleted locally before the message was handled.
		slog.WarnContext(ctx, "Record no longer exists, skipping", "kind", kind, "id", id)
		return nil
	}
	if err != nil {
		if markErr := w.source.MarkSyncError(ctx, kind, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "kind", kind, "id", id, "error", markErr)
		}
		return fmt.Errorf("sync %s %s: %w", kind, id, err)
	}

	if err := w.source.MarkSynced(ctx, kind, id, version); err != nil {
		// The mirror write succeeded; a duplicate upsert later is harmless.
		slog.ErrorContext(ctx, "Failed to mark as synced", "kind", kind, "id", id, "error", err)
	}
	slog.InfoContext(ctx, "Successfully synced record", "kind", kind, "id", id)
	return nil
}

func (w *SyncWorker) deleteTransaction(ctx context.Context, id string) error {
	deleter, ok := w.mirror.(repo.TransactionDeleter)
	if !ok {
		slog.WarnContext(ctx, "Mirror cannot delete transactions, skipping", "id", id)
		return nil
	}
	err := deleter.DeleteTransaction(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Successfully deleted transaction from mirror", "id", id)
	return nil
}

// ProcessPending syncs records that were never synced or failed before.
// This is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced int, err error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger pending pass when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.source.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.syncRecord(ctx, p.Kind, p.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending record", "kind", p.Kind, "id", p.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}
