package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"flota/internal/core"
	"flota/internal/repo"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var (
	_ repo.Repository         = (*SQLiteRepository)(nil)
	_ repo.TransactionDeleter = (*SQLiteRepository)(nil)
	_ repo.TransactionGetter  = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListVehicles(ctx context.Context) ([]core.Vehicle, error) {
	rows, err := r.queries.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	out := make([]core.Vehicle, 0, len(rows))
	for _, row := range rows {
		v, err := decodeVehicle(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *SQLiteRepository) GetVehicle(ctx context.Context, id string) (core.Vehicle, error) {
	row, err := r.queries.GetVehicle(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Vehicle{}, repo.ErrNotFound
	}
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("get vehicle %s: %w", id, err)
	}
	return decodeVehicle(row)
}

// SaveVehicle upserts the vehicle and queues it for sync.
func (r *SQLiteRepository) SaveVehicle(ctx context.Context, v core.Vehicle) error {
	_, err := r.SaveVehicleVersion(ctx, v)
	return err
}

// SaveVehicleVersion is SaveVehicle returning the stored version.
func (r *SQLiteRepository) SaveVehicleVersion(ctx context.Context, v core.Vehicle) (int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode vehicle: %w", err)
	}
	version, err := r.queries.UpsertVehicle(ctx, UpsertVehicleParams{ID: v.ID, Plate: v.Plate, Data: string(data)})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", repo.ErrDuplicatePlate, v.Plate)
		}
		return 0, fmt.Errorf("save vehicle: %w", err)
	}

	slog.InfoContext(ctx, "Vehicle saved to SQLite",
		"id", v.ID,
		"plate", v.Plate,
		"version", version)
	return version, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return decodeTransactions(rows)
}

func (r *SQLiteRepository) ListTransactionsByVehicle(ctx context.Context, vehicleID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of %s: %w", vehicleID, err)
	}
	return decodeTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return decodeTransaction(row)
}

// SaveTransaction upserts the transaction and queues it for sync.
func (r *SQLiteRepository) SaveTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.SaveTransactionVersion(ctx, t)
	return err
}

// SaveTransactionVersion is SaveTransaction returning the stored version.
func (r *SQLiteRepository) SaveTransactionVersion(ctx context.Context, t core.Transaction) (int64, error) {
	params := UpsertTransactionParams{
		ID:          t.ID,
		VehicleID:   t.VehicleID,
		Date:        t.Date.String(),
		Type:        string(t.Type),
		AmountCents: t.Amount.Cents,
		Category:    string(t.Category),
		Description: t.Description,
	}
	if t.OdometerSnapshot != nil {
		params.OdometerSnapshot = sql.NullInt64{Int64: int64(*t.OdometerSnapshot), Valid: true}
	}
	version, err := r.queries.UpsertTransaction(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"vehicle_id", t.VehicleID,
		"category", t.Category,
		"amount_cents", t.Amount.Cents,
		"version", version)
	return version, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

// PendingSync is a record still waiting to be mirrored remotely.
type PendingSync struct {
	Kind    string
	ID      string
	Version int64
}

// GetPendingSync returns records that were never synced or failed to sync.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.queries.GetPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	out := make([]PendingSync, len(rows))
	for i, p := range rows {
		out[i] = PendingSync{Kind: p.Kind, ID: p.ID, Version: p.Version}
	}
	return out, nil
}

// MarkSynced marks a record as mirrored when it is still at version. A
// newer write leaves the record pending for the next pass.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, kind, id string, version int64) error {
	var (
		ok  bool
		err error
	)
	switch kind {
	case "vehicle":
		ok, err = r.queries.MarkVehicleSynced(ctx, id, version)
	case "transaction":
		ok, err = r.queries.MarkTransactionSynced(ctx, id, version)
	default:
		err = fmt.Errorf("unknown record kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("mark %s synced: %w", kind, err)
	}
	if !ok {
		slog.InfoContext(ctx, "Record changed while syncing, left pending", "kind", kind, "id", id, "version", version)
		return nil
	}
	slog.InfoContext(ctx, "Record marked as synced", "kind", kind, "id", id, "version", version)
	return nil
}

// MarkSyncError marks a record as failed so it is retried later.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, kind, id string) error {
	if err := r.setSyncStatus(ctx, kind, id, SyncError); err != nil {
		return fmt.Errorf("mark %s sync error: %w", kind, err)
	}
	slog.WarnContext(ctx, "Record marked with sync error", "kind", kind, "id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, kind, id, status string) error {
	switch kind {
	case "vehicle":
		return r.queries.SetVehicleSyncStatus(ctx, id, status)
	case "transaction":
		return r.queries.SetTransactionSyncStatus(ctx, id, status)
	}
	return fmt.Errorf("unknown record kind %q", kind)
}

func decodeVehicle(row VehicleRow) (core.Vehicle, error) {
	var v core.Vehicle
	if err := json.Unmarshal([]byte(row.Data), &v); err != nil {
		return core.Vehicle{}, fmt.Errorf("decode vehicle %s: %w", row.ID, err)
	}
	v.ID = row.ID
	return v, nil
}

func decodeTransactions(rows []TransactionRow) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := decodeTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeTransaction(row TransactionRow) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", row.ID, err)
	}
	t := core.Transaction{
		ID:          row.ID,
		VehicleID:   row.VehicleID,
		Date:        date,
		Type:        core.TransactionType(row.Type),
		Amount:      core.Money{Cents: row.AmountCents},
		Category:    core.Category(row.Category),
		Description: row.Description,
	}
	if row.OdometerSnapshot.Valid {
		km := int(row.OdometerSnapshot.Int64)
		t.OdometerSnapshot = &km
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
