package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries wraps the SQL used by the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const upsertVehicle = `
INSERT INTO vehicles (id, plate, data)
VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    plate       = excluded.plate,
    data        = excluded.data,
    version     = vehicles.version + 1,
    sync_status = 'pending',
    updated_at  = CURRENT_TIMESTAMP
RETURNING version`

type UpsertVehicleParams struct {
	ID    string
	Plate string
	Data  string
}

// UpsertVehicle stores the vehicle and returns its new version.
func (q *Queries) UpsertVehicle(ctx context.Context, arg UpsertVehicleParams) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, upsertVehicle, arg.ID, arg.Plate, arg.Data).Scan(&version)
	return version, err
}

const vehicleColumns = `id, plate, data, version, sync_status, created_at, updated_at`

func scanVehicle(row interface{ Scan(...any) error }) (VehicleRow, error) {
	var v VehicleRow
	err := row.Scan(&v.ID, &v.Plate, &v.Data, &v.Version, &v.SyncStatus, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

const getVehicle = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ?`

func (q *Queries) GetVehicle(ctx context.Context, id string) (VehicleRow, error) {
	return scanVehicle(q.db.QueryRowContext(ctx, getVehicle, id))
}

const listVehicles = `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY created_at, id`

func (q *Queries) ListVehicles(ctx context.Context) ([]VehicleRow, error) {
	rows, err := q.db.QueryContext(ctx, listVehicles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VehicleRow
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

const upsertTransaction = `
INSERT INTO transactions (id, vehicle_id, date, type, amount_cents, category, description, odometer_snapshot)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    date              = excluded.date,
    amount_cents      = excluded.amount_cents,
    description       = excluded.description,
    odometer_snapshot = excluded.odometer_snapshot,
    version           = transactions.version + 1,
    sync_status       = 'pending',
    updated_at        = CURRENT_TIMESTAMP
RETURNING version`

type UpsertTransactionParams struct {
	ID               string
	VehicleID        string
	Date             string
	Type             string
	AmountCents      int64
	Category         string
	Description      string
	OdometerSnapshot sql.NullInt64
}

// UpsertTransaction stores the transaction and returns its new version.
// Vehicle, type and category never change on conflict.
func (q *Queries) UpsertTransaction(ctx context.Context, arg UpsertTransactionParams) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, upsertTransaction,
		arg.ID, arg.VehicleID, arg.Date, arg.Type, arg.AmountCents,
		arg.Category, arg.Description, arg.OdometerSnapshot,
	).Scan(&version)
	return version, err
}

const transactionColumns = `id, vehicle_id, date, type, amount_cents, category, description, odometer_snapshot, version, sync_status, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (TransactionRow, error) {
	var t TransactionRow
	err := row.Scan(&t.ID, &t.VehicleID, &t.Date, &t.Type, &t.AmountCents, &t.Category,
		&t.Description, &t.OdometerSnapshot, &t.Version, &t.SyncStatus, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...any) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY date DESC, created_at DESC`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	return q.queryTransactions(ctx, listTransactions)
}

const listTransactionsByVehicle = `SELECT ` + transactionColumns + ` FROM transactions WHERE vehicle_id = ? ORDER BY date DESC, created_at DESC`

func (q *Queries) ListTransactionsByVehicle(ctx context.Context, vehicleID string) ([]TransactionRow, error) {
	return q.queryTransactions(ctx, listTransactionsByVehicle, vehicleID)
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getPendingSync = `
SELECT 'vehicle' AS kind, id, version FROM vehicles WHERE sync_status != 'synced'
UNION ALL
SELECT 'transaction' AS kind, id, version FROM transactions WHERE sync_status != 'synced'
LIMIT ?`

type PendingSyncRow struct {
	Kind    string
	ID      string
	Version int64
}

func (q *Queries) GetPendingSync(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSync, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncRow
	for rows.Next() {
		var p PendingSyncRow
		if err := rows.Scan(&p.Kind, &p.ID, &p.Version); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const markVehicleSynced = `UPDATE vehicles SET sync_status = 'synced' WHERE id = ? AND version = ?`

// MarkVehicleSynced reports whether the row still had the given version.
func (q *Queries) MarkVehicleSynced(ctx context.Context, id string, version int64) (bool, error) {
	return q.execAffected(ctx, markVehicleSynced, id, version)
}

const markTransactionSynced = `UPDATE transactions SET sync_status = 'synced' WHERE id = ? AND version = ?`

// MarkTransactionSynced reports whether the row still had the given version.
func (q *Queries) MarkTransactionSynced(ctx context.Context, id string, version int64) (bool, error) {
	return q.execAffected(ctx, markTransactionSynced, id, version)
}

func (q *Queries) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const setVehicleSyncStatus = `UPDATE vehicles SET sync_status = ? WHERE id = ?`

func (q *Queries) SetVehicleSyncStatus(ctx context.Context, id, status string) error {
	_, err := q.db.ExecContext(ctx, setVehicleSyncStatus, status, id)
	return err
}

const setTransactionSyncStatus = `UPDATE transactions SET sync_status = ? WHERE id = ?`

func (q *Queries) SetTransactionSyncStatus(ctx context.Context, id, status string) error {
	_, err := q.db.ExecContext(ctx, setTransactionSyncStatus, status, id)
	return err
}
