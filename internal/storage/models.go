package storage

import (
	"database/sql"
	"time"
)

// VehicleRow mirrors the vehicles table. Data holds the vehicle as JSON.
type VehicleRow struct {
	ID         string
	Plate      string
	Data       string
	Version    int64
	SyncStatus string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	ID               string
	VehicleID        string
	Date             string
	Type             string
	AmountCents      int64
	Category         string
	Description      string
	OdometerSnapshot sql.NullInt64
	Version          int64
	SyncStatus       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)
