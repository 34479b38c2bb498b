package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flota/internal/amqp"
	"flota/internal/core"
	"flota/internal/repo/memory"
	"flota/internal/storage"
)

func newSource(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	r, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "flota.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func seedSource(t *testing.T, src *storage.SQLiteRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, src.SaveVehicle(ctx, core.Vehicle{
		ID: "v1", Plate: "GFT-982", Brand: "Renault", Model: "Logan", Year: 2020,
		Rules: core.DefaultMaintenanceRules(),
	}))
	require.NoError(t, src.SaveTransaction(ctx, core.Transaction{
		ID: "t1", VehicleID: "v1", Date: core.NewDate(2024, 5, 1),
		Type: core.Expense, Amount: core.Money{Cents: 100}, Category: core.CategoryBrakes,
	}))
}

func TestHandleSyncMessage_Upserts(t *testing.T) {
	ctx := context.Background()
	src := newSource(t)
	seedSource(t, src)
	mirror := memory.New()
	w := NewSyncWorker(src, mirror, 10)

	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewSyncMessage(amqp.KindVehicle, "v1", 1)))
	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewSyncMessage(amqp.KindTransaction, "t1", 1)))

	v, err := mirror.GetVehicle(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "GFT-982", v.Plate)

	txs, err := mirror.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	pending, err := src.GetPendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleSyncMessage_MissingRecordIsSkipped(t *testing.T) {
	w := NewSyncWorker(newSource(t), memory.New(), 10)
	err := w.HandleSyncMessage(context.Background(), amqp.NewSyncMessage(amqp.KindTransaction, "gone", 3))
	assert.NoError(t, err)
}

func TestHandleSyncMessage_Delete(t *testing.T) {
	ctx := context.Background()
	mirror := memory.NewFromSeed(memory.Seed{Transactions: []core.Transaction{{ID: "t1", VehicleID: "v1"}}})
	w := NewSyncWorker(newSource(t), mirror, 10)

	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewDeleteMessage("t1")))
	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewDeleteMessage("t1")))

	txs, err := mirror.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

type brokenMirror struct{ *memory.Store }

func (brokenMirror) SaveTransaction(context.Context, core.Transaction) error {
	return errors.New("quota exceeded")
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	src := newSource(t)
	seedSource(t, src)

	w := NewSyncWorker(src, brokenMirror{memory.New()}, 10)
	synced, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced, "vehicle syncs, transaction fails")

	pending, err := src.GetPendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, amqp.KindTransaction, pending[0].Kind)

	// a working mirror drains the error row
	w = NewSyncWorker(src, memory.New(), 10)
	require.NoError(t, w.StartupSyncCheck(ctx))
	pending, err = src.GetPendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// racingMirror lands a newer local write while the mirror upsert is in flight.
type racingMirror struct {
	*memory.Store
	src *storage.SQLiteRepository
}

func (m racingMirror) SaveVehicle(ctx context.Context, v core.Vehicle) error {
	newer := v
	newer.Color = "Blanco"
	if err := m.src.SaveVehicle(ctx, newer); err != nil {
		return err
	}
	return m.Store.SaveVehicle(ctx, v)
}

func TestHandleSyncMessage_NewerWriteStaysPending(t *testing.T) {
	ctx := context.Background()
	src := newSource(t)
	seedSource(t, src)
	w := NewSyncWorker(src, racingMirror{Store: memory.New(), src: src}, 10)

	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewSyncMessage(amqp.KindVehicle, "v1", 1)))

	pending, err := src.GetPendingSync(ctx, 10)
	require.NoError(t, err)
	var vehicles []storage.PendingSync
	for _, p := range pending {
		if p.Kind == amqp.KindVehicle {
			vehicles = append(vehicles, p)
		}
	}
	require.Len(t, vehicles, 1)
	assert.Equal(t, int64(2), vehicles[0].Version)
}
