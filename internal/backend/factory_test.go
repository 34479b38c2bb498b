package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flota/internal/adapters"
	"flota/internal/config"
	"flota/internal/repo/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:         "sqlite",
		DataDir:             "/srv/flota",
		SQLiteDBPath:        "/srv/flota/flota.db",
		AMQPURL:             "amqp://localhost",
		GoogleSpreadsheetID: "sheet",
	}

	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, filepath.Join("/srv/flota", "seed.json"), cfg.SeedFile)
	assert.Equal(t, "/srv/flota/flota.db", cfg.SQLiteDBPath)
	assert.Equal(t, "amqp://localhost", cfg.AMQPURL)

	_, err = FromAppConfig(&config.Config{DataBackend: "csv"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory without seed", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"mongo", Config{Type: MongoBackend, MongoURI: "mongodb://localhost", MongoDB: "flota"}, false},
		{"mongo without db", Config{Type: MongoBackend, MongoURI: "mongodb://localhost"}, true},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id"}, true},
		{"sheets", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleServiceAccountJSON: "{}"}, false},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "sqlite", "sheets", "mongo"}, GetBackendTypeStrings())
}

func TestCreateBackend_Memory(t *testing.T) {
	f := NewFactory(discardLogger())

	res, err := f.CreateBackend(context.Background(), Config{
		Type:     MemoryBackend,
		SeedFile: "../../data/seed.json",
	})
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, res.Backend)
	assert.NoError(t, res.Close())

	vehicles, err := res.Backend.ListVehicles(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, vehicles)
}

func TestCreateBackend_MemoryMissingSeed(t *testing.T) {
	f := NewFactory(discardLogger())

	res, err := f.CreateBackend(context.Background(), Config{
		Type:     MemoryBackend,
		SeedFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.NoError(t, err)

	vehicles, err := res.Backend.ListVehicles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vehicles)
}

func TestCreateBackend_SQLiteWithoutAMQP(t *testing.T) {
	f := NewFactory(discardLogger())

	res, err := f.CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "flota.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close() })

	require.IsType(t, &adapters.SQLiteAdapter{}, res.Backend)
	vehicles, err := res.Backend.ListVehicles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vehicles)
}

func TestCreateBackend_Invalid(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)
}

func TestBackendResult_CloseWithoutCleanup(t *testing.T) {
	var res *BackendResult
	assert.NoError(t, res.Close())
	assert.NoError(t, (&BackendResult{}).Close())
}
