package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flota/internal/core"
)

func km(n int) *int { return &n }

func fixture() ([]core.Vehicle, []core.Transaction) {
	vehicles := []core.Vehicle{
		{
			ID: "v1", Plate: "GFT-982", Brand: "Renault", Model: "Logan", Year: 2020,
			Driver:    core.Driver{Name: "Carlos Pérez"},
			Documents: core.Documents{SOATExpiry: core.NewDate(2025, 3, 1)},
		},
		{ID: "v2", Plate: "KLM-123", Brand: "Chevrolet", Model: "Spark", Year: 2018},
	}
	txs := []core.Transaction{
		{ID: "t2", VehicleID: "v1", Date: core.NewDate(2024, 5, 20), Type: core.Expense, Amount: core.Money{Cents: 18000050}, Category: core.CategoryOilFilter, Description: "Cambio, con filtro", OdometerSnapshot: km(94000)},
		{ID: "t1", VehicleID: "v1", Date: core.NewDate(2024, 5, 1), Type: core.Income, Amount: core.Money{Cents: 50000000}, Category: core.CategoryWeeklySettle},
		{ID: "t3", VehicleID: "v2", Date: core.NewDate(2024, 5, 3), Type: core.Expense, Amount: core.Money{Cents: 1000000}, Category: core.CategoryBrakes},
	}
	return vehicles, txs
}

func TestGlobalSummary(t *testing.T) {
	vehicles, txs := fixture()

	tables := GlobalSummary(vehicles, txs)
	require.Len(t, tables, 2)

	summary := tables[0]
	assert.Equal(t, SummaryTitle, summary.Title)
	assert.Equal(t, []string{"GFT-982", "500000", "180000.5", "319999.5"}, summary.Rows[1])
	assert.Equal(t, []string{"KLM-123", "0", "10000", "-10000"}, summary.Rows[2])

	list := tables[1]
	assert.Equal(t, VehiclesTitle, list.Title)
	assert.Equal(t, []string{"GFT-982", "Renault", "Logan", "2020", "Carlos Pérez", "2025-03-01", ""}, list.Rows[1])
}

func TestVehicleHistory(t *testing.T) {
	vehicles, txs := fixture()

	table := VehicleHistory(vehicles[0], txs)
	assert.Equal(t, "Historial GFT-982", table.Title)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"2024-05-01", "Ingreso", "Liquidación Semanal", "", "500000", "-"}, table.Rows[1])
	assert.Equal(t, []string{"2024-05-20", "Gasto", "Aceite y Filtros", "Cambio, con filtro", "180000.5", "94000"}, table.Rows[2])
}

func TestFormulaTextIsQuoted(t *testing.T) {
	v := core.Vehicle{ID: "v1", Plate: "GFT-982", Brand: "@Renault", Model: "Logan", Driver: core.Driver{Name: "+57 300"}}
	txs := []core.Transaction{{
		VehicleID:   "v1",
		Date:        core.NewDate(2024, 1, 1),
		Type:        core.Expense,
		Amount:      core.Money{Cents: 100},
		Category:    core.CategoryOilFilter,
		Description: `=HYPERLINK("http://evil.example","click")`,
	}}

	history := VehicleHistory(v, txs)
	assert.Equal(t, `'=HYPERLINK("http://evil.example","click")`, history.Rows[1][3])

	list := GlobalSummary([]core.Vehicle{v}, nil)[1]
	assert.Equal(t, "'@Renault", list.Rows[1][1])
	assert.Equal(t, "'+57 300", list.Rows[1][4])

	// negative balances stay numeric
	summary := GlobalSummary([]core.Vehicle{v}, txs)[0]
	assert.Equal(t, "-1", summary.Rows[1][3])

	w := &recordingWriter{}
	require.NoError(t, Export(context.Background(), w, history))
	assert.Equal(t, `'=HYPERLINK("http://evil.example","click")`, w.tables[history.Title][1][3])

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, history))
	assert.NotContains(t, buf.String(), `,"=HYPERLINK`)
	assert.Contains(t, buf.String(), `"'=HYPERLINK(""http://evil.example"",""click"")"`)
}

func TestWriteCSV(t *testing.T) {
	vehicles, txs := fixture()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, VehicleHistory(vehicles[0], txs)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Fecha,Tipo,Categoría,Descripción,Monto,Odómetro", lines[0])
	assert.Equal(t, `2024-05-20,Gasto,Aceite y Filtros,"Cambio, con filtro",180000.5,94000`, lines[2])

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, GlobalSummary(vehicles, txs)...))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, SummaryTitle+"\n"))
	assert.Contains(t, out, "\n\n"+VehiclesTitle+"\n")
}

type recordingWriter struct {
	mu     sync.Mutex
	tables map[string][][]string
	fail   string
}

func (w *recordingWriter) WriteTable(_ context.Context, title string, rows [][]string) error {
	if title == w.fail {
		return errors.New("permission denied")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tables == nil {
		w.tables = map[string][][]string{}
	}
	w.tables[title] = rows
	return nil
}

func TestExport(t *testing.T) {
	vehicles, txs := fixture()
	w := &recordingWriter{}

	tables := append(GlobalSummary(vehicles, txs), VehicleHistory(vehicles[1], txs))
	require.NoError(t, Export(context.Background(), w, tables...))
	assert.Len(t, w.tables, 3)
	assert.Contains(t, w.tables, "Historial KLM-123")

	w = &recordingWriter{fail: VehiclesTitle}
	err := Export(context.Background(), w, tables...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export Vehículos")
}
