// Package report builds the fleet spreadsheets: the global financial
// summary, the vehicle list, and the per-vehicle history. Tables are
// written as CSV or pushed to Google Sheets tabs.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"flota/internal/core"
)

const (
	SummaryTitle  = "Resumen Financiero"
	VehiclesTitle = "Vehículos"
)

// Table is a titled grid whose first row is the header.
type Table struct {
	Title string
	Rows  [][]string
}

// TableWriter stores a table as a named tab, replacing any previous one.
type TableWriter interface {
	WriteTable(ctx context.Context, title string, rows [][]string) error
}

// HistoryTitle is the tab title of a vehicle history.
func HistoryTitle(plate string) string {
	return "Historial " + plate
}

// GlobalSummary returns the financial summary and the vehicle list, in
// that order.
func GlobalSummary(vehicles []core.Vehicle, txs []core.Transaction) []Table {
	sum := core.Summarize(vehicles, txs)

	summary := Table{
		Title: SummaryTitle,
		Rows:  [][]string{{"Placa", "Ingresos", "Egresos", "Balance"}},
	}
	for _, b := range sum.Vehicles {
		summary.Rows = append(summary.Rows, []string{
			text(b.Plate),
			amount(b.Income.Cents),
			amount(b.Expense.Cents),
			amount(b.Balance),
		})
	}

	list := Table{
		Title: VehiclesTitle,
		Rows:  [][]string{{"Placa", "Marca", "Modelo", "Año", "Conductor", "Vence SOAT", "Vence Tecno"}},
	}
	for _, v := range vehicles {
		list.Rows = append(list.Rows, []string{
			text(v.Plate),
			text(v.Brand),
			text(v.Model),
			strconv.Itoa(v.Year),
			text(v.Driver.Name),
			v.SOATExpiry.String(),
			v.TechMechanicalExpiry.String(),
		})
	}

	return []Table{summary, list}
}

// VehicleHistory lists the transactions of v, oldest first.
func VehicleHistory(v core.Vehicle, txs []core.Transaction) Table {
	var own []core.Transaction
	for _, t := range txs {
		if t.VehicleID == v.ID {
			own = append(own, t)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		return own[i].Date.Before(own[j].Date)
	})

	table := Table{
		Title: HistoryTitle(v.Plate),
		Rows:  [][]string{{"Fecha", "Tipo", "Categoría", "Descripción", "Monto", "Odómetro"}},
	}
	for _, t := range own {
		kind := "Gasto"
		if t.Type == core.Income {
			kind = "Ingreso"
		}
		odometer := "-"
		if t.OdometerSnapshot != nil {
			odometer = strconv.Itoa(*t.OdometerSnapshot)
		}
		table.Rows = append(table.Rows, []string{
			t.Date.String(),
			kind,
			t.Category.Label(),
			text(t.Description),
			amount(t.Amount.Cents),
			odometer,
		})
	}
	return table
}

// text quotes user-typed cells that a spreadsheet would read as a formula.
// Both the CSV files and the Sheets tabs (written as USER_ENTERED) go
// through it.
func text(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func amount(cents int64) string {
	return core.Money{Cents: cents}.Decimal().String()
}

// WriteCSV writes the tables one after another, each preceded by its
// title and separated by an empty line.
func WriteCSV(w io.Writer, tables ...Table) error {
	cw := csv.NewWriter(w)
	for i, t := range tables {
		if len(tables) > 1 {
			if i > 0 {
				if err := cw.Write([]string{""}); err != nil {
					return err
				}
			}
			if err := cw.Write([]string{t.Title}); err != nil {
				return err
			}
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return fmt.Errorf("write %s: %w", t.Title, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export pushes every table to its own tab concurrently.
func Export(ctx context.Context, w TableWriter, tables ...Table) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, t := range tables {
		g.Go(func() error {
			if err := w.WriteTable(ctx, t.Title, t.Rows); err != nil {
				return fmt.Errorf("export %s: %w", t.Title, err)
			}
			return nil
		})
	}
	return g.Wait()
}
