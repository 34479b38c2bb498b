package google

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"flota/internal/core"
)

var (
	vehicleHeader     = []any{"ID", "Placa", "Alias", "Marca", "Modelo", "Año", "Kilometraje", "Conductor", "Datos"}
	transactionHeader = []any{"ID", "Vehículo", "Fecha", "Tipo", "Monto", "Categoría", "Etiqueta", "Descripción", "Kilometraje"}
)

// vehicleRow renders a vehicle as a sheet row. The last column carries the
// full JSON so nothing is lost on the way back.
func vehicleRow(v core.Vehicle) ([]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode vehicle %s: %w", v.ID, err)
	}
	return []any{v.ID, v.Plate, v.Nickname, v.Brand, v.Model, v.Year, v.CurrentOdometer, v.Driver.Name, string(data)}, nil
}

func parseVehicleRow(row []any) (core.Vehicle, bool, error) {
	cols := toStrings(row)
	if len(cols) < len(vehicleHeader) || isHeader(cols) || cols[0] == "" {
		return core.Vehicle{}, false, nil
	}
	var v core.Vehicle
	if err := json.Unmarshal([]byte(cols[8]), &v); err != nil {
		return core.Vehicle{}, false, fmt.Errorf("vehicle %s: %w", cols[0], err)
	}
	v.ID = cols[0]
	return v, true, nil
}

func transactionRow(t core.Transaction) []any {
	odometer := ""
	if t.OdometerSnapshot != nil {
		odometer = strconv.Itoa(*t.OdometerSnapshot)
	}
	return []any{
		t.ID,
		t.VehicleID,
		t.Date.String(),
		string(t.Type),
		t.Amount.Decimal().String(),
		string(t.Category),
		t.Category.Label(),
		t.Description,
		odometer,
	}
}

func parseTransactionRow(row []any) (core.Transaction, bool, error) {
	cols := toStrings(row)
	if len(cols) < 6 || isHeader(cols) || cols[0] == "" {
		return core.Transaction{}, false, nil
	}
	date, err := core.ParseDate(cols[2])
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("transaction %s: %w", cols[0], err)
	}
	var amount core.Money
	if err := amount.UnmarshalJSON([]byte(strconv.Quote(cols[4]))); err != nil {
		return core.Transaction{}, false, fmt.Errorf("transaction %s: %w", cols[0], err)
	}
	category, err := core.ParseCategory(cols[5])
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("transaction %s: %w", cols[0], err)
	}
	t := core.Transaction{
		ID:          cols[0],
		VehicleID:   cols[1],
		Date:        date,
		Type:        core.TransactionType(strings.ToUpper(cols[3])),
		Amount:      amount,
		Category:    category,
		Description: safeGet(cols, 7),
	}
	if km, err := strconv.Atoi(safeGet(cols, 8)); err == nil {
		t.OdometerSnapshot = &km
	}
	return t, true, nil
}

func isHeader(cols []string) bool {
	return len(cols) > 0 && strings.EqualFold(cols[0], "ID")
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// columnLetter maps a zero-based column index to its A1 letter (0 -> A).
func columnLetter(i int) string {
	s := ""
	for i >= 0 {
		s = string(rune('A'+i%26)) + s
		i = i/26 - 1
	}
	return s
}
