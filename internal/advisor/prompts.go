package advisor

import (
	"encoding/json"
	"fmt"

	"flota/internal/core"
)

func maintenancePrompt(brand, model string, year, km int) string {
	return fmt.Sprintf(`Act as an expert automotive mechanic and fleet manager in Colombia.
I have a vehicle: %s %s year %d with %d km.

Suggest a maintenance schedule optimized for this model in Colombian terrain
(potholes, mountains, traffic). Estimate intervals for:
- Change of Oil and Filters
- Brake Pads (Frenos)
- Timing Belt or Chain (Correa/Cadenilla, say which one it has)
- Suspension
- Spark Plugs (Bujías)
- Tires (Llantas)

Return a JSON array of objects with the keys "type" (string), "intervalKm"
(number or null), "intervalMonths" (number or null) and "description" (string).
IMPORTANT: intervalKm must be the full number (5000, NOT 5).`, brand, model, year, km)
}

func advicePrompt(v core.Vehicle, totals core.VehicleBalance, count int) string {
	return fmt.Sprintf(`Contexto: Soy dueño de un negocio de transporte en Colombia. Quiero optimizar la rentabilidad.

Datos del Vehículo:
- Modelo: %s %s %d.
- Kilometraje: %d km.
- Placa: %s.

Datos Financieros (Históricos):
- Total Ingresos: %s
- Total Gastos Mantenimiento: %s
- Balance: %s
- Cantidad de registros: %d

Actúa como un analista experto de flotas y mecánico. Dame 4 consejos MUY ESPECÍFICOS basados en los datos anteriores:
1. Mantenimiento preventivo según el kilometraje actual.
2. Rentabilidad: si el gasto es alto comparado con el ingreso. Si hay pocos ingresos registrados, advierte sobre la subutilización.
3. Optimización de combustible o llantas para este modelo.

No inventes datos. Si no hay suficientes transacciones, recomienda registrar más datos.
Responde un JSON array de objetos con "title", "category" (Mecánica, Financiera, Seguridad o Eficiencia),
"priority" (Alta, Media o Baja) y "content".`,
		v.Brand, v.Model, v.Year, v.CurrentOdometer, v.Plate,
		core.FormatCOP(totals.Income.Cents),
		core.FormatCOP(totals.Expense.Cents),
		core.FormatCOP(totals.Balance),
		count)
}

type fleetRow struct {
	Plate string `json:"plate"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	Km    int    `json:"km"`
}

func fleetPrompt(vehicles []core.Vehicle, sum core.FleetSummary, count int) string {
	rows := make([]fleetRow, len(vehicles))
	for i, v := range vehicles {
		rows[i] = fleetRow{Plate: v.Plate, Model: v.Model, Year: v.Year, Km: v.CurrentOdometer}
	}
	fleet, _ := json.Marshal(rows)

	return fmt.Sprintf(`Actúa como un Consultor de Negocios de Transporte en Colombia. Analiza mi flota de %d vehículos.

Datos de la flota:
%s

Datos financieros:
- Total Transacciones: %d
- Ingresos: %s
- Gastos: %s
- Balance: %s

1. ¿Cómo está la salud general del negocio?
2. Identifica patrones de rentabilidad.
3. Compara los vehículos (cuál da más problemas vs cuál rinde más).

Sé directo, profesional y estratégico. Responde un JSON object con "summary",
"profitabilityInsight", "bestVehicle", "worstVehicle" y "strategicAdvice".`,
		len(vehicles), fleet, count,
		core.FormatCOP(sum.Income.Cents),
		core.FormatCOP(sum.Expense.Cents),
		core.FormatCOP(sum.Balance))
}
