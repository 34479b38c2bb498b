package core

// VehicleBalance aggregates the transactions of one vehicle.
type VehicleBalance struct {
	VehicleID string `json:"vehicleId"`
	Plate     string `json:"plate"`
	Income    Money  `json:"income"`
	Expense   Money  `json:"expense"`
	Balance   int64  `json:"balanceCents"`
}

// FleetSummary is the financial overview of the whole fleet.
type FleetSummary struct {
	Vehicles []VehicleBalance `json:"vehicles"`
	Income   Money            `json:"income"`
	Expense  Money            `json:"expense"`
	Balance  int64            `json:"balanceCents"`
}

// Summarize computes per-vehicle balances in vehicle order. Transactions of
// unknown vehicles count only towards the fleet totals.
func Summarize(vehicles []Vehicle, txs []Transaction) FleetSummary {
	idx := make(map[string]int, len(vehicles))
	out := FleetSummary{Vehicles: make([]VehicleBalance, len(vehicles))}
	for i, v := range vehicles {
		idx[v.ID] = i
		out.Vehicles[i] = VehicleBalance{VehicleID: v.ID, Plate: v.Plate}
	}
	for _, t := range txs {
		i, known := idx[t.VehicleID]
		switch t.Type {
		case Income:
			out.Income = out.Income.Add(t.Amount)
			if known {
				out.Vehicles[i].Income = out.Vehicles[i].Income.Add(t.Amount)
			}
		case Expense:
			out.Expense = out.Expense.Add(t.Amount)
			if known {
				out.Vehicles[i].Expense = out.Vehicles[i].Expense.Add(t.Amount)
			}
		}
	}
	for i := range out.Vehicles {
		out.Vehicles[i].Balance = out.Vehicles[i].Income.Cents - out.Vehicles[i].Expense.Cents
	}
	out.Balance = out.Income.Cents - out.Expense.Cents
	return out
}
