package services

import "flota/internal/core"

// DocumentKind names a legal document tracked by expiry date.
type DocumentKind string

const (
	DocSOAT           DocumentKind = "soat"
	DocTechMechanical DocumentKind = "tech_mechanical"
	DocInsurance      DocumentKind = "insurance"
	DocTax            DocumentKind = "tax"
)

// documentWarningDays is the window before expiry that raises a warning.
const documentWarningDays = 30

func (k DocumentKind) Label() string {
	switch k {
	case DocSOAT:
		return "SOAT"
	case DocTechMechanical:
		return "Tecno Mecánica"
	case DocInsurance:
		return "Póliza Seguros"
	case DocTax:
		return "Impuestos"
	}
	return string(k)
}

// DocumentStatus is the verdict for one document of a vehicle.
type DocumentStatus struct {
	Document      DocumentKind `json:"document"`
	Expiry        *core.Date   `json:"expiry"`
	Level         Level        `json:"level"`
	Reason        Reason       `json:"reason"`
	DaysRemaining *int         `json:"daysRemaining,omitempty"`
}

// CheckDocuments evaluates the four document expiries of a vehicle.
func CheckDocuments(v *core.Vehicle, today core.Date) []DocumentStatus {
	docs := []struct {
		kind   DocumentKind
		expiry core.Date
	}{
		{DocSOAT, v.SOATExpiry},
		{DocTechMechanical, v.TechMechanicalExpiry},
		{DocInsurance, v.InsuranceExpiry},
		{DocTax, v.TaxExpiry},
	}
	out := make([]DocumentStatus, 0, len(docs))
	for _, d := range docs {
		out = append(out, checkDocument(d.kind, d.expiry, today))
	}
	return out
}

func checkDocument(kind DocumentKind, expiry, today core.Date) DocumentStatus {
	st := DocumentStatus{Document: kind, Expiry: expiry.Ptr()}
	if expiry.IsEmpty() {
		st.Level, st.Reason = LevelWarning, ReasonNoRecord
		return st
	}
	days := today.DaysUntil(expiry)
	st.DaysRemaining = &days
	switch {
	case days < 0:
		st.Level, st.Reason = LevelDanger, ReasonOverdue
	case days < documentWarningDays:
		st.Level, st.Reason = LevelWarning, ReasonDueSoon
	default:
		st.Level, st.Reason = LevelOK, ReasonValid
	}
	return st
}
