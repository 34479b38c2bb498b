package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Driver struct {
		Name     string `json:"driverName"`
		IDNumber string `json:"driverId"` // Cédula
		Phone    string `json:"driverPhone"`
		Address  string `json:"driverAddress,omitempty"`
		PhotoURL string `json:"driverPhotoUrl,omitempty"`
	}

	// Documents holds the legal document expiry dates of a vehicle.
	Documents struct {
		SOATExpiry           Date `json:"soatExpiry"`
		TechMechanicalExpiry Date `json:"techMechanicalExpiry"`
		InsuranceExpiry      Date `json:"insuranceExpiry"`
		TaxExpiry            Date `json:"taxExpiry"`
	}

	Vehicle struct {
		ID       string `json:"id"`
		Plate    string `json:"plate"`
		Nickname string `json:"aka,omitempty"`
		Brand    string `json:"brand"`
		Model    string `json:"model"`
		Year     int    `json:"year"`
		Color    string `json:"color"`
		Driver
		PolicyNumber       string `json:"policyNumber,omitempty"`
		PolicyPaymentLink  string `json:"policyPaymentLink,omitempty"`
		CurrentOdometer    int    `json:"currentOdometer"`
		LastOdometerUpdate Date   `json:"lastOdometerUpdate"`
		Documents
		Rules []MaintenanceRule `json:"maintenanceRules"`
	}

	Transaction struct {
		ID               string          `json:"id"`
		VehicleID        string          `json:"vehicleId"`
		Date             Date            `json:"date"`
		Type             TransactionType `json:"type"`
		Amount           Money           `json:"amount"`
		Category         Category        `json:"category"`
		Description      string          `json:"description"`
		OdometerSnapshot *int            `json:"odometerSnapshot,omitempty"`
	}

	// TransactionEdit carries the fields that may be corrected after creation.
	// Nil fields are left untouched.
	TransactionEdit struct {
		Date             *Date
		Amount           *Money
		Description      *string
		OdometerSnapshot *int
		Type             *TransactionType
		Category         *Category
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrCategoryMismatch  = errors.New("category does not match transaction type")
	ErrImmutableField    = errors.New("field cannot change after creation")
	ErrMissingVehicle    = errors.New("missing vehicle id")
	ErrMissingID         = errors.New("missing id")
	ErrEmptyPlate        = errors.New("empty plate")
	ErrInvalidYear       = errors.New("invalid model year")
	ErrInvalidOdometer   = errors.New("odometer cannot be negative")
	ErrDuplicateRule     = errors.New("duplicate maintenance rule")
	ErrInvalidInterval   = errors.New("invalid maintenance interval")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(t.VehicleID) == "" {
		return ErrMissingVehicle
	}
	if err := t.Date.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLength
	}
	if !t.Category.IsValid() {
		return ErrUnknownCategory
	}
	if t.Category != CategoryOther && t.Category.IsIncome() != (t.Type == Income) {
		return ErrCategoryMismatch
	}
	if t.OdometerSnapshot != nil && *t.OdometerSnapshot < 0 {
		return ErrInvalidOdometer
	}
	return nil
}

// ApplyEdit returns a copy of t with the edit applied. Type and category
// are fixed at creation.
func (t Transaction) ApplyEdit(e TransactionEdit) (Transaction, error) {
	if e.Type != nil && *e.Type != t.Type {
		return t, fmt.Errorf("type: %w", ErrImmutableField)
	}
	if e.Category != nil && *e.Category != t.Category {
		return t, fmt.Errorf("category: %w", ErrImmutableField)
	}
	out := t
	if e.Date != nil {
		out.Date = *e.Date
	}
	if e.Amount != nil {
		out.Amount = *e.Amount
	}
	if e.Description != nil {
		out.Description = strings.TrimSpace(*e.Description)
	}
	if e.OdometerSnapshot != nil {
		km := *e.OdometerSnapshot
		out.OdometerSnapshot = &km
	}
	return out, out.Validate()
}

// Validate checks v against the calendar at asOf; model years up to next
// year are accepted.
func (v Vehicle) Validate(asOf Date) error {
	if strings.TrimSpace(v.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(v.Plate) == "" {
		return ErrEmptyPlate
	}
	if strings.TrimSpace(v.Brand) == "" {
		return errors.New("empty brand")
	}
	if strings.TrimSpace(v.Model) == "" {
		return errors.New("empty model")
	}
	if v.Year < 1950 || v.Year > asOf.Year()+1 {
		return ErrInvalidYear
	}
	if v.CurrentOdometer < 0 {
		return ErrInvalidOdometer
	}
	seen := make(map[Category]struct{}, len(v.Rules))
	for _, r := range v.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", r.Category, err)
		}
		if _, ok := seen[r.Category]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, r.Category)
		}
		seen[r.Category] = struct{}{}
	}
	return nil
}

// Rule returns the vehicle's rule for the category.
func (v Vehicle) Rule(c Category) (MaintenanceRule, bool) {
	for _, r := range v.Rules {
		if r.Category == c {
			return r, true
		}
	}
	return MaintenanceRule{}, false
}

// DisplayName prefers the nickname, falling back to the plate.
func (v Vehicle) DisplayName() string {
	if n := strings.TrimSpace(v.Nickname); n != "" {
		return fmt.Sprintf("%s (%s)", n, v.Plate)
	}
	return v.Plate
}

// NormalizePlate upper-cases and trims a plate.
func NormalizePlate(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}
