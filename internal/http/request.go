// This file holds request decoding: JSON bodies, query parameters and the
// payload types of the write endpoints.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"flota/internal/core"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input that never reached validation.
var errBadRequest = errors.New("bad request")

// decodeJSON reads a single JSON value from the body into out. An empty
// body is an error unless allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		// Domain decoders (dates, categories) report their own sentinels.
		if errors.Is(err, core.ErrInvalidDate) || errors.Is(err, core.ErrUnknownCategory) || errors.Is(err, core.ErrInvalidAmount) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// dateParam parses the "date" query parameter, defaulting to today.
func dateParam(r *http.Request, today core.Date) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return today, nil
	}
	return core.ParseDate(v)
}

// sanitizeInput removes control characters except tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}

type odometerRequest struct {
	Km *int `json:"km"`
}

type overrideRequest struct {
	Date core.Date `json:"date"`
	Km   int       `json:"km"`
}

type suggestionsRequest struct {
	Suggestions []core.Suggestion `json:"suggestions"`
}

type transactionRequest struct {
	Date             core.Date            `json:"date"`
	Type             core.TransactionType `json:"type"`
	Amount           core.Money           `json:"amount"`
	Category         core.Category        `json:"category"`
	Description      string               `json:"description"`
	OdometerSnapshot *int                 `json:"odometerSnapshot"`
}

func (req transactionRequest) transaction(vehicleID string, today core.Date) core.Transaction {
	date := req.Date
	if date.IsEmpty() {
		date = today
	}
	return core.Transaction{
		VehicleID:        vehicleID,
		Date:             date,
		Type:             core.TransactionType(strings.ToUpper(string(req.Type))),
		Amount:           req.Amount,
		Category:         req.Category,
		Description:      sanitizeInput(req.Description),
		OdometerSnapshot: req.OdometerSnapshot,
	}
}

type transactionPatch struct {
	Date             *core.Date            `json:"date"`
	Amount           *core.Money           `json:"amount"`
	Description      *string               `json:"description"`
	OdometerSnapshot *int                  `json:"odometerSnapshot"`
	Type             *core.TransactionType `json:"type"`
	Category         *core.Category        `json:"category"`
}

func (p transactionPatch) edit() core.TransactionEdit {
	e := core.TransactionEdit{
		Date:             p.Date,
		Amount:           p.Amount,
		OdometerSnapshot: p.OdometerSnapshot,
		Type:             p.Type,
		Category:         p.Category,
	}
	if p.Description != nil {
		d := sanitizeInput(*p.Description)
		e.Description = &d
	}
	return e
}
