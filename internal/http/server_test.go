package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"flota/internal/advisor"
	"flota/internal/core"
	applog "flota/internal/log"
	"flota/internal/middleware/ratelimit"
	"flota/internal/repo/memory"
	"flota/internal/services"
)

const loganID = "renault-logan-001"

type fakeAdvisor struct {
	suggestions []core.Suggestion
	err         error
	calls       int
}

func (f *fakeAdvisor) SuggestMaintenance(context.Context, string, string, int, int) ([]core.Suggestion, error) {
	f.calls++
	return f.suggestions, f.err
}

func (f *fakeAdvisor) VehicleAdvice(_ context.Context, v core.Vehicle, _ []core.Transaction) ([]advisor.Advice, error) {
	f.calls++
	return []advisor.Advice{{Title: "Revisar frenos " + v.Plate, Category: "Mantenimiento", Priority: advisor.PriorityHigh}}, f.err
}

func (f *fakeAdvisor) AnalyzeFleet(context.Context, []core.Vehicle, []core.Transaction) (*advisor.FleetAnalysis, error) {
	f.calls++
	return &advisor.FleetAnalysis{Summary: "ok", BestVehicle: "GFT-982"}, f.err
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store, err := memory.NewFromFile("../../data/seed.json")
	require.NoError(t, err)
	fleet := services.NewFleetService(store,
		services.WithClock(func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }),
		services.WithLogger(applog.Discard()),
	)
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	s := NewServer(":0", fleet, opts)
	t.Cleanup(func() { s.limiter.Stop() })
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestVehicles_ListGetAndFind(t *testing.T) {
	s := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/api/vehicles", "")
	require.Equal(t, http.StatusOK, rr.Code)
	vehicles := decodeBody[[]core.Vehicle](t, rr)
	assert.Len(t, vehicles, 2)

	rr = do(t, s, http.MethodGet, "/api/vehicles?plate=gft-982", "")
	require.Equal(t, http.StatusOK, rr.Code)
	found := decodeBody[[]core.Vehicle](t, rr)
	require.Len(t, found, 1)
	assert.Equal(t, loganID, found[0].ID)

	rr = do(t, s, http.MethodGet, "/api/vehicles/"+loganID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "GFT-982", decodeBody[core.Vehicle](t, rr).Plate)

	rr = do(t, s, http.MethodGet, "/api/vehicles/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rr).Error, "not found")
}

func TestVehicles_Register(t *testing.T) {
	s := newTestServer(t, Options{})
	body := `{"plate":"abc-123","brand":"Chevrolet","model":"Spark","year":2019,"currentOdometer":40000}`

	rr := do(t, s, http.MethodPost, "/api/vehicles", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	v := decodeBody[core.Vehicle](t, rr)
	assert.Equal(t, "ABC-123", v.Plate)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "/api/vehicles/"+v.ID, rr.Header().Get("Location"))
	assert.NotEmpty(t, v.Rules)

	rr = do(t, s, http.MethodPost, "/api/vehicles", body)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, s, http.MethodPost, "/api/vehicles", `{"plate":"","brand":"x","model":"y","year":2019}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/api/vehicles", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/api/vehicles", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVehicles_Updates(t *testing.T) {
	s := newTestServer(t, Options{})
	base := "/api/vehicles/" + loganID

	rr := do(t, s, http.MethodPut, base+"/odometer", `{"km":97000}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 97000, decodeBody[core.Vehicle](t, rr).CurrentOdometer)

	rr = do(t, s, http.MethodPut, base+"/odometer", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPut, base+"/odometer", `{"km":-5}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPut, base+"/documents", `{"soatExpiry":"2026-01-01"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, core.NewDate(2026, 1, 1), decodeBody[core.Vehicle](t, rr).SOATExpiry)

	rr = do(t, s, http.MethodPut, base+"/documents", `{"soatExpiry":"01/01/2026"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPut, base+"/driver", `{"driverName":"  Ana\u0007 ","driverPhone":"311"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Ana", decodeBody[core.Vehicle](t, rr).Driver.Name)
}

func TestVehicles_Override(t *testing.T) {
	s := newTestServer(t, Options{})
	base := "/api/vehicles/" + loganID + "/rules/"

	rr := do(t, s, http.MethodPut, base+"oil_filter/override", `{"date":"2025-01-05","km":94000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rule, ok := decodeBody[core.Vehicle](t, rr).Rule(core.CategoryOilFilter)
	require.True(t, ok)
	assert.Equal(t, 94000, rule.Override.Km)

	rr = do(t, s, http.MethodPut, base+"nope/override", `{"km":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPut, base+"soat/override", `{"km":1}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMaintenanceReport(t *testing.T) {
	s := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/api/vehicles/"+loganID+"/maintenance?date=2025-01-15", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		AsOf        string `json:"asOf"`
		Level       string `json:"level"`
		Maintenance []struct {
			Category string `json:"category"`
			Level    string `json:"level"`
		} `json:"maintenance"`
		Documents []json.RawMessage `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "2025-01-15", got.AsOf)
	assert.NotEmpty(t, got.Level)
	assert.NotEmpty(t, got.Maintenance)
	assert.Len(t, got.Documents, 4)

	rr = do(t, s, http.MethodGet, "/api/vehicles/"+loganID+"/maintenance?date=15-01-2025", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodGet, "/api/vehicles/missing/maintenance", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransactions_Lifecycle(t *testing.T) {
	s := newTestServer(t, Options{})
	base := "/api/vehicles/" + loganID + "/transactions"

	rr := do(t, s, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rr.Code)
	before := len(decodeBody[[]core.Transaction](t, rr))

	rr = do(t, s, http.MethodPost, base, `{"type":"expense","amount":"120000","category":"brakes","description":" pastillas "}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decodeBody[core.Transaction](t, rr)
	assert.Equal(t, core.Expense, tx.Type)
	assert.Equal(t, "pastillas", tx.Description)
	assert.Equal(t, core.NewDate(2025, 1, 15), tx.Date)
	assert.Equal(t, int64(12000000), tx.Amount.Cents)

	rr = do(t, s, http.MethodGet, base, "")
	assert.Len(t, decodeBody[[]core.Transaction](t, rr), before+1)

	rr = do(t, s, http.MethodPatch, "/api/transactions/"+tx.ID, `{"amount":95000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, int64(9500000), decodeBody[core.Transaction](t, rr).Amount.Cents)

	rr = do(t, s, http.MethodPatch, "/api/transactions/"+tx.ID, `{"type":"INCOME"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodDelete, "/api/transactions/"+tx.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, s, http.MethodDelete, "/api/transactions/"+tx.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransactions_RecordedLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Component: "test", Handler: slog.NewTextHandler(&buf, nil)})

	store, err := memory.NewFromFile("../../data/seed.json")
	require.NoError(t, err)
	fleet := services.NewFleetService(store,
		services.WithClock(func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }),
		services.WithLogger(logger),
	)
	s := NewServer(":0", fleet, Options{Logger: logger})
	t.Cleanup(func() { s.limiter.Stop() })

	rr := do(t, s, http.MethodPost, "/api/vehicles/"+loganID+"/transactions", `{"type":"expense","amount":"50000","category":"brakes"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 1, strings.Count(buf.String(), "Transaction recorded"), buf.String())
}

func TestTransactions_Rejected(t *testing.T) {
	s := newTestServer(t, Options{})
	base := "/api/vehicles/" + loganID + "/transactions"

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown category", `{"type":"EXPENSE","amount":1000,"category":"gasolina"}`, http.StatusBadRequest},
		{"category mismatch", `{"type":"INCOME","amount":1000,"category":"brakes"}`, http.StatusBadRequest},
		{"zero amount", `{"type":"EXPENSE","amount":0,"category":"brakes"}`, http.StatusBadRequest},
		{"bad amount", `{"type":"EXPENSE","amount":"abc","category":"brakes"}`, http.StatusBadRequest},
		{"bad type", `{"type":"LOAN","amount":1000,"category":"other"}`, http.StatusBadRequest},
		{"bad date", `{"date":"2025-13-01","type":"EXPENSE","amount":1000,"category":"brakes"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, base, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	rr := do(t, s, http.MethodPost, "/api/vehicles/missing/transactions", `{"type":"EXPENSE","amount":1000,"category":"brakes"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAlertsAndSummary(t *testing.T) {
	s := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/api/alerts?date=2025-06-20", "")
	require.Equal(t, http.StatusOK, rr.Code)
	alerts := decodeBody[[]services.Alert](t, rr)
	assert.NotEmpty(t, alerts)

	rr = do(t, s, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	sum := decodeBody[core.FleetSummary](t, rr)
	assert.Len(t, sum.Vehicles, 2)
	assert.Equal(t, sum.Income.Cents-sum.Expense.Cents, sum.Balance)
}

func TestSuggestions(t *testing.T) {
	fake := &fakeAdvisor{suggestions: []core.Suggestion{{Category: core.CategoryTimingBelt, IntervalKm: 60000}}}
	s := newTestServer(t, Options{Advisor: fake})
	target := "/api/vehicles/" + loganID + "/suggestions"

	rr := do(t, s, http.MethodPost, target, `{"suggestions":[{"category":"oil_filter","intervalKm":7000}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 0, fake.calls)

	rr = do(t, s, http.MethodPost, target, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, fake.calls)
	var got struct {
		Vehicle     core.Vehicle      `json:"vehicle"`
		Suggestions []core.Suggestion `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	rule, ok := got.Vehicle.Rule(core.CategoryTimingBelt)
	require.True(t, ok)
	assert.Equal(t, core.ByDistance{IntervalKm: 60000, WarningKm: core.SuggestedWarningKm}, rule.Schedule)

	fake.err = errors.New("quota exceeded")
	rr = do(t, s, http.MethodPost, target, "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal error", decodeBody[errorResponse](t, rr).Error)
}

func TestAdvisorEndpoints(t *testing.T) {
	s := newTestServer(t, Options{Advisor: &fakeAdvisor{}})

	rr := do(t, s, http.MethodGet, "/api/vehicles/"+loganID+"/advice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	advice := decodeBody[[]advisor.Advice](t, rr)
	require.Len(t, advice, 1)
	assert.Equal(t, "Revisar frenos GFT-982", advice[0].Title)

	rr = do(t, s, http.MethodGet, "/api/analysis", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "GFT-982", decodeBody[advisor.FleetAnalysis](t, rr).BestVehicle)
}

func TestAdvisorDisabled(t *testing.T) {
	disabled, err := advisor.New(context.Background(), "", "", applog.Discard())
	require.NoError(t, err)

	for _, opts := range []Options{{}, {Advisor: disabled}} {
		s := newTestServer(t, opts)
		rr := do(t, s, http.MethodGet, "/api/analysis", "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		rr = do(t, s, http.MethodPost, "/api/vehicles/"+loganID+"/suggestions", "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/api/export/summary.csv", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="Reporte_Global_2025-01-15.csv"`, rr.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Resumen Financiero\n"))
	assert.Contains(t, rr.Body.String(), "Vehículos")

	rr = do(t, s, http.MethodGet, "/api/vehicles/"+loganID+"/export.csv", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="Reporte_GFT-982_2025-01-15.csv"`, rr.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Fecha,Tipo,"))
}

func TestPasswordGate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("flota-2025"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, Options{PasswordHash: string(hash)})

	rr := do(t, s, http.MethodGet, "/api/vehicles", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.SetBasicAuth("", "flota-2025")
	rr = httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimitOnWrites(t *testing.T) {
	s := newTestServer(t, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 1, CleanupInterval: time.Minute, WritesOnly: true}})

	rr := do(t, s, http.MethodDelete, "/api/transactions/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodDelete, "/api/transactions/unknown", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// reads are not limited
	rr = do(t, s, http.MethodGet, "/api/summary", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSuspiciousRequestsHidden(t *testing.T) {
	s := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/wp-admin/setup.php", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, int64(1), s.detector.SuspiciousCount())
}

func TestInternalErrorCarriesRequestID(t *testing.T) {
	fake := &fakeAdvisor{err: errors.New("upstream timeout")}
	s := newTestServer(t, Options{Advisor: fake})

	req := httptest.NewRequest(http.MethodGet, "/api/analysis", nil)
	req.Header.Set("X-Request-ID", "req-abc123")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody[errorResponse](t, rr)
	assert.Equal(t, "internal error", body.Error)
	assert.Equal(t, "req-abc123", body.RequestID)
	assert.Equal(t, "req-abc123", rr.Header().Get("X-Request-ID"))
}
