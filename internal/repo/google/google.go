package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"flota/internal/core"
	"flota/internal/repo"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var (
	_ repo.Repository         = (*Client)(nil)
	_ repo.TransactionDeleter = (*Client)(nil)
)

// Options configures the Sheets remote table.
type Options struct {
	SpreadsheetID     string
	VehiclesSheet     string
	TransactionsSheet string
	// Credentials: inline service account JSON or a path to it. When both
	// are empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string
	// ClientOptions are appended to the service options (endpoint overrides in tests).
	ClientOptions []goption.ClientOption
}

// Client uses one spreadsheet as a remote table: one tab of vehicles and
// one tab of transactions, each keyed by the id in column A.
type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	vehiclesSheet     string
	transactionsSheet string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if opts.VehiclesSheet == "" {
		opts.VehiclesSheet = "Vehiculos"
	}
	if opts.TransactionsSheet == "" {
		opts.TransactionsSheet = "Transacciones"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:               svc,
		spreadsheetID:     opts.SpreadsheetID,
		vehiclesSheet:     opts.VehiclesSheet,
		transactionsSheet: opts.TransactionsSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientOpts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}

	credsJSON := strings.TrimSpace(opts.CredentialsJSON)
	credsFile := strings.TrimSpace(opts.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(opts.ClientOptions) > 0:
		// Caller supplies transport and auth.
	case credsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(credsJSON)))
	case credsFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", credsFile)
		b, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(b))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	clientOpts = append(clientOpts, opts.ClientOptions...)
	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ListVehicles(ctx context.Context) ([]core.Vehicle, error) {
	rows, err := c.readRows(ctx, c.vehiclesSheet)
	if err != nil {
		return nil, err
	}
	var out []core.Vehicle
	for _, row := range rows {
		v, ok, err := parseVehicleRow(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed vehicle row", "sheet", c.vehiclesSheet, "error", err)
			continue
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *Client) GetVehicle(ctx context.Context, id string) (core.Vehicle, error) {
	all, err := c.ListVehicles(ctx)
	if err != nil {
		return core.Vehicle{}, err
	}
	for _, v := range all {
		if v.ID == id {
			return v, nil
		}
	}
	return core.Vehicle{}, repo.ErrNotFound
}

func (c *Client) SaveVehicle(ctx context.Context, v core.Vehicle) error {
	row, err := vehicleRow(v)
	if err != nil {
		return err
	}
	return c.upsertRow(ctx, c.vehiclesSheet, vehicleHeader, v.ID, row)
}

func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := c.readRows(ctx, c.transactionsSheet)
	if err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, row := range rows {
		t, ok, err := parseTransactionRow(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed transaction row", "sheet", c.transactionsSheet, "error", err)
			continue
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Client) ListTransactionsByVehicle(ctx context.Context, vehicleID string) ([]core.Transaction, error) {
	all, err := c.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, t := range all {
		if t.VehicleID == vehicleID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Client) SaveTransaction(ctx context.Context, t core.Transaction) error {
	return c.upsertRow(ctx, c.transactionsSheet, transactionHeader, t.ID, transactionRow(t))
}

// DeleteTransaction removes the row holding the transaction.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rowNum, err := c.findRow(ctx, c.transactionsSheet, id)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		return repo.ErrNotFound
	}
	sheetID, err := c.sheetID(ctx, c.transactionsSheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(rowNum - 1),
			EndIndex:   int64(rowNum),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", rowNum, c.transactionsSheet, err)
	}
	return nil
}

func (c *Client) readRows(ctx context.Context, sheet string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:Z", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// findRow returns the 1-based row number holding id in column A, or 0.
func (c *Client) findRow(ctx context.Context, sheet, id string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

// upsertRow overwrites the row keyed by id, or appends it. An empty sheet
// gets the header first.
func (c *Client) upsertRow(ctx context.Context, sheet string, header []any, id string, row []any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if id == "" {
		return core.ErrMissingID
	}
	rowNum, err := c.findRow(ctx, sheet, id)
	if err != nil {
		return err
	}
	last := columnLetter(len(row) - 1)

	if rowNum > 0 {
		rng := fmt.Sprintf("%s!A%d:%s%d", sheet, rowNum, last, rowNum)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	values := [][]any{row}
	if empty, err := c.isEmpty(ctx, sheet); err != nil {
		return err
	} else if empty {
		values = [][]any{header, row}
	}
	rng := fmt.Sprintf("%s!A:%s", sheet, last)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

func (c *Client) isEmpty(ctx context.Context, sheet string) (bool, error) {
	rng := fmt.Sprintf("%s!A1:A1", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	return len(resp.Values) == 0, nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

// WriteTable replaces the content of the named tab, creating it when missing.
// It backs the report exporter.
func (c *Client) WriteTable(ctx context.Context, title string, rows [][]string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if _, err := c.sheetID(ctx, title); err != nil {
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}}}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add sheet %s: %w", title, err)
		}
	} else {
		if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, title, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear sheet %s: %w", title, err)
		}
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = make([]any, len(r))
		for j, cell := range r {
			values[i][j] = cell
		}
	}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, title+"!A1", &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Sheet written", "sheet", title, "rows", len(rows))
	return nil
}
