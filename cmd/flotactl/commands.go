package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"flota/internal/cli"
	"flota/internal/config"
	"flota/internal/core"
	applog "flota/internal/log"
	"flota/internal/repo/memory"
	"flota/internal/report"
	"flota/internal/services"
)

// env is what every command works against.
type env struct {
	cfg   *config.Config
	fleet *services.FleetService
	close func() error
}

type opener func(ctx context.Context) (*env, error)

func stderrHandler(level string) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: applog.ParseLevel(level)})
}

func newRootCmd(out io.Writer, open opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "flotactl",
		Short: "Fleet bookkeeping from the command line",
		Long: `Inspect maintenance status, alerts and balances of the fleet, export
reports and load seed data into the configured backend (DATA_BACKEND).`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.AddCommand(statusCmd(open))
	root.AddCommand(alertsCmd(open))
	root.AddCommand(summaryCmd(open))
	root.AddCommand(exportCmd(open))
	root.AddCommand(seedCmd(open))
	return root
}

// withEnv opens the backend around fn.
func withEnv(cmd *cobra.Command, open opener, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if e.close != nil {
			_ = e.close()
		}
	}()
	return fn(ctx, e)
}

func parseDateFlag(value string, e *env) (core.Date, error) {
	if value == "" {
		return e.fleet.Today(), nil
	}
	return core.ParseDate(value)
}

// statusCmd prints the maintenance report of one vehicle
func statusCmd(open opener) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "status <plate>",
		Short: "Show the maintenance and document status of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, e *env) error {
				today, err := parseDateFlag(date, e)
				if err != nil {
					return err
				}
				v, err := e.fleet.FindByPlate(ctx, args[0])
				if err != nil {
					return err
				}
				r, err := e.fleet.MaintenanceReport(ctx, v.ID, today)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s %s  %d km  (%s)\n", v.DisplayName(), v.Brand, v.Model, v.CurrentOdometer, r.Level())
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ITEM\tESTADO\tDETALLE")
				for _, m := range r.Maintenance {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Category.Label(), m.Level, maintenanceDetail(m))
				}
				for _, d := range r.Documents {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Document.Label(), d.Level, d.Reason.Label())
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Balance: %s\n", core.FormatCOP(r.Balance.Balance))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Evaluate as of this date (YYYY-MM-DD)")
	return cmd
}

func maintenanceDetail(m services.MaintenanceStatus) string {
	switch {
	case m.KmRemaining != nil:
		return fmt.Sprintf("%s, faltan %d km", m.Reason.Label(), *m.KmRemaining)
	case m.DaysRemaining != nil:
		return fmt.Sprintf("%s, faltan %d días", m.Reason.Label(), *m.DaysRemaining)
	default:
		return m.Reason.Label()
	}
}

// alertsCmd lists every non-OK status of the fleet
func alertsCmd(open opener) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List maintenance and document alerts, most urgent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, e *env) error {
				today, err := parseDateFlag(date, e)
				if err != nil {
					return err
				}
				alerts, err := e.fleet.Alerts(ctx, today)
				if err != nil {
					return err
				}
				if len(alerts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Sin alertas")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NIVEL\tPLACA\tITEM\tMOTIVO")
				for _, a := range alerts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Level, a.Plate, a.Subject, a.Reason.Label())
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Evaluate as of this date (YYYY-MM-DD)")
	return cmd
}

// summaryCmd prints income, expenses and balance per vehicle
func summaryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the financial summary of the fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, e *env) error {
				sum, err := e.fleet.Summary(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "PLACA\tINGRESOS\tEGRESOS\tBALANCE")
				for _, b := range sum.Vehicles {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Plate,
						core.FormatCOP(b.Income.Cents), core.FormatCOP(b.Expense.Cents), core.FormatCOP(b.Balance))
				}
				fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\n",
					core.FormatCOP(sum.Income.Cents), core.FormatCOP(sum.Expense.Cents), core.FormatCOP(sum.Balance))
				return tw.Flush()
			})
		},
	}
}

// exportCmd writes reports as CSV or to Google Sheets tabs
func exportCmd(open opener) *cobra.Command {
	var (
		plate  string
		output string
		sheets bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the global report, or one vehicle's history with --vehicle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, e *env) error {
				snap, err := e.fleet.Snapshot(ctx)
				if err != nil {
					return err
				}
				tables := report.GlobalSummary(snap.Vehicles, snap.Transactions)
				if plate != "" {
					v, err := e.fleet.FindByPlate(ctx, plate)
					if err != nil {
						return err
					}
					tables = []report.Table{report.VehicleHistory(v, snap.Transactions)}
				}

				if sheets {
					client, err := cli.NewSheetsClient(ctx, e.cfg)
					if err != nil {
						return err
					}
					if err := report.Export(ctx, client, tables...); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tabs to spreadsheet %s\n", len(tables), e.cfg.GoogleSpreadsheetID)
					return nil
				}

				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return report.WriteCSV(w, tables...)
			})
		},
	}

	cmd.Flags().StringVar(&plate, "vehicle", "", "Plate of the vehicle whose history to export")
	cmd.Flags().StringVarP(&output, "out", "o", "", "CSV output file (default stdout)")
	cmd.Flags().BoolVar(&sheets, "sheets", false, "Write the tables to the configured spreadsheet instead of CSV")
	return cmd
}

// seedCmd loads a seed file into the configured backend
func seedCmd(open opener) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load vehicles and transactions from a seed JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, e *env) error {
				path := file
				if path == "" {
					path = e.cfg.SeedFile()
				}
				seed, err := memory.ReadSeed(path)
				if err != nil {
					return err
				}

				r := e.fleet.Repository()
				for _, v := range seed.Vehicles {
					v.Plate = core.NormalizePlate(v.Plate)
					if err := v.Validate(e.fleet.Today()); err != nil {
						return fmt.Errorf("vehicle %s: %w", v.ID, err)
					}
					if err := r.SaveVehicle(ctx, v); err != nil {
						return fmt.Errorf("save vehicle %s: %w", v.ID, err)
					}
				}
				for _, t := range seed.Transactions {
					t.Description = strings.TrimSpace(t.Description)
					if err := t.Validate(); err != nil {
						return fmt.Errorf("transaction %s: %w", t.ID, err)
					}
					if err := r.SaveTransaction(ctx, t); err != nil {
						return fmt.Errorf("save transaction %s: %w", t.ID, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d vehicles and %d transactions from %s\n",
					len(seed.Vehicles), len(seed.Transactions), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed file (default $DATA_DIR/seed.json)")
	return cmd
}
