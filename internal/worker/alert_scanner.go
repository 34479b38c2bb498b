package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"flota/internal/amqp"
	"flota/internal/services"
)

// AlertPublisher delivers alerts raised by a scan.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, msg *amqp.AlertMessage) error
}

// AlertScanner evaluates the whole fleet and reports every non-OK status.
type AlertScanner struct {
	fleet     *services.FleetService
	publisher AlertPublisher
	logger    *slog.Logger
}

// NewAlertScanner builds a scanner. A nil publisher only logs alerts.
func NewAlertScanner(fleet *services.FleetService, publisher AlertPublisher, logger *slog.Logger) *AlertScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertScanner{fleet: fleet, publisher: publisher, logger: logger}
}

// Scan evaluates the fleet as of today and returns the number of alerts.
// Publishing stops at the first failure.
func (s *AlertScanner) Scan(ctx context.Context) (int, error) {
	today := s.fleet.Today()
	alerts, err := s.fleet.Alerts(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("scan alerts: %w", err)
	}

	for _, a := range alerts {
		s.logger.WarnContext(ctx, a.Message(),
			"vehicle_id", a.VehicleID,
			"plate", a.Plate,
			"status_level", a.Level)
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishAlert(ctx, toAlertMessage(a)); err != nil {
			return len(alerts), fmt.Errorf("publish alert for %s: %w", a.Plate, err)
		}
	}
	s.logger.InfoContext(ctx, "Alert scan completed", "date", today.String(), "alerts", len(alerts))
	return len(alerts), nil
}

// Schedule registers the scan on c with a standard five-field cron spec.
func (s *AlertScanner) Schedule(c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.Scan(ctx); err != nil {
			s.logger.Error("Scheduled alert scan failed", "error", err)
		}
	})
}

func toAlertMessage(a services.Alert) *amqp.AlertMessage {
	return &amqp.AlertMessage{
		VehicleID:     a.VehicleID,
		Plate:         a.Plate,
		Subject:       a.Subject,
		Level:         string(a.Level),
		Reason:        string(a.Reason),
		Message:       a.Message(),
		KmRemaining:   a.KmRemaining,
		DaysRemaining: a.DaysRemaining,
	}
}
