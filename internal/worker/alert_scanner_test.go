package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flota/internal/amqp"
	applog "flota/internal/log"
	"flota/internal/repo/memory"
	"flota/internal/services"
)

type recordingPublisher struct {
	msgs []*amqp.AlertMessage
	err  error
}

func (p *recordingPublisher) PublishAlert(_ context.Context, msg *amqp.AlertMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func seededFleet(t *testing.T, now time.Time) *services.FleetService {
	t.Helper()
	store, err := memory.NewFromFile("../../data/seed.json")
	require.NoError(t, err)
	return services.NewFleetService(store,
		services.WithClock(func() time.Time { return now }),
		services.WithLogger(applog.Discard()))
}

func TestAlertScanner_PublishesEveryAlert(t *testing.T) {
	fleet := seededFleet(t, time.Date(2025, 6, 20, 7, 0, 0, 0, time.UTC))
	pub := &recordingPublisher{}
	s := NewAlertScanner(fleet, pub, applog.Discard().Logger)

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.NotZero(t, n)
	require.Len(t, pub.msgs, n)

	first := pub.msgs[0]
	assert.Equal(t, string(services.LevelDanger), first.Level)
	assert.NotEmpty(t, first.Plate)
	assert.Contains(t, first.Message, first.Plate)
}

func TestAlertScanner_WithoutPublisher(t *testing.T) {
	fleet := seededFleet(t, time.Date(2025, 6, 20, 7, 0, 0, 0, time.UTC))
	s := NewAlertScanner(fleet, nil, nil)

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, n)
}

func TestAlertScanner_PublishError(t *testing.T) {
	fleet := seededFleet(t, time.Date(2025, 6, 20, 7, 0, 0, 0, time.UTC))
	s := NewAlertScanner(fleet, &recordingPublisher{err: errors.New("broker down")}, applog.Discard().Logger)

	_, err := s.Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestAlertScanner_Schedule(t *testing.T) {
	fleet := seededFleet(t, time.Date(2025, 6, 20, 7, 0, 0, 0, time.UTC))
	s := NewAlertScanner(fleet, nil, applog.Discard().Logger)
	c := cron.New()

	id, err := s.Schedule(c, "0 7 * * *", time.Minute)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)

	_, err = s.Schedule(c, "every day", time.Minute)
	assert.Error(t, err)
}
