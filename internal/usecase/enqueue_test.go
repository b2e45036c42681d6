package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobq/internal/domain"
	"jobq/internal/infra/memq"
	"jobq/internal/ports"
)

func newEnqueuer(t *testing.T, clock func() time.Time) (Enqueuer, *memq.Queue) {
	t.Helper()
	q := memq.New(memq.Config{}, memq.WithLogger(zerolog.Nop()))
	require.NoError(t, q.RegisterProcessor(domain.Registration{
		Name: "send-email",
		Processor: func(context.Context, domain.Job, domain.ProgressFunc) (any, error) {
			return nil, nil
		},
	}))
	return Enqueuer{Q: q, Clock: clock}, q
}

func TestEnqueuer_Now(t *testing.T) {
	e, q := newEnqueuer(t, nil)

	id, err := e.Now(context.Background(), ports.BulkJob{Type: domain.TypeEmail, Name: "send-email"})
	require.NoError(t, err)

	j, ok := q.GetJob(id)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, j.Status)
}

func TestEnqueuer_At(t *testing.T) {
	now := time.Now()
	e, q := newEnqueuer(t, func() time.Time { return now })

	tests := []struct {
		name   string
		runAt  time.Time
		status domain.JobStatus
		delay  time.Duration
	}{
		{name: "future", runAt: now.Add(time.Hour), status: domain.StatusDelayed, delay: time.Hour},
		{name: "past", runAt: now.Add(-time.Hour), status: domain.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := e.At(context.Background(), ports.BulkJob{
				Type:    domain.TypeEmail,
				Name:    "send-email",
				Options: domain.Options{Delay: time.Minute},
			}, tt.runAt)
			require.NoError(t, err)

			j, ok := q.GetJob(id)
			require.True(t, ok)
			assert.Equal(t, tt.status, j.Status)
			assert.Equal(t, tt.delay, j.Delay)
		})
	}
}

func TestEnqueuer_UnknownProcessor(t *testing.T) {
	e, _ := newEnqueuer(t, nil)
	_, err := e.Now(context.Background(), ports.BulkJob{Type: domain.TypeSMS, Name: "send-sms"})
	require.ErrorIs(t, err, domain.ErrProcessorNotFound)
}
