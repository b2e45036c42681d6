package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobq/internal/config"
	"jobq/internal/domain"
	"jobq/internal/infra/memq"
)

func newWorkerQueue(t *testing.T) *memq.Queue {
	t.Helper()
	q := memq.New(memq.Config{Workers: 4, PromoteInterval: 5 * time.Millisecond}, memq.WithLogger(zerolog.Nop()))
	for _, reg := range Handlers() {
		require.NoError(t, q.RegisterProcessor(reg))
	}
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

func waitTerminal(t *testing.T, q *memq.Queue, id string) *domain.Job {
	t.Helper()
	var j *domain.Job
	require.Eventually(t, func() bool {
		j, _ = q.GetJob(id)
		return j != nil && j.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return j
}

func TestHandlers(t *testing.T) {
	q := newWorkerQueue(t)

	tests := []struct {
		name   string
		typ    domain.JobType
		data   map[string]any
		status domain.JobStatus
	}{
		{name: "send-email", typ: domain.TypeEmail, data: map[string]any{"to": "a@b.c"}, status: domain.StatusCompleted},
		{name: "send-email", typ: domain.TypeEmail, data: map[string]any{"to": "nobody"}, status: domain.StatusFailed},
		{name: "send-sms", typ: domain.TypeSMS, data: map[string]any{"to": "+100", "message": "hi"}, status: domain.StatusCompleted},
		{name: "notify-users", typ: domain.TypeNotification, data: map[string]any{"user_ids": []string{"u1", "u2"}}, status: domain.StatusCompleted},
		{name: "process-file", typ: domain.TypeFileProcess, data: map[string]any{"path": "/tmp/x", "steps": 2}, status: domain.StatusCompleted},
		{name: "generate-report", typ: domain.TypeReport, data: map[string]any{"kind": "daily"}, status: domain.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := q.AddJob(context.Background(), tt.typ, tt.name, tt.data, domain.Options{})
			require.NoError(t, err)
			j := waitTerminal(t, q, id)
			assert.Equal(t, tt.status, j.Status, j.Error)
		})
	}
}

func TestHandlers_FlakySucceedsOnThirdAttempt(t *testing.T) {
	q := newWorkerQueue(t)

	id, err := q.AddJob(context.Background(), domain.TypeCustom, "demo.fail", nil, domain.Options{
		Backoff: &domain.Backoff{Type: domain.BackoffFixed, Delay: 5 * time.Millisecond},
	})
	require.NoError(t, err)
	j := waitTerminal(t, q, id)
	assert.Equal(t, domain.StatusCompleted, j.Status)
	assert.Equal(t, 3, j.Attempts)
}

func TestNewQueue_Overrides(t *testing.T) {
	appCfg := &config.Config{
		Queue: config.Queue{Name: "mail", Workers: 2, PromoteInterval: time.Second},
	}
	q := NewQueue(appCfg, Config{Workers: 8})
	assert.Equal(t, "mail", q.Name())
	assert.False(t, q.IsConnected())
}
