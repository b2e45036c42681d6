package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"jobq/internal/domain"
	"jobq/internal/registry"
)

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type notificationPayload struct {
	UserIDs []string `json:"user_ids"`
	Title   string   `json:"title"`
}

type filePayload struct {
	Path  string `json:"path"`
	Steps int    `json:"steps"`
}

type reportPayload struct {
	Kind string `json:"kind"`
}

// Handlers returns the demo processors served by the worker. They simulate
// provider latency and never call external services.
func Handlers() []domain.Registration {
	return []domain.Registration{
		registry.Typed("send-email", domain.TypeEmail, 0, sendEmail),
		registry.Typed("send-sms", domain.TypeSMS, 0, sendSMS),
		registry.Typed("notify-users", domain.TypeNotification, 0, notifyUsers),
		registry.Typed("process-file", domain.TypeFileProcess, 2, processFile),
		registry.Typed("generate-report", domain.TypeReport, 1, generateReport),
		{Name: "demo.fail", Type: domain.TypeCustom, Processor: flaky},
	}
}

func sendEmail(ctx context.Context, p emailPayload, j domain.Job, _ domain.ProgressFunc) (any, error) {
	if !strings.Contains(p.To, "@") {
		return nil, domain.NoRetry(fmt.Errorf("invalid recipient %q", p.To))
	}
	if err := sleep(ctx, 50*time.Millisecond); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("job_id", j.ID).Str("to", p.To).Msg("email sent")
	return map[string]any{"message_id": j.ID, "to": p.To}, nil
}

func sendSMS(ctx context.Context, p smsPayload, j domain.Job, _ domain.ProgressFunc) (any, error) {
	if p.To == "" {
		return nil, domain.NoRetry(errors.New("missing phone number"))
	}
	if err := sleep(ctx, 30*time.Millisecond); err != nil {
		return nil, err
	}
	return map[string]any{"to": p.To, "segments": len(p.Message)/160 + 1}, nil
}

func notifyUsers(ctx context.Context, p notificationPayload, _ domain.Job, progress domain.ProgressFunc) (any, error) {
	for i := range p.UserIDs {
		if err := sleep(ctx, 10*time.Millisecond); err != nil {
			return nil, err
		}
		progress((i + 1) * 100 / len(p.UserIDs))
	}
	return map[string]any{"delivered": len(p.UserIDs)}, nil
}

func processFile(ctx context.Context, p filePayload, _ domain.Job, progress domain.ProgressFunc) (any, error) {
	steps := max(p.Steps, 1)
	for i := 1; i <= steps; i++ {
		if err := sleep(ctx, 100*time.Millisecond); err != nil {
			return nil, err
		}
		progress(i * 100 / steps)
	}
	return map[string]any{"path": p.Path, "steps": steps}, nil
}

func generateReport(ctx context.Context, p reportPayload, _ domain.Job, progress domain.ProgressFunc) (any, error) {
	progress(10)
	if err := sleep(ctx, 200*time.Millisecond); err != nil {
		return nil, err
	}
	progress(90)
	return map[string]any{"kind": p.Kind, "rows": 42}, nil
}

// flaky fails its first two attempts.
func flaky(ctx context.Context, j domain.Job, _ domain.ProgressFunc) (any, error) {
	if j.Attempts < 3 {
		return nil, errors.New("simulated failure")
	}
	log.Ctx(ctx).Info().Msgf("processed job %s name=%s attempts=%d", j.ID, j.Name, j.Attempts)
	return nil, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
