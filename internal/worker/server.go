package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"jobq/internal/api"
	"jobq/internal/config"
	"jobq/internal/domain"
	"jobq/internal/infra/memq"
	"jobq/internal/infra/redisq"
)

const shutdownTimeout = 30 * time.Second

// Config holds command-line overrides. Zero values keep the environment settings.
type Config struct {
	Port            int
	Workers         int
	PromoteInterval time.Duration
	AlertInterval   time.Duration
}

func Run(cfg Config) error {
	appCfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	q := NewQueue(appCfg, cfg)
	if err := q.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := q.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("disconnect failed")
		}
	}()

	for _, reg := range Handlers() {
		if err := q.RegisterProcessor(reg); err != nil {
			return fmt.Errorf("register %s: %w", reg.Name, err)
		}
	}
	watch(q)

	if err := q.Start(ctx); err != nil {
		return err
	}
	go watchAlerts(ctx, q, cfg.AlertInterval)

	port := appCfg.HTTP.Port
	if cfg.Port > 0 {
		port = cfg.Port
	}
	serveErr := api.NewServer(q).Run(ctx, port)
	stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("queue did not stop cleanly")
	}
	return serveErr
}

// NewQueue builds the queue from the loaded configuration and flag overrides.
func NewQueue(appCfg *config.Config, cfg Config) *memq.Queue {
	qc := memq.Config{
		Name:              appCfg.Queue.Name,
		Workers:           appCfg.Queue.Workers,
		PromoteInterval:   appCfg.Queue.PromoteInterval,
		DispatchRate:      appCfg.Queue.DispatchRate,
		AllowUnregistered: appCfg.Queue.AllowUnregistered,
		SampleSize:        appCfg.Queue.SampleSize,
		Thresholds: domain.Thresholds{
			Queue:       appCfg.Alerts.QueueThreshold,
			FailureRate: appCfg.Alerts.FailureRateThreshold,
			Latency:     appCfg.Alerts.LatencyThreshold,
		},
	}
	if cfg.Workers > 0 {
		qc.Workers = cfg.Workers
	}
	if cfg.PromoteInterval > 0 {
		qc.PromoteInterval = cfg.PromoteInterval
	}

	var opts []memq.Option
	if appCfg.Redis.Addr != "" {
		opts = append(opts, memq.WithMirror(redisq.New(appCfg.Redis)))
	}
	return memq.New(qc, opts...)
}

// watch logs lifecycle events that are not already logged by the queue.
func watch(q *memq.Queue) {
	for _, t := range domain.EventTypes {
		q.On(t, func(e domain.Event) {
			evt := log.Trace().Str("queue", e.Queue).Str("event", string(e.Type))
			if e.Job != nil {
				evt = evt.Str("job_id", e.Job.ID).Str("status", string(e.Job.Status))
			}
			evt.Msg("job event")
		})
	}
	q.On(domain.EventPaused, func(e domain.Event) {
		log.Info().Str("queue", e.Queue).Msg("dispatch paused")
	})
	q.On(domain.EventCleaned, func(e domain.Event) {
		log.Info().Str("queue", e.Queue).Int("count", e.Count).Msg("jobs cleaned")
	})
	q.On(domain.EventDrained, func(e domain.Event) {
		log.Debug().Str("queue", e.Queue).Msg("all pending jobs dispatched")
	})
}

// watchAlerts checks alert thresholds on a timer. Alerts repeat while their
// condition holds.
func watchAlerts(ctx context.Context, q *memq.Queue, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, a := range q.CheckAlerts() {
			evt := log.Warn()
			if a.Severity == domain.SeverityCritical {
				evt = log.Error()
			}
			evt.
				Str("alert_id", a.ID).
				Str("kind", string(a.Kind)).
				Float64("value", a.Value).
				Float64("threshold", a.Threshold).
				Msg(a.Message)
		}
	}
}
