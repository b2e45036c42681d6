package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"jobq/internal/domain"
	"jobq/internal/ports"
	"jobq/internal/usecase"
)

type backoffReq struct {
	Type       domain.BackoffType `json:"type"`
	DelayMs    int64              `json:"delay_ms"`
	MaxDelayMs int64              `json:"max_delay_ms"`
	Jitter     float64            `json:"jitter"`
}

type optionsReq struct {
	Priority  domain.Priority `json:"priority"`
	Attempts  int             `json:"attempts"`
	DelayMs   int64           `json:"delay_ms"`
	TimeoutMs int64           `json:"timeout_ms"`
	Backoff   *backoffReq     `json:"backoff"`
	Repeat    string          `json:"repeat"`
}

func (o optionsReq) toDomain() domain.Options {
	opts := domain.Options{
		Priority: o.Priority,
		Attempts: o.Attempts,
		Delay:    time.Duration(o.DelayMs) * time.Millisecond,
		Timeout:  time.Duration(o.TimeoutMs) * time.Millisecond,
		Repeat:   o.Repeat,
	}
	if o.Backoff != nil {
		opts.Backoff = &domain.Backoff{
			Type:     o.Backoff.Type,
			Delay:    time.Duration(o.Backoff.DelayMs) * time.Millisecond,
			MaxDelay: time.Duration(o.Backoff.MaxDelayMs) * time.Millisecond,
			Jitter:   o.Backoff.Jitter,
		}
	}
	return opts
}

type enqueueReq struct {
	Type    domain.JobType `json:"type"`
	Name    string         `json:"name"`
	Data    map[string]any `json:"data"`
	Options optionsReq     `json:"options"`
	RunAt   *int64         `json:"run_at_ms"` // optional absolute time
}

func (e enqueueReq) job() ports.BulkJob {
	return ports.BulkJob{Type: e.Type, Name: e.Name, Data: e.Data, Options: e.Options.toDomain()}
}

type cleanReq struct {
	Status      domain.JobStatus `json:"status"`
	OlderThanMs int64            `json:"older_than_ms"`
}

type errorResp struct {
	Error string `json:"error"`
}

type Server struct {
	router *chi.Mux
	q      ports.Queue
	enq    usecase.Enqueuer
}

func NewServer(q ports.Queue) *Server {
	s := &Server{router: chi.NewRouter(), q: q, enq: usecase.Enqueuer{Q: q}}

	r := s.router
	r.Get("/healthz", s.health)
	r.Post("/jobs", s.addJob)
	r.Post("/jobs/bulk", s.addBulk)
	r.Get("/jobs/{id}", s.getJob)
	r.Delete("/jobs/{id}", s.removeJob)
	r.Post("/jobs/{id}/retry", s.retryJob)
	r.Get("/queues/{name}/stats", s.stats)
	r.Post("/queues/{name}/pause", s.pause)
	r.Post("/queues/{name}/resume", s.resume)
	r.Post("/queues/{name}/clean", s.clean)
	r.Get("/alerts", s.alerts)

	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		recoverHandler,
		loggerHandler(func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/healthz" }),
		realIPHandler,
		requestIDHandler,
		corsHandler,
	)
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	httpServer := http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("server serving on port %d", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":     s.q.Name(),
		"connected": s.q.IsConnected(),
	})
}

func (s *Server) addJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	var id string
	var err error
	if req.RunAt != nil {
		id, err = s.enq.At(r.Context(), req.job(), time.UnixMilli(*req.RunAt))
	} else {
		id, err = s.enq.Now(r.Context(), req.job())
	}
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) addBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	jobs := make([]ports.BulkJob, 0, len(reqs))
	for _, req := range reqs {
		jobs = append(jobs, req.job())
	}

	ids, err := s.q.AddBulkJobs(r.Context(), jobs)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"ids": ids, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ids": ids})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.q.GetJob(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, newJobResp(j))
}

func (s *Server) removeJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.q.RemoveJob(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.conflictOrMissing(w, id, "job is processing")
}

func (s *Server) retryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.q.RetryJob(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.conflictOrMissing(w, id, "only failed jobs can be retried")
}

func (s *Server) conflictOrMissing(w http.ResponseWriter, id, msg string) {
	if _, ok := s.q.GetJob(id); !ok {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "job not found"})
		return
	}
	writeJSON(w, http.StatusConflict, errorResp{Error: msg})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.q.GetQueueStats(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newStatsResp(st))
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	if err := s.q.Pause(chi.URLParam(r, "name")); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	if err := s.q.Resume(chi.URLParam(r, "name")); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clean(w http.ResponseWriter, r *http.Request) {
	var req cleanReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	n, err := s.q.Clean(chi.URLParam(r, "name"), req.Status, time.Duration(req.OlderThanMs)*time.Millisecond)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func (s *Server) alerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.q.CheckAlerts()
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrProcessorNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrQueueNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCleanStatus), errors.Is(err, domain.ErrInvalidJob):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResp{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
