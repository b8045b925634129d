package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/api"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/archive"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/core"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/intake"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/metrics"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
)

// longPollTimeout caps blocking event fetches below the server WriteTimeout
// so a waiting poll always gets a response out.
const longPollTimeout = 25 * time.Second

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/jobs", authMiddleware(token, srv.handleJobs))
	mux.HandleFunc("/api/jobs/", authMiddleware(token, srv.handleJobItem))
	mux.HandleFunc("/api/batches", authMiddleware(token, srv.handleBatches))
	mux.HandleFunc("/api/batches/", authMiddleware(token, srv.handleBatchItem))
	mux.HandleFunc("/api/queue", authMiddleware(token, srv.handleQueue))
	mux.HandleFunc("/api/cache", authMiddleware(token, srv.handleCache))
	mux.HandleFunc("/api/history", authMiddleware(token, srv.handleHistory))
	mux.HandleFunc("/api/events", authMiddleware(token, srv.handleEvents))
	// Metrics stay unauthenticated so scrapers need no token.
	mux.Handle("/metrics", metrics.Handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		SocketPath:   status.SocketPath,
		LockPath:     status.LockPath,
		ArchivePath:  status.ArchivePath,
		Service:      api.FromServiceStatus(status.Service),
		Dependencies: api.FromDependencies(status.Dependencies),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req api.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		j, err := s.daemon.Submit(req.ToSubmission())
		if err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(j)})
	case http.MethodGet:
		filter := registry.ListFilter{BatchID: strings.TrimSpace(r.URL.Query().Get("batch"))}
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
			filter.Limit = limit
		}
		for _, value := range r.URL.Query()["status"] {
			status, ok := job.ParseStatus(value)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
		jobs, err := s.daemon.Jobs(filter)
		if err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleJobItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id, ok := strings.CutSuffix(rest, "/cancel"); ok {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		j, err := s.daemon.Cancel(id)
		if err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(j)})
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	j, err := s.daemon.JobStatus(rest)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(j)})
}

func (s *apiServer) handleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req api.SubmitBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		receipt, err := s.daemon.SubmitBatch(req.ToBatchRequest())
		if err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromBatchReceipt(receipt))
	case http.MethodGet:
		limit := 0
		if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
			limit = parsed
		}
		batches, err := s.daemon.Batches(limit)
		if err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.BatchListResponse{Batches: api.FromBatches(batches)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleBatchItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	view, err := s.daemon.BatchStatus(id)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.BatchDetail{
		Batch: api.FromBatch(view.Batch),
		Jobs:  api.FromJobs(view.Jobs),
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := s.daemon.QueueList()
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Entries: api.FromQueueEntries(entries)})
}

func (s *apiServer) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.daemon.CacheStats()
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCacheStats(stats))
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	filter := archive.HistoryFilter{
		BatchID:  strings.TrimSpace(query.Get("batch")),
		CallerID: strings.TrimSpace(query.Get("caller")),
	}
	if value := strings.TrimSpace(query.Get("status")); value != "" {
		status, ok := job.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		filter.Status = status
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	records, err := s.daemon.History(r.Context(), filter)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Records: api.FromHistoryRecords(records)})
}

// handleEvents serves the progress feed two ways: clients accepting
// text/event-stream get a live SSE subscription, everyone else gets a JSON
// page with an optional blocking wait (follow=1) and a since cursor.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamEvents(w, r)
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, longPollTimeout)
		defer cancel()
	}

	events, next, err := s.daemon.Events(ctx, since, limit, follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: api.FromEvents(events), Next: next})
}

func (s *apiServer) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sub, err := s.daemon.Subscribe(strings.TrimSpace(r.URL.Query().Get("target")))
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	defer sub.Close()

	// Streams outlive the server's read/write timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(api.FromEvent(evt))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// statusForError maps service errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrHistoryDisabled):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrNotCancellable):
		return http.StatusConflict
	case errors.Is(err, intake.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, intake.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, intake.ErrQueueSaturated), errors.Is(err, core.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
