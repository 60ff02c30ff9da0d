// Package server is the HTTP host: it accepts SELECT export jobs, reports
// their status, serves the results, and pushes progress over websockets.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/gorilla/websocket"

	"mysql-dbdriver/internal/command"
	"mysql-dbdriver/internal/driver"
	"mysql-dbdriver/internal/security"
	"mysql-dbdriver/internal/storage"
	"mysql-dbdriver/internal/worker"
)

// Options configure a Server.
type Options struct {
	AppEnv         string
	AllowedOrigins []string
	APISecret      string
	APIKeyHash     string
	// JobTimeout bounds every export job.
	JobTimeout time.Duration
	Logger     *slog.Logger
}

type Server struct {
	pool    *worker.Pool
	store   storage.Provider
	hub     *Hub
	admin   *Admin
	opts    Options
	logger  *slog.Logger
	upgrade websocket.Upgrader
}

// New wires the handlers. hub should be the pool's Notifier.
func New(pool *worker.Pool, store storage.Provider, hub *Hub, admin *Admin, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 15 * time.Minute
	}
	return &Server{
		pool:   pool,
		store:  store,
		hub:    hub,
		admin:  admin,
		opts:   opts,
		logger: logger,
		upgrade: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are enforced by the CORS allow list
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed handler with CORS and auth applied.
func (s *Server) Handler() http.Handler {
	auth := Auth(s.opts.APIKeyHash, s.opts.APISecret, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("POST /export", auth(http.HandlerFunc(s.handleExport)))
	mux.Handle("GET /jobs/{id}", auth(http.HandlerFunc(s.handleJob)))
	mux.Handle("GET /jobs/{id}/download", auth(http.HandlerFunc(s.handleDownload)))
	mux.Handle("POST /command", auth(http.HandlerFunc(s.handleCommand)))
	mux.Handle("GET /stream", auth(http.HandlerFunc(s.handleStream)))

	return CORS(s.opts.AllowedOrigins, s.opts.AppEnv, s.logger)(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "driver": s.admin.Describe()})
}

type ExportRequest struct {
	Query  string `json:"query"`
	Format string `json:"format"`
}

var formats = map[string]bool{"": true, "csv": true, "json": true, "excel": true, "pdf": true, "tsv": true}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if !formats[req.Format] {
		writeError(w, http.StatusBadRequest, "unsupported format: "+req.Format)
		return
	}
	if err := security.ValidateQuery(req.Query); err != nil {
		s.logger.Warn("Rejected query", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := worker.NewExportJob(req.Query, req.Format, s.opts.JobTimeout)
	if err := s.pool.Submit(job); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.logger.Info("Job submitted", "job_id", job.ID, "format", job.Format)
	writeJSON(w, http.StatusAccepted, job.Info())
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) (*worker.ExportJob, bool) {
	job, ok := s.pool.Job(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
	}
	return job, ok
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if job, ok := s.job(w, r); ok {
		writeJSON(w, http.StatusOK, job.Info())
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(w, r)
	if !ok {
		return
	}
	info := job.Info()
	if info.Status != worker.StatusCompleted {
		writeError(w, http.StatusConflict, "job is "+string(info.Status))
		return
	}

	f, err := s.store.OpenFile(r.Context(), info.Key)
	if err != nil {
		s.logger.Error("Failed to open export", "key", info.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open export")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(info.Key)+`"`)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("Download interrupted", "job_id", info.ID, "error", err)
	}
}

type CommandRequest struct {
	Subcommand string   `json:"subcommand"`
	Args       []string `json:"args"`
}

type CommandResponse struct {
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
	Code      int    `json:"code,omitempty"`
	SQLState  string `json:"sqlstate,omitempty"`
	Exception string `json:"exception,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	out, err := s.admin.Run(r.Context(), req.Subcommand, req.Args)
	if err == nil {
		writeJSON(w, http.StatusOK, CommandResponse{Result: out})
		return
	}

	resp := CommandResponse{Error: err.Error()}
	status := http.StatusBadGateway
	var nerr *driver.NativeError
	switch {
	case errors.As(err, &nerr):
		resp.Code = nerr.Code
		resp.SQLState = nerr.SQLState
		resp.Exception = nerr.Message
	case errors.Is(err, command.ErrWrongArgs),
		errors.Is(err, command.ErrUnknownSubcommand),
		errors.Is(err, command.ErrNotBoolean):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrade.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Websocket upgrade failed", "error", err)
		return
	}
	s.hub.Register(conn)

	// Subscribers only listen; reading detects the close.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			s.hub.Unregister(conn)
			return
		}
	}
}
