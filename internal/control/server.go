// Package control is the local HTTP surface the UI uses to read client
// status and to pause or resume the session.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marsgrid/ticksync/internal/lifecycle"
	"github.com/marsgrid/ticksync/internal/registry"
	"github.com/marsgrid/ticksync/internal/session"
	"github.com/marsgrid/ticksync/pkg/core"
)

const commandTimeout = 5 * time.Second

// Controller is satisfied by *session.Runner.
type Controller interface {
	Status() session.Status
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// Feed is satisfied by *killfeed.Feed.
type Feed interface {
	Lines() []string
	Outcome() string
}

// Server handles HTTP requests
type Server struct {
	ctrl      Controller
	feed      Feed
	logger    *slog.Logger
	startTime time.Time
	now       func() time.Time
}

// NewServer creates a control server. feed may be nil.
func NewServer(ctrl Controller, feed Feed, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctrl:      ctrl,
		feed:      feed,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Session     string         `json:"session"`
	Address     string         `json:"address"`
	Lifecycle   string         `json:"lifecycle"`
	Transport   string         `json:"transport"`
	Tick        int            `json:"tick"`
	TotalSteps  int            `json:"totalSteps"`
	LastAcked   *int           `json:"lastAcked,omitempty"`
	Disconnects int            `json:"disconnects"`
	Pending     int            `json:"pending"`
	Entities    registry.Sizes `json:"entities"`
	MapPath     string         `json:"mapPath,omitempty"`
	Uptime      string         `json:"uptime"`
	Finished    bool           `json:"finished"`
	Outcome     string         `json:"outcome,omitempty"`
	KillFeed    []string       `json:"killFeed"`
}

// CommandResponse is the body of the command endpoints.
type CommandResponse struct {
	Lifecycle string `json:"lifecycle"`
	Error     string `json:"error,omitempty"`
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/scores", s.handleScores)
	r.Post("/pause", s.handleCommand(s.ctrl.Pause))
	r.Post("/resume", s.handleCommand(s.ctrl.Resume))

	return r
}

// ListenAndServe serves Routes on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("Control server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"request_id": middleware.GetReqID(r.Context()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.Status()
	resp := StatusResponse{
		Session:     st.SessionID,
		Address:     st.Address,
		Lifecycle:   st.Lifecycle,
		Transport:   st.Transport,
		Tick:        st.Tick,
		TotalSteps:  st.TotalSteps,
		Disconnects: st.Disconnects,
		Pending:     st.Pending,
		Entities:    st.Sizes,
		MapPath:     st.MapPath,
		Uptime:      strings.TrimSpace(humanize.RelTime(s.startTime, s.now(), "", "")),
		Finished:    st.Finished,
		KillFeed:    []string{},
	}
	if st.HasAcked {
		last := st.LastAcked
		resp.LastAcked = &last
	}
	if s.feed != nil {
		resp.KillFeed = s.feed.Lines()
		resp.Outcome = s.feed.Outcome()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	scores := s.ctrl.Status().Scores
	if scores == nil {
		scores = []core.Score{}
	}
	s.writeJSON(w, http.StatusOK, scores)
}

func (s *Server) handleCommand(run func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
		defer cancel()

		err := run(ctx)
		resp := CommandResponse{Lifecycle: s.ctrl.Status().Lifecycle}
		if err == nil {
			s.writeJSON(w, http.StatusOK, resp)
			return
		}

		resp.Error = err.Error()
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("Control command failed", "path", r.URL.Path, "error", err)
		}
		s.writeJSON(w, status, resp)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrInboxFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrStopped):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}
