// ABOUTME: JSON web API server for leads, the dashboard, and calendar linkage
// ABOUTME: Every /api route requires a bearer JWT naming the viewer
package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/db"
	"github.com/harperreed/leadbook/handlers"
	"github.com/harperreed/leadbook/models"
)

type Options struct {
	// Secret signs and verifies bearer tokens. Empty disables the API.
	Secret   string
	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time
}

type Server struct {
	db        *sql.DB
	connector *calendar.Connector
	secret    string
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

func NewServer(database *sql.DB, connector *calendar.Connector, opts Options) *Server {
	s := &Server{
		db:        database,
		connector: connector,
		secret:    opts.Secret,
		loc:       opts.Location,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/leads", s.authenticated(s.handleListLeads))
	mux.HandleFunc("POST /api/leads", s.authenticated(s.handleCreateLead))
	mux.HandleFunc("GET /api/leads/{id}", s.authenticated(s.handleGetLead))
	mux.HandleFunc("PUT /api/leads/{id}", s.authenticated(s.handleUpdateLead))
	mux.HandleFunc("DELETE /api/leads/{id}", s.authenticated(s.handleDeleteLead))
	mux.HandleFunc("GET /api/leads/{id}/events", s.authenticated(s.handleLeadEvents))
	mux.HandleFunc("GET /api/leads/{id}/activity", s.authenticated(s.handleLeadActivity))
	mux.HandleFunc("GET /api/dashboard", s.authenticated(s.handleDashboard))
	mux.HandleFunc("GET /api/calendar/events", s.authenticated(s.handleCalendarEvents))
	mux.HandleFunc("GET /api/calendar/status", s.authenticated(s.handleCalendarStatus))
	mux.HandleFunc("POST /api/calendar/disconnect", s.authenticated(s.handleDisconnect))

	return s.logRequests(mux)
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting web server", "addr", "http://localhost"+srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", s.now().Sub(start))
	})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	q := r.URL.Query()
	input := handlers.FindLeadsInput{
		Query:      q.Get("q"),
		Status:     q.Get("status"),
		Source:     q.Get("source"),
		Interest:   q.Get("interest"),
		AssignedTo: q.Get("assigned_to"),
		Sort:       q.Get("sort"),
	}

	var err error
	if input.MinBudget, err = floatParam(q.Get("min_budget")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid min_budget")
		return
	}
	if input.MaxBudget, err = floatParam(q.Get("max_budget")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_budget")
		return
	}
	if v := q.Get("limit"); v != "" {
		if input.Limit, err = strconv.Atoi(v); err != nil || input.Limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	_, out, err := handlers.NewLeadHandlers(s.db, viewer).FindLeads(r.Context(), nil, input)
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	var input handlers.AddLeadInput
	if !decodeBody(w, r, &input) {
		return
	}

	_, out, err := handlers.NewLeadHandlers(s.db, viewer).AddLead(r.Context(), nil, input)
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	out, err := handlers.NewLeadHandlers(s.db, viewer).GetLead(r.PathValue("id"))
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	var input handlers.UpdateLeadInput
	if !decodeBody(w, r, &input) {
		return
	}
	input.ID = r.PathValue("id")

	_, out, err := handlers.NewLeadHandlers(s.db, viewer).UpdateLead(r.Context(), nil, input)
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	input := handlers.DeleteLeadInput{ID: r.PathValue("id")}
	_, out, err := handlers.NewLeadHandlers(s.db, viewer).DeleteLead(r.Context(), nil, input)
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeadEvents(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	input := handlers.ListLeadEventsInput{LeadID: r.PathValue("id"), Limit: 100}
	_, out, err := handlers.NewLeadHandlers(s.db, viewer).ListLeadEvents(r.Context(), nil, input)
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeadActivity(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	activity, err := handlers.NewLeadHandlers(s.db, viewer).LeadActivity(r.PathValue("id"), 50)
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": activity})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, _ models.Viewer) {
	_, out, err := handlers.NewDashboardHandlers(s.db, s.loc).LeadDashboard(r.Context(), nil, handlers.LeadDashboardInput{})
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	days, err := intParam(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid days")
		return
	}

	h := handlers.NewEventHandlers(s.db, viewer, s.connector, s.loc, s.logger)
	_, out, err := h.ListCalendarEvents(r.Context(), nil, handlers.ListCalendarEventsInput{Days: days})
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type calendarStatus struct {
	State       string                  `json:"state"`
	Auth        string                  `json:"auth"`
	LastError   string                  `json:"last_error,omitempty"`
	FailedStage string                  `json:"failed_stage,omitempty"`
	Account     *models.CalendarAccount `json:"account,omitempty"`
	CheckedAt   string                  `json:"checked_at"`
}

func (s *Server) handleCalendarStatus(w http.ResponseWriter, r *http.Request, _ models.Viewer) {
	status := calendarStatus{
		State:     s.connector.State().String(),
		Auth:      s.connector.AuthState().String(),
		CheckedAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.connector.LastError(); err != nil {
		status.LastError = err.Error()
		var initErr *calendar.InitializationError
		if errors.As(err, &initErr) {
			status.FailedStage = string(initErr.Stage)
		}
	}

	account, err := db.GetCalendarAccount(s.db, calendar.ProviderGoogle)
	if err != nil {
		s.writeHandlerError(w, err)
		return
	}
	status.Account = account

	writeJSON(w, http.StatusOK, status)
}

// handleDisconnect revokes the provider grant, signs out, and forgets the linked account.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request, viewer models.Viewer) {
	if err := s.connector.Disconnect(r.Context()); err != nil {
		s.logger.Error("calendar disconnect failed", "viewer", viewer.ID, "error", err)
		msg := err.Error()
		_ = db.UpdateCalendarAccountStatus(s.db, calendar.ProviderGoogle, models.AccountStatusError, &msg)
		s.writeHandlerError(w, err)
		return
	}

	if err := db.UnlinkCalendarAccount(s.db, calendar.ProviderGoogle); err != nil {
		s.writeHandlerError(w, err)
		return
	}

	s.logger.Info("calendar disconnected", "viewer", viewer.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

func (s *Server) writeHandlerError(w http.ResponseWriter, err error) {
	var initErr *calendar.InitializationError
	var providerErr *calendar.ProviderRequestError

	switch {
	case errors.Is(err, handlers.ErrInvalidInput), errors.Is(err, calendar.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, handlers.ErrLeadNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, handlers.ErrNotPermitted):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, calendar.ErrNotInitialized), errors.Is(err, handlers.ErrCalendarNotConnected):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &initErr), errors.As(err, &providerErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func floatParam(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
