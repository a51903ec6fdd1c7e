package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"techcal/internal/calendar"
	"techcal/internal/config"
	"techcal/internal/ics"
	appLog "techcal/internal/log"
	"techcal/internal/model"
)

// Reloader triggers an immediate reload of the data sources.
type Reloader interface {
	RefreshOnce(ctx context.Context) error
}

// Server exposes the calendar views as a JSON API plus an ICS export.
type Server struct {
	cfg      *config.Config
	svc      *calendar.Service
	reloader Reloader
	mux      *http.ServeMux
}

// NewServer constructs a new Server. reloader may be nil, in which case
// POST /api/reload is not available.
func NewServer(cfg *config.Config, svc *calendar.Service, reloader Reloader) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		reloader: reloader,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="techcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleCalendarICS)
	s.mux.HandleFunc("GET /api/months/{month}", s.handleMonth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/{file}", s.handleEventICS)
	s.mux.HandleFunc("GET /api/sponsors", s.handleSponsors)
	s.mux.HandleFunc("GET /api/sponsors/needed", s.handleNeedingSponsors)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is the JSON view of an event instance. Optional fields are
// omitted when absent.
type eventDTO struct {
	ID            string   `json:"id"`
	SourceID      string   `json:"source_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Date          string   `json:"date"`
	Day           int      `json:"day"`
	Weekday       string   `json:"weekday"`
	Type          string   `json:"type"`
	Recurring     bool     `json:"recurring"`
	Location      string   `json:"location,omitempty"`
	Organizers    []string `json:"organizers,omitempty"`
	Sponsors      []string `json:"sponsors,omitempty"`
	NeedsSponsors bool     `json:"needs_sponsors"`
	IsMajor       bool     `json:"is_major"`
	NewsWorthy    bool     `json:"news_worthy"`
}

type monthDTO struct {
	Index  int        `json:"index"`
	Name   string     `json:"name"`
	Events []eventDTO `json:"events"`
}

type calendarResponse struct {
	Name   string     `json:"name"`
	Year   int        `json:"year"`
	Types  []string   `json:"types"`
	Months []monthDTO `json:"months"`
}

type eventsResponse struct {
	Year   int        `json:"year"`
	Events []eventDTO `json:"events"`
}

type sponsorDTO struct {
	Name   string     `json:"name"`
	Events []eventDTO `json:"events"`
}

type sponsorsResponse struct {
	Year     int          `json:"year"`
	Sponsors []sponsorDTO `json:"sponsors"`
}

type statusResponse struct {
	Year           int        `json:"year"`
	Loaded         bool       `json:"loaded"`
	Origin         string     `json:"origin,omitempty"`
	Fingerprint    string     `json:"fingerprint,omitempty"`
	LoadedAt       *time.Time `json:"loaded_at,omitempty"`
	RecurringRules int        `json:"recurring_rules"`
	OneTimeEvents  int        `json:"one_time_events"`
	Instances      int        `json:"instances"`
	Error          string     `json:"error,omitempty"`
}

func toEventDTO(ev model.EventInstance) eventDTO {
	return eventDTO{
		ID:            ev.ID,
		SourceID:      ev.SourceID,
		Title:         ev.Title,
		Description:   ev.Description,
		Date:          ev.Date.Format(model.DateLayout),
		Day:           ev.Date.Day(),
		Weekday:       ev.Date.Weekday().String(),
		Type:          string(ev.Type),
		Recurring:     ev.Recurring,
		Location:      ev.Location,
		Organizers:    ev.Organizers,
		Sponsors:      ev.Sponsors,
		NeedsSponsors: ev.NeedsSponsors,
		IsMajor:       ev.IsMajor,
		NewsWorthy:    ev.NewsWorthy,
	}
}

func toEventDTOs(evs []model.EventInstance) []eventDTO {
	out := make([]eventDTO, 0, len(evs))
	for _, ev := range evs {
		out = append(out, toEventDTO(ev))
	}
	return out
}

func toMonthDTO(m calendar.MonthView) monthDTO {
	return monthDTO{Index: m.Index, Name: m.Name, Events: toEventDTOs(m.Events)}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.svc.Status()
	resp := statusResponse{
		Year:           st.Year,
		Loaded:         st.Loaded,
		Origin:         st.Origin,
		Fingerprint:    st.Fingerprint,
		RecurringRules: st.RecurringRules,
		OneTimeEvents:  st.OneTimeEvents,
		Instances:      st.Instances,
		Error:          st.LastError,
	}
	if !st.LoadedAt.IsZero() {
		resp.LoadedAt = &st.LoadedAt
	}
	if !st.Loaded && resp.Error == "" {
		resp.Error = calendar.LoadFailedMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar returns all twelve months.
//
// GET /api/calendar
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	months := s.svc.Months()
	resp := calendarResponse{
		Name:   s.cfg.CalendarName,
		Year:   s.svc.Year(),
		Types:  make([]string, 0, len(model.EventTypes)),
		Months: make([]monthDTO, 0, len(months)),
	}
	for _, t := range model.EventTypes {
		resp.Types = append(resp.Types, string(t))
	}
	for _, m := range months {
		resp.Months = append(resp.Months, toMonthDTO(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMonth returns one month; {month} is 0-based (0 = January).
//
// GET /api/months/{month}
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be an integer between 0 and 11")
		return
	}
	m, err := s.svc.Month(idx)
	if err != nil {
		if errors.Is(err, calendar.ErrMonthOutOfRange) {
			writeError(w, http.StatusBadRequest, "month must be an integer between 0 and 11")
			return
		}
		appLog.Error("api month failed", err, "month", idx)
		writeError(w, http.StatusInternalServerError, "failed to aggregate month")
		return
	}
	writeJSON(w, http.StatusOK, toMonthDTO(m))
}

// handleEvents returns the full chronological list.
//
// GET /api/events
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, eventsResponse{
		Year:   s.svc.Year(),
		Events: toEventDTOs(s.svc.All()),
	})
}

func (s *Server) handleSponsors(w http.ResponseWriter, _ *http.Request) {
	groups := s.svc.Sponsors()
	resp := sponsorsResponse{
		Year:     s.svc.Year(),
		Sponsors: make([]sponsorDTO, 0, len(groups)),
	}
	for _, g := range groups {
		resp.Sponsors = append(resp.Sponsors, sponsorDTO{Name: g.Name, Events: toEventDTOs(g.Events)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNeedingSponsors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, eventsResponse{
		Year:   s.svc.Year(),
		Events: toEventDTOs(s.svc.NeedingSponsors()),
	})
}

func (s *Server) exportOptions() ics.ExportOptions {
	return ics.ExportOptions{Name: s.cfg.CalendarName}
}

// handleCalendarICS exports the whole year as text/calendar.
//
// GET /api/calendar.ics
func (s *Server) handleCalendarICS(w http.ResponseWriter, _ *http.Request) {
	data, year := s.svc.Snapshot()
	if data == nil {
		data = &model.Calendar{}
	}
	body, err := ics.Export(data, year, s.exportOptions())
	if err != nil {
		appLog.Error("api ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	writeICS(w, "techcal-"+strconv.Itoa(year)+".ics", body)
}

// handleEventICS exports a single instance ("add to calendar").
//
// GET /api/events/{id}.ics
func (s *Server) handleEventICS(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	id, ok := strings.CutSuffix(file, ".ics")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	for _, ev := range s.svc.All() {
		if ev.ID == id {
			writeICS(w, file, ics.EventICS(ev, s.exportOptions()))
			return
		}
	}
	writeError(w, http.StatusNotFound, "event not found")
}

// handleReload reloads the data sources synchronously.
//
// POST /api/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeError(w, http.StatusNotImplemented, "reload not available")
		return
	}
	if err := s.reloader.RefreshOnce(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, calendar.LoadFailedMessage)
		return
	}
	s.handleStatus(w, r)
}

func writeICS(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
