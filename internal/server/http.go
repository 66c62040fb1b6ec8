package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"calllog_viewer/internal/calls"
	"calllog_viewer/internal/controller"
	"calllog_viewer/internal/logger"
	"calllog_viewer/internal/mango"
)

type Options struct {
	PageSize    int
	Location    *time.Location
	SessionTTL  time.Duration
	MaxSessions int
	Now         func() time.Time
}

type Server struct {
	fetcher  controller.Fetcher
	grades   controller.GradeSource
	loc      *time.Location
	sessions *sessionStore
}

// New builds the HTTP surface. grades may be nil.
func New(fetcher controller.Fetcher, grades controller.GradeSource, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1024
	}

	s := &Server{fetcher: fetcher, grades: grades, loc: opts.Location}
	s.sessions = newSessionStore(opts.MaxSessions, opts.SessionTTL, func(id string) *controller.Controller {
		return controller.New(s.fetcher, controller.Options{
			PageSize: opts.PageSize,
			Location: opts.Location,
			Now:      opts.Now,
			Grades:   s.grades,
			Session:  id,
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/calls", func(r chi.Router) {
		r.Get("/", s.handleView)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/call-type", s.handleCallType)
		r.Post("/filters/reset", s.handleResetFilters)
		r.Post("/popup", s.handlePopup)
		r.Post("/range", s.handleRange)
		r.Post("/calendar", s.handleCalendar)
		r.Post("/sort", s.handleSort)
		r.Post("/page/next", s.handleNextPage)
		r.Post("/page/prev", s.handlePrevPage)
		r.Post("/{id}/player", s.handleOpenPlayer)
		r.Delete("/player", s.handleClosePlayer)
		r.Get("/player/recording", s.handleRecording)
	})

	return r
}

// Close ends every session.
func (s *Server) Close() {
	s.sessions.purge()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r, s.sessions.get(w, r))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	c.Refresh()
	s.writeView(w, r, c)
}

type callTypeRequest struct {
	CallType mango.CallType `json:"call_type"`
}

func (s *Server) handleCallType(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	var req callTypeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.SetCallType(req.CallType); err != nil {
		writeError(w, err)
		return
	}
	s.writeView(w, r, c)
}

func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	c.ResetFilters()
	s.writeView(w, r, c)
}

type popupRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handlePopup(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	var req popupRequest
	if !decode(w, r, &req) {
		return
	}
	switch req.Mode {
	case "none":
		c.CloseOverlay()
	case "call_type":
		c.ToggleCallTypePopup()
	case "date":
		c.OpenDatePopup()
	default:
		writeError(w, controller.ErrInvalidArgument)
		return
	}
	s.writeView(w, r, c)
}

type rangeRequest struct {
	Range calls.DateRange `json:"range"`
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	var req rangeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.SelectDateRange(req.Range); err != nil {
		writeError(w, err)
		return
	}
	s.writeView(w, r, c)
}

type calendarRequest struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	var req calendarRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := s.parseDay(req.Start)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := s.parseDay(req.End)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := c.PickCalendarRange(start, end); err != nil {
		writeError(w, err)
		return
	}
	s.writeView(w, r, c)
}

func (s *Server) parseDay(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*v), s.loc)
	if err != nil {
		return nil, errors.Join(controller.ErrInvalidArgument, err)
	}
	return &t, nil
}

type sortRequest struct {
	SortBy mango.SortBy `json:"sort_by"`
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	var req sortRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.SortBy(req.SortBy); err != nil {
		writeError(w, err)
		return
	}
	s.writeView(w, r, c)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	c.NextPage()
	s.writeView(w, r, c)
}

func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	c.PrevPage()
	s.writeView(w, r, c)
}

func (s *Server) handleOpenPlayer(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	id, err := cast.ToInt64E(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Join(controller.ErrInvalidArgument, err))
		return
	}
	if err := c.OpenPlayer(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleClosePlayer(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	c.ClosePlayer()
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.get(w, r)
	rec, err := c.Recording(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	data := rec.Bytes()
	if data == nil {
		writeError(w, controller.ErrPlayerClosed)
		return
	}
	noStore(w)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", cast.ToString(len(data)))
	_, _ = w.Write(data)
}

// writeView waits for the latest list fetch unless ?wait=false.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, c *controller.Controller) {
	wait := true
	if v := r.URL.Query().Get("wait"); v != "" {
		wait = cast.ToBool(v)
	}
	if wait {
		if err := c.Wait(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, errors.Join(controller.ErrInvalidArgument, err))
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var te *mango.TransportError
	switch {
	case errors.Is(err, controller.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, controller.ErrUnknownRow):
		status = http.StatusNotFound
	case errors.Is(err, controller.ErrNoRecording):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, controller.ErrPlayerClosed):
		status = http.StatusConflict
	case errors.Is(err, controller.ErrClosed):
		status = http.StatusGone
	case errors.As(err, &te):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	noStore(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response", zap.Error(err))
	}
}
