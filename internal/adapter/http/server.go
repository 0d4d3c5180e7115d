package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/ghcn-daily-etl/internal/adapter/noaa"
	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
	"github.com/couchcryptid/ghcn-daily-etl/internal/export"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Converter produces an encoded daily table for a station.
type Converter interface {
	Convert(ctx context.Context, station, format string) ([]byte, error)
}

// Server exposes health, readiness, metrics and on-demand station conversion.
type Server struct {
	httpServer *http.Server
	converter  Converter
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /stations/{id}/daily.{csv|xlsx} routes.
func NewServer(addr string, converter Converter, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			// Conversions download and re-encode whole station histories.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		converter: converter,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /stations/{id}/{file}", s.handleStation)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	station := strings.ToUpper(r.PathValue("id"))
	format, ok := strings.CutPrefix(r.PathValue("file"), "daily.")
	if !ok {
		http.NotFound(w, r)
		return
	}
	enc, err := export.ForFormat(format)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !domain.ValidStationID(station) {
		http.Error(w, "invalid station id "+station, http.StatusBadRequest)
		return
	}

	data, err := s.converter.Convert(r.Context(), station, format)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("station conversion failed", "station", station, "format", format, "status", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+station+enc.Extension()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// statusFor maps a conversion failure onto an HTTP status.
func statusFor(err error) int {
	var re *noaa.RetrievalError
	var de *domain.DecodeError
	switch {
	case errors.Is(err, noaa.ErrStationNotFound):
		return http.StatusNotFound
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity
	case errors.As(err, &re):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AllReady combines readiness checks; the first failure wins.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return readinessList(checkers)
}

type readinessList []sharedobs.ReadinessChecker

func (l readinessList) CheckReadiness(ctx context.Context) error {
	for _, c := range l {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
