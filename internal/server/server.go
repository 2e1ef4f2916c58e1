// Package server exposes the carrier hub over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/internal/graphql"
	"github.com/tournevent/carrierhub/internal/labels"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// maxBodyBytes bounds a GraphQL request body.
const maxBodyBytes = 1 << 20

// Server is the HTTP server for the carrier hub.
type Server struct {
	port     int
	resolver *graphql.Resolver
	labels   *labels.Store
	logger   *otelzap.Logger
	gatherer prometheus.Gatherer
	health   func(ctx context.Context) error
	router   *mux.Router
}

// Config holds server configuration.
type Config struct {
	Port int
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	// HealthCheck is run by /health when set.
	HealthCheck func(ctx context.Context) error
}

// New creates a new server instance.
func New(cfg Config, resolver *graphql.Resolver, labelStore *labels.Store, logger *otelzap.Logger) *Server {
	s := &Server{
		port:     cfg.Port,
		resolver: resolver,
		labels:   labelStore,
		logger:   logger,
		gatherer: cfg.Gatherer,
		health:   cfg.HealthCheck,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"})
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Code: "NOT_FOUND", Message: "route not found"})
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/graphql", s.handleGraphQL).Methods(http.MethodPost)
	r.HandleFunc("/shipments/{id:[0-9]+}/labels/{labelID:[0-9]+}", s.handleLabel).Methods(http.MethodGet)
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Ctx(r.Context()).Warn("Health check failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphql.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []map[string]string{{"message": "invalid JSON: " + err.Error()}},
		})
		return
	}
	writeJSON(w, http.StatusOK, s.resolver.Execute(r.Context(), req))
}

// handleLabel serves the decoded label document. printed=true flags the label
// once the body is written.
func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shipmentID, _ := strconv.ParseInt(vars["id"], 10, 64)
	labelID, _ := strconv.ParseInt(vars["labelID"], 10, 64)
	ctx := r.Context()

	label, data, err := s.labels.Content(ctx, shipmentID, labelID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", labels.ContentType(label.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`inline; filename="%s.%s"`, label.TrackerCode, label.Format))
	if _, err := w.Write(data); err != nil {
		s.logger.Ctx(ctx).Warn("Label write failed", zap.Int64("label_id", labelID), zap.Error(err))
		return
	}

	if printed, _ := strconv.ParseBool(r.URL.Query().Get("printed")); printed {
		if err := s.labels.MarkPrinted(ctx, shipmentID, labelID); err != nil {
			s.logger.Ctx(ctx).Warn("Mark label printed failed", zap.Int64("label_id", labelID), zap.Error(err))
		}
	}
}

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		s.logger.Ctx(r.Context()).Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
		return
	}
	writeJSON(w, derr.Kind.HTTPStatus(), errorBody{Code: derr.Code, Message: derr.Message, Fields: derr.Fields})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Ctx(r.Context()).Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
