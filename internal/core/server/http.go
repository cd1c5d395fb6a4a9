package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/solatis/formkeeper/internal/core/api"
	"github.com/solatis/formkeeper/internal/core/auth"
	"github.com/solatis/formkeeper/internal/core/config"
	"github.com/solatis/formkeeper/internal/core/metrics"
	"github.com/solatis/formkeeper/internal/types"
)

// HTTPServer serves the form service as JSON over HTTP, plus health and
// metrics endpoints.
type HTTPServer struct {
	server *http.Server
	config *config.ServerConfig
}

// NewHTTPServer creates the HTTP server and its routes.
func NewHTTPServer(cfg *config.ServerConfig, service *api.FormService, authenticator *auth.Authenticator, m *metrics.Metrics, logger *slog.Logger) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}
	if m == nil || logger == nil {
		return nil, fmt.Errorf("metrics and logger cannot be nil")
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              cfg.HTTPAddr(),
			Handler:           NewHandler(cfg, service, authenticator, m, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		config: cfg,
	}, nil
}

// Start binds the listener and serves HTTP requests.
// Blocks until Shutdown is called; a clean shutdown returns nil.
func (s *HTTPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	return s.Serve(listener)
}

// Serve serves HTTP requests on an existing listener.
func (s *HTTPServer) Serve(listener net.Listener) error {
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// httpHandler routes HTTP requests to api.FormService.
type httpHandler struct {
	service         *api.FormService
	metrics         *metrics.Metrics
	logger          *slog.Logger
	maxDocumentSize int64
}

// NewHandler builds the chi router:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /v1/forms                          list current revisions (ETag)
//	POST   /v1/forms                          create a form
//	GET    /v1/forms/{formID}                 current or ?revision= spec
//	PUT    /v1/forms/{formID}                 store a revision (If-Match)
//	DELETE /v1/forms/{formID}
//	GET    /v1/forms/{formID}/revisions
//	POST   /v1/forms/{formID}/resolve
//	POST   /v1/forms/{formID}/resolve-delta
//
// Everything under /v1 requires an x-api-key header.
func NewHandler(cfg *config.ServerConfig, service *api.FormService, authenticator *auth.Authenticator, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	h := &httpHandler{
		service:         service,
		metrics:         m,
		logger:          logger,
		maxDocumentSize: int64(2 * cfg.MaxDocumentSize),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/v1/forms", func(r chi.Router) {
		r.Use(authenticator.Middleware)
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Get("/", h.listSpecs)
		r.Post("/", h.putSpec)
		r.Route("/{formID}", func(r chi.Router) {
			r.Get("/", h.getSpec)
			r.Put("/", h.putSpec)
			r.Delete("/", h.deleteForm)
			r.Get("/revisions", h.listRevisions)
			r.Post("/resolve", h.resolve)
			r.Post("/resolve-delta", h.resolveDelta)
		})
	})

	return r
}

func (h *httpHandler) listSpecs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.service.ListSpecs(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	etag := strconv.Quote(list.ETag)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, specListResponse(list.Specs, list.ETag))
}

func (h *httpHandler) putSpec(w http.ResponseWriter, r *http.Request) {
	var req api.PutSpecRequest
	if !h.decode(w, r, &req) {
		return
	}
	if formID := chi.URLParam(r, "formID"); formID != "" {
		req.FormID = types.FormID(formID)
	}
	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" {
		req.IfMatch = types.RevisionID(unquote(ifMatch))
	}

	resp, err := h.service.PutSpec(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(string(resp.Revision.RevisionID)))
	status := http.StatusOK
	if resp.Revision.ParentRevisionID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (h *httpHandler) getSpec(w http.ResponseWriter, r *http.Request) {
	formID := types.FormID(chi.URLParam(r, "formID"))
	revisionID := types.RevisionID(r.URL.Query().Get("revision"))

	resp, err := h.service.GetSpec(r.Context(), formID, revisionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(string(resp.Revision.RevisionID)))
	writeJSON(w, http.StatusOK, resp)
}

func (h *httpHandler) deleteForm(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteForm(r.Context(), types.FormID(chi.URLParam(r, "formID"))); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpHandler) listRevisions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	revs, err := h.service.ListRevisions(r.Context(), types.FormID(chi.URLParam(r, "formID")), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revs})
}

func (h *httpHandler) resolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req api.ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.FormID = types.FormID(chi.URLParam(r, "formID"))

	resp, err := h.service.Resolve(r.Context(), &req)
	h.metrics.ObserveResolve("http", time.Since(start), err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *httpHandler) resolveDelta(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req api.ResolveDeltaRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.FormID = types.FormID(chi.URLParam(r, "formID"))

	resp, err := h.service.ResolveDelta(r.Context(), &req)
	h.metrics.ObserveResolve("http", time.Since(start), err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON request body, answering 400 or 413 itself on failure.
func (h *httpHandler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxDocumentSize)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, fmt.Errorf("%w: request body over %d bytes", types.ErrDocumentTooLarge, tooLarge.Limit))
			return false
		}
		h.fail(w, r, fmt.Errorf("%w: request body: %v", api.ErrInvalidArgument, err))
		return false
	}
	return true
}

// fail writes an error response. Malformed specs list their problems.
func (h *httpHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := api.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"transport", "http",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
	} else {
		h.logger.Debug("request rejected",
			"transport", "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", code,
			"error", err)
	}

	body := map[string]any{"error": err.Error()}
	if problems := api.Problems(err); problems != nil {
		body["problems"] = problems
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", api.ErrInvalidArgument, name)
	}
	return n, nil
}

// unquote strips the quotes of an entity tag.
func unquote(etag string) string {
	if s, err := strconv.Unquote(etag); err == nil {
		return s
	}
	return etag
}
