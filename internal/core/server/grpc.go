// Package server provides gRPC and HTTP server lifecycle management for the
// form service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/solatis/formkeeper/internal/core/api"
	"github.com/solatis/formkeeper/internal/core/auth"
	"github.com/solatis/formkeeper/internal/core/config"
	"github.com/solatis/formkeeper/internal/core/metrics"
	"github.com/solatis/formkeeper/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	config   *config.ServerConfig
}

// NewGRPCServer creates gRPC server with auth interceptor and service registration.
func NewGRPCServer(cfg *config.ServerConfig, service *api.FormService, authenticator *auth.Authenticator, m *metrics.Metrics, logger *slog.Logger) (*GRPCServer, error) {
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

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			timeoutInterceptor(cfg.RequestTimeout),
			authenticator.UnaryInterceptor(),
		),
		// Specs travel as JSON inside a Struct, which is larger on the wire
		grpc.MaxRecvMsgSize(2 * cfg.MaxDocumentSize),
		grpc.MaxConcurrentStreams(uint32(cfg.MaxConnections)),
	}

	server := grpc.NewServer(opts...)
	server.RegisterService(&FormServiceDesc, &formHandler{
		service: service,
		metrics: m,
		logger:  logger,
	})

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
	}, nil
}

// timeoutInterceptor bounds every call by the configured request timeout.
func timeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// Start binds listener and serves gRPC requests.
// Blocks until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := s.config.GRPCAddr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves gRPC requests on an existing listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener
	return s.server.Serve(listener)
}

// Shutdown gracefully stops server, forcing a stop when ctx expires.
// Health checks report NOT_SERVING while draining.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop: %w", ctx.Err())
	}
}

// formHandler implements FormServiceServer over api.FormService.
type formHandler struct {
	service *api.FormService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (h *formHandler) PutSpec(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.PutSpecRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	resp, err := h.service.PutSpec(ctx, &req)
	return h.reply("PutSpec", resp, err)
}

func (h *formHandler) GetSpec(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		FormID     types.FormID     `json:"form_id"`
		RevisionID types.RevisionID `json:"revision_id"`
	}
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	resp, err := h.service.GetSpec(ctx, req.FormID, req.RevisionID)
	return h.reply("GetSpec", resp, err)
}

func (h *formHandler) ListSpecs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Limit int `json:"limit"`
	}
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	list, err := h.service.ListSpecs(ctx, req.Limit)
	if err != nil {
		return h.reply("ListSpecs", nil, err)
	}
	return h.reply("ListSpecs", specListResponse(list.Specs, list.ETag), nil)
}

func (h *formHandler) ListRevisions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		FormID types.FormID `json:"form_id"`
		Limit  int          `json:"limit"`
	}
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	revs, err := h.service.ListRevisions(ctx, req.FormID, req.Limit)
	if err != nil {
		return h.reply("ListRevisions", nil, err)
	}
	return h.reply("ListRevisions", map[string]any{"revisions": revs}, nil)
}

func (h *formHandler) DeleteForm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		FormID types.FormID `json:"form_id"`
	}
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	err := h.service.DeleteForm(ctx, req.FormID)
	return h.reply("DeleteForm", map[string]any{}, err)
}

func (h *formHandler) Resolve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	var req api.ResolveRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	resp, err := h.service.Resolve(ctx, &req)
	h.metrics.ObserveResolve("grpc", time.Since(start), err)
	return h.reply("Resolve", resp, err)
}

func (h *formHandler) ResolveDelta(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	var req api.ResolveDeltaRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	resp, err := h.service.ResolveDelta(ctx, &req)
	h.metrics.ObserveResolve("grpc", time.Since(start), err)
	return h.reply("ResolveDelta", resp, err)
}

// reply encodes a response or converts err to a status, logging failures
// that are not the caller's fault.
func (h *formHandler) reply(method string, resp any, err error) (*structpb.Struct, error) {
	if err != nil {
		st := api.Status(err)
		if st.Code() == codes.Unavailable || st.Code() == codes.Internal {
			h.logger.Error("request failed", "transport", "grpc", "method", method, "error", err)
		} else {
			h.logger.Debug("request rejected", "transport", "grpc", "method", method, "code", st.Code().String(), "error", err)
		}
		return nil, st.Err()
	}
	out, err := encodeStruct(resp)
	if err != nil {
		h.logger.Error("response encoding failed", "transport", "grpc", "method", method, "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// decodeStruct maps a request Struct onto a request type through its JSON
// encoding.
func decodeStruct(in *structpb.Struct, dest any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

// encodeStruct converts a response type to a Struct through its JSON
// encoding.
func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func specListResponse(specs any, etag string) map[string]any {
	return map[string]any{"specs": specs, "etag": etag}
}
