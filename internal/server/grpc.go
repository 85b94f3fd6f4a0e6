package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/docminer/internal/common"
)

// RequestIDHeader carries a caller supplied request id.
const RequestIDHeader = "x-request-id"

// Server is a grpc.Server with the extraction, health and (optionally) reflection services.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewServer(svc ExtractionServer, logger *slog.Logger, withReflection bool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recoverInterceptor(logger),
		loggingInterceptor(logger),
	))
	RegisterExtractionServer(gs, svc)

	// Health service
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	if withReflection {
		reflection.Register(gs)
	}
	return &Server{grpc: gs, health: hs, logger: logger}
}

// GRPC exposes the underlying server.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Serve accepts connections on lis until ctx is done, then drains in-flight calls.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("grpc.serve", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.logger.Info("grpc.shutdown")
	s.health.Shutdown()
	s.grpc.GracefulStop()
	return nil
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" {
				ctx = common.WithRequestID(ctx, v[0])
			}
		}
		ctx, rid := common.EnsureRequestID(ctx)
		log := logger.With("req_id", rid, "method", info.FullMethod)
		ctx = common.WithLogger(ctx, log)

		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("grpc.request.error",
				"code", status.Code(err).String(),
				"error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, err
		}
		log.Info("grpc.request.ok", "elapsed_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}

func recoverInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc.request.panic", "method", info.FullMethod, "panic", r)
				err = common.InternalError("internal error")
			}
		}()
		return handler(ctx, req)
	}
}
