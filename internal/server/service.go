package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cargoclaro/glosa-sub000/internal/async"
	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/expediente"
	"github.com/cargoclaro/glosa-sub000/internal/pipeline"
)

// ReviewService serves expediente reviews. Requests carry {"dir": "<expediente directory>"}.
type ReviewService struct {
	reviewer async.Reviewer
	queue    async.Queue
	logger   *slog.Logger
}

// NewReviewService builds the service; queue may be nil, in which case Enqueue is unavailable.
func NewReviewService(reviewer async.Reviewer, queue async.Queue, logger *slog.Logger) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{reviewer: reviewer, queue: queue, logger: logger}
}

func requestDir(in *structpb.Struct) (string, error) {
	dir := strings.TrimSpace(in.GetFields()["dir"].GetStringValue())
	if dir == "" {
		return "", common.InvalidArgumentError("dir is required")
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return "", common.InvalidArgumentErrorf("dir %q is not a directory", dir)
	}
	return dir, nil
}

// Review runs a synchronous review and returns the outcome as a struct.
func (s *ReviewService) Review(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	dir, err := requestDir(in)
	if err != nil {
		return nil, err
	}
	out, err := s.reviewer.ReviewDirectory(ctx, dir)
	if err != nil {
		s.logger.Warn("server.review.failed", "req_id", common.RequestIDFromContext(ctx), "dir", dir, "error", err)
		return nil, reviewStatus(err)
	}
	res, err := toStruct(out)
	if err != nil {
		return nil, common.InternalErrorf("encode outcome: %v", err)
	}
	return res, nil
}

// Enqueue schedules a review on the worker queue and returns immediately.
func (s *ReviewService) Enqueue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.queue == nil {
		return nil, status.Error(codes.Unimplemented, "no review queue configured")
	}
	dir, err := requestDir(in)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, async.Job{Dir: dir, SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)}); err != nil {
		if errors.Is(err, async.ErrQueueClosed) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, common.InternalErrorf("enqueue: %v", err)
	}
	return structpb.NewStruct(map[string]any{"dir": dir, "queued": true})
}

func reviewStatus(err error) error {
	var ce *expediente.CompositionError
	switch {
	case errors.As(err, &ce):
		return common.FailedPreconditionError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(common.StatusCode(err), err.Error())
	}
}

func toStruct(out *pipeline.Outcome) (*structpb.Struct, error) {
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// RequestIDInterceptor tags each call with a request ID (from x-request-id metadata when
// present) and logs its duration.
func RequestIDInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)
		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"method", info.FullMethod,
			"req_id", reqID,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// NewGRPCServer registers the review and health services.
func NewGRPCServer(svc ReviewServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.ChainUnaryInterceptor(RequestIDInterceptor(logger)))
	s := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	RegisterReviewServer(s, svc)
	return s, hs
}
