package api

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/signalsfoundry/scanhead-simulator/internal/logging"
	"github.com/signalsfoundry/scanhead-simulator/internal/observability"
)

const requestIDMetadataKey = "x-request-id"

// RequestIDUnaryServerInterceptor ensures a request_id is present on the
// context, sourcing it from inbound metadata if provided, and attaches a
// per-request logger annotated with the method.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(requestContext(ctx, base, info.FullMethod), req)
	}
}

// RequestIDStreamServerInterceptor is the streaming counterpart of
// RequestIDUnaryServerInterceptor.
func RequestIDStreamServerInterceptor(base logging.Logger) grpc.StreamServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &contextStream{ServerStream: ss, ctx: requestContext(ss.Context(), base, info.FullMethod)})
	}
}

func requestContext(ctx context.Context, base logging.Logger, fullMethod string) context.Context {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDMetadataKey); len(vals) > 0 && vals[0] != "" {
			ctx = logging.ContextWithRequestID(ctx, vals[0])
		}
	}
	ctx, _ = logging.EnsureRequestID(ctx)
	return logging.ContextWithLogger(ctx, base.With(logging.String("method", fullMethod)))
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context { return s.ctx }

// SpanAttributesUnaryServerInterceptor annotates the server span opened by
// the otelgrpc stats handler with the RPC names and request ID.
func SpanAttributesUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		span := trace.SpanFromContext(ctx)
		if span.IsRecording() {
			service, method := observability.SplitMethod(info.FullMethod)
			attrs := []attribute.KeyValue{
				attribute.String("rpc.service", service),
				attribute.String("rpc.method", method),
				attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
			}
			if id := logging.RequestIDFromContext(ctx); id != "" {
				attrs = append(attrs, attribute.String("request_id", id))
			}
			span.SetAttributes(attrs...)
		}
		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
		}
		return resp, err
	}
}
