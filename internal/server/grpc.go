package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/llm"
)

// ExtractionServiceName is the fully qualified gRPC service name.
const ExtractionServiceName = "invoiceextract.v1.Extraction"

// ExtractionServer exposes JSON recovery and field extraction over gRPC.
// Requests and responses are google.protobuf.Struct:
//
//	RecoverJSON  {"output": string}            -> result
//	Extract      {"text": string}              -> result
//	result       {"record", "fields", "stage", "repaired", "warnings"}
type ExtractionServer struct {
	extractor RecordExtractor
	logger    *slog.Logger
}

func NewExtractionServer(extractor RecordExtractor, logger *slog.Logger) *ExtractionServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionServer{extractor: extractor, logger: logger}
}

func (s *ExtractionServer) RecoverJSON(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	output := req.GetFields()["output"].GetStringValue()
	if output == "" {
		return nil, common.InvalidArgumentError("output is required")
	}
	res, err := s.extractor.ExtractFromOutput(ctx, output)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return resultStruct(res)
}

func (s *ExtractionServer) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := req.GetFields()["text"].GetStringValue()
	if text == "" {
		return nil, common.InvalidArgumentError("text is required")
	}
	res, err := s.extractor.ExtractFields(ctx, text)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return resultStruct(res)
}

func resultStruct(res llm.ExtractResult) (*structpb.Struct, error) {
	b, err := json.Marshal(toExtractResponse(res))
	if err != nil {
		return nil, common.InternalErrorf("encode result: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalErrorf("encode result: %v", err)
	}
	return out, nil
}

type extractionService interface {
	RecoverJSON(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(extractionService, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(extractionService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ExtractionServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(extractionService), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var extractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*extractionService)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("RecoverJSON", extractionService.RecoverJSON),
		unaryHandler("Extract", extractionService.Extract),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoiceextract/v1/extraction.proto",
}

// RegisterExtractionServer attaches srv to s.
func RegisterExtractionServer(s grpc.ServiceRegistrar, srv *ExtractionServer) {
	s.RegisterService(&extractionServiceDesc, srv)
}

// NewGRPCServer returns a server with the extraction and health services
// registered and the request logging interceptor installed.
func NewGRPCServer(extractor RecordExtractor, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	RegisterExtractionServer(gs, NewExtractionServer(extractor, logger))

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ExtractionServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return gs, hs
}

// loggingInterceptor propagates x-request-id metadata into the context and
// logs each call.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, rid)

		start := time.Now()
		resp, err := handler(ctx, req)
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc.request",
			"req_id", rid,
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
