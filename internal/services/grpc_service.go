package services

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aegisops/aegis/internal/api"
	"github.com/aegisops/aegis/internal/engine"
	"github.com/aegisops/aegis/internal/models"
)

// Control operations accepted by the Control RPC.
const (
	OpPause             = "pause"
	OpResume            = "resume"
	OpSetMode           = "set_mode"
	OpSetThreshold      = "set_threshold"
	OpSetTelemetry      = "set_telemetry"
	OpApproveSuggestion = "approve_suggestion"
	OpRejectSuggestion  = "reject_suggestion"
)

// ControlLoopService implements the gRPC ControlLoop service over ControlService.
type ControlLoopService struct {
	api.UnimplementedControlLoopServer

	logger  *slog.Logger
	control *ControlService
}

// NewControlLoopService constructs the gRPC facade.
func NewControlLoopService(logger *slog.Logger, control *ControlService) *ControlLoopService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlLoopService{logger: logger, control: control}
}

// IngestEvents accepts a batch from one of the telemetry, web3 or log sources.
func (s *ControlLoopService) IngestEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.IngestRequest
	if err := api.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var (
		n   int
		err error
	)
	switch models.EventSource(in.Source) {
	case models.SourceTelemetry, "":
		events, decodeErr := api.DecodeBatch[api.TelemetryEvent](in.Events)
		if decodeErr != nil {
			return nil, status.Error(codes.InvalidArgument, decodeErr.Error())
		}
		n, err = s.control.IngestTelemetry(ctx, api.TelemetryEvents(events))
	case models.SourceWeb3:
		events, decodeErr := api.DecodeBatch[api.Web3Event](in.Events)
		if decodeErr != nil {
			return nil, status.Error(codes.InvalidArgument, decodeErr.Error())
		}
		n, err = s.control.IngestWeb3(ctx, api.Web3Events(events))
	case models.SourceLog:
		entries, decodeErr := api.DecodeBatch[api.LogEvent](in.Events)
		if decodeErr != nil {
			return nil, status.Error(codes.InvalidArgument, decodeErr.Error())
		}
		n, err = s.control.IngestLogs(ctx, api.LogEntries(entries))
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown source %q", in.Source)
	}
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Debug("IngestEvents called", slog.String("source", in.Source), slog.Int("count", n))
	return respond(api.NewAccepted(n))
}

// GetStats returns the process-lifetime counters.
func (s *ControlLoopService) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return respond(s.control.Stats())
}

// Heal runs an operator-requested remediation.
func (s *ControlLoopService) Heal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.HealRequest
	if err := api.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.Category == "" {
		return nil, status.Error(codes.InvalidArgument, "category is required")
	}

	result, err := s.control.Heal(ctx, in.Category, in.Event.ToModel())
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(result)
}

// Control applies a runtime control operation.
func (s *ControlLoopService) Control(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.ControlRequest
	if err := api.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	switch in.Operation {
	case OpPause:
		s.control.Pause()
	case OpResume:
		s.control.Resume()
	case OpSetMode:
		if err := s.control.SetMode(in.Mode); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	case OpSetThreshold:
		if err := s.control.SetTriggerThreshold(in.Level); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	case OpSetTelemetry:
		if in.Enabled == nil {
			return nil, status.Error(codes.InvalidArgument, "enabled is required")
		}
		s.control.SetTelemetryEnabled(*in.Enabled)
	case OpApproveSuggestion:
		result, err := s.control.ApproveSuggestion(ctx, in.SuggestionID)
		if err != nil {
			return nil, toStatus(err)
		}
		return respond(result)
	case OpRejectSuggestion:
		if err := s.control.RejectSuggestion(in.SuggestionID); err != nil {
			return nil, toStatus(err)
		}
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown operation %q", in.Operation)
	}

	s.logger.Info("control operation applied", slog.String("operation", in.Operation))
	return respond(s.control.Health())
}

func respond(v any) (*structpb.Struct, error) {
	out, err := api.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps control service errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrBatchTooLarge), errors.Is(err, ErrUnknownCategory):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrTelemetryDisabled), errors.Is(err, ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrManualHealLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, engine.ErrSuggestionNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
