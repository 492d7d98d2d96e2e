// Package grpcserver implements the LifecycleService gRPC server.
//
// It delegates all business logic to tracker.Service and handles only the
// gRPC transport concerns: metadata extraction, error mapping, and
// conversion between domain values and google.protobuf.Struct messages.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"inakat/lifecycle-service/internal/lifecycle"
	"inakat/lifecycle-service/internal/tracker"
)

// Server implements LifecycleServer.
type Server struct {
	svc *tracker.Service
}

// NewServer constructs a gRPC Server backed by the given tracker.Service.
func NewServer(svc *tracker.Service) *Server {
	return &Server{svc: svc}
}

// Register mounts s on gs.
func Register(gs *grpc.Server, s *Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// ─── Request shapes ──────────────────────────────────────────────────────────

type viewRequest struct {
	ApplicationID string `json:"applicationId"`
}

type transitionRequest struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	lifecycle.FieldUpdates
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// GetApplicationView returns the caller's projection of an application.
func (s *Server) GetApplicationView(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	viewer, err := viewerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var req viewRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	view, err := s.svc.GetApplicationView(ctx, req.ApplicationID, viewer)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(view)
}

// RequestTransition moves an application to a new status.
func (s *Server) RequestTransition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	viewer, err := viewerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var req transitionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Status == "" {
		return nil, status.Error(codes.InvalidArgument, "status is required")
	}

	res, err := s.svc.RequestTransition(ctx, req.ApplicationID, viewer, req.Status, req.FieldUpdates)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(res)
}

// Submit creates an application.
func (s *Server) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	viewer, err := viewerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var sub tracker.Submission
	if err := decode(in, &sub); err != nil {
		return nil, err
	}

	view, err := s.svc.Submit(ctx, viewer, sub)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(view)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// viewerFromCtx extracts the x-user-id and x-user-role values forwarded by
// the Gateway via gRPC metadata.
func viewerFromCtx(ctx context.Context) (lifecycle.Viewer, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return lifecycle.Viewer{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	ids := md.Get("x-user-id")
	if len(ids) == 0 || ids[0] == "" {
		return lifecycle.Viewer{}, status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	roles := md.Get("x-user-role")
	if len(roles) == 0 {
		return lifecycle.Viewer{}, status.Error(codes.Unauthenticated, "missing x-user-role metadata")
	}
	role, err := lifecycle.ParseRole(roles[0])
	if err != nil {
		return lifecycle.Viewer{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return lifecycle.Viewer{Role: role, UserID: ids[0]}, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	if errors.Is(err, lifecycle.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	var denied *lifecycle.TransitionDeniedError
	if errors.As(err, &denied) {
		return status.Error(codes.FailedPrecondition, denied.Error())
	}
	var ve *lifecycle.ValidationError
	if errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, ve.Msg)
	}
	if errors.Is(err, lifecycle.ErrConcurrentModification) {
		return status.Error(codes.Aborted, err.Error())
	}
	if errors.Is(err, lifecycle.ErrDuplicateApplication) {
		return status.Error(codes.AlreadyExists, err.Error())
	}
	slog.Error("rpc failed", "err", err)
	return status.Error(codes.Internal, "internal server error")
}

func decode(in *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("invalid request: %v", err))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("invalid request: %v", err))
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
