package receiver

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/table1837/eightysix/pkg/rpc"
	"github.com/table1837/eightysix/server/internal/availability"
)

// Receiver implements rpc.AvailabilityServer on top of a Manager.
type Receiver struct {
	manager      *availability.Manager
	defaultScope string
}

// New creates a Receiver. Requests without a scope use defaultScope.
func New(m *availability.Manager, defaultScope string) *Receiver {
	return &Receiver{manager: m, defaultScope: defaultScope}
}

// Update is the unary RPC handler called by station agents and staff tooling.
func (r *Receiver) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := rpc.DecodeUpdate(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	scope := r.scope(req.Scope)

	rec, err := r.manager.Apply(ctx, scope, req.Update)
	if err != nil {
		return nil, toStatus(err)
	}

	slog.Debug("receiver: update applied",
		"scope", scope,
		"item_key", rec.ItemKey,
		"status", rec.Status,
	)

	out, err := rpc.ToStruct(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Snapshot returns every record of the requested scope.
func (r *Receiver) Snapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	scope := r.scope(rpc.ScopeOf(in))
	items, err := r.manager.Snapshot(ctx, scope)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := rpc.ToStruct(rpc.SnapshotResponse{Scope: scope, Items: items})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (r *Receiver) scope(s string) string {
	if s == "" {
		return r.defaultScope
	}
	return s
}

// toStatus maps availability errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, availability.ErrInvalidUpdate), errors.Is(err, availability.ErrInvalidScope):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, availability.ErrPersistence):
		return status.Error(codes.Unavailable, err.Error())
	default:
		slog.Error("receiver: internal error", "err", err)
		return status.Error(codes.Internal, err.Error())
	}
}
