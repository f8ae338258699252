package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/table1837/eightysix/pkg/types"
)

// Client calls the Availability service over conn.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Update applies u to scope and returns the durable record.
func (c *Client) Update(ctx context.Context, scope string, u types.Update, opts ...grpc.CallOption) (types.Record, error) {
	in, err := EncodeUpdate(scope, u)
	if err != nil {
		return types.Record{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, UpdateMethod, in, out, opts...); err != nil {
		return types.Record{}, err
	}
	var rec types.Record
	if err := FromStruct(out, &rec); err != nil {
		return types.Record{}, err
	}
	return rec, nil
}

// Snapshot returns every record of scope.
func (c *Client) Snapshot(ctx context.Context, scope string, opts ...grpc.CallOption) (SnapshotResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotMethod, EncodeSnapshotRequest(scope), out, opts...); err != nil {
		return SnapshotResponse{}, err
	}
	var resp SnapshotResponse
	if err := FromStruct(out, &resp); err != nil {
		return SnapshotResponse{}, err
	}
	return resp, nil
}
