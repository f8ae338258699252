package receiver_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/table1837/eightysix/pkg/rpc"
	"github.com/table1837/eightysix/pkg/types"
	"github.com/table1837/eightysix/server/internal/availability"
	"github.com/table1837/eightysix/server/internal/interceptor"
	"github.com/table1837/eightysix/server/internal/kv"
	"github.com/table1837/eightysix/server/internal/receiver"
)

// failingBackend hands out stores whose writes always fail.
type failingBackend struct{}

func (failingBackend) Bucket(string) kv.Store { return failingStore{} }
func (failingBackend) Close() error           { return nil }

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }
func (failingStore) List(context.Context) ([]kv.Pair, error)  { return nil, nil }

// startServer starts a gRPC server over backend and returns a connected
// client. Uses a random TCP port.
func startServer(t *testing.T, backend kv.Backend) (*rpc.Client, *grpc.ClientConn) {
	t.Helper()

	m := availability.NewManager(backend, availability.Options{})
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptor.Recovery(), interceptor.Logging()))
	rpc.RegisterAvailabilityServer(srv, receiver.New(m, "global"))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(lis) //nolint:errcheck

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return rpc.NewClient(conn), conn
}

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestUpdate_AppliesAndReturnsRecord(t *testing.T) {
	client, _ := startServer(t, kv.NewMemory())
	ctx := ctxTimeout(t)

	rec, err := client.Update(ctx, "bar", types.Update{
		ItemKey: "Negroni",
		Status:  types.StatusUnavailable,
		ActorID: "u1",
		Reason:  "out of Campari",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.ItemKey != "Negroni" || rec.Status != types.StatusUnavailable || rec.Reason != "out of Campari" {
		t.Errorf("record: got %+v", rec)
	}
	if rec.AppliedAt.IsZero() {
		t.Error("applied_at: got zero time")
	}

	snap, err := client.Snapshot(ctx, "bar")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Scope != "bar" || len(snap.Items) != 1 || snap.Items[0].ItemKey != "Negroni" {
		t.Errorf("snapshot: got %+v", snap)
	}
}

func TestUpdate_LastWriteWins(t *testing.T) {
	client, _ := startServer(t, kv.NewMemory())
	ctx := ctxTimeout(t)

	client.Update(ctx, "bar", types.Update{ItemKey: "Negroni", Status: types.StatusUnavailable, ActorID: "u1"}) //nolint:errcheck
	if _, err := client.Update(ctx, "bar", types.Update{ItemKey: "Negroni", Status: types.StatusAvailable, ActorID: "u2"}); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	snap, _ := client.Snapshot(ctx, "bar")
	if len(snap.Items) != 1 {
		t.Fatalf("items: got %d, want 1 (updates, not appends)", len(snap.Items))
	}
	if snap.Items[0].Status != types.StatusAvailable || snap.Items[0].ActorID != "u2" {
		t.Errorf("record: got %+v", snap.Items[0])
	}
}

func TestUpdate_EmptyScopeUsesDefault(t *testing.T) {
	client, _ := startServer(t, kv.NewMemory())
	ctx := ctxTimeout(t)

	if _, err := client.Update(ctx, "", types.Update{ItemKey: "Soup", Status: types.StatusUnavailable, ActorID: "u1"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap, err := client.Snapshot(ctx, "global")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Items) != 1 {
		t.Errorf("default scope items: got %d, want 1", len(snap.Items))
	}
}

func TestUpdate_LegacyAliases(t *testing.T) {
	_, conn := startServer(t, kv.NewMemory())
	ctx := ctxTimeout(t)

	in, _ := structpb.NewStruct(map[string]any{
		"scope":     "bar",
		"item_name": "Paloma",
		"action":    "86",
		"user_id":   "u9",
	})
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, rpc.UpdateMethod, in, out); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	f := out.GetFields()
	if f["item_key"].GetStringValue() != "Paloma" || f["status"].GetStringValue() != "unavailable" {
		t.Errorf("record: got %v", out)
	}
}

func TestUpdate_InvalidArgument(t *testing.T) {
	client, _ := startServer(t, kv.NewMemory())
	ctx := ctxTimeout(t)

	tests := []struct {
		name  string
		scope string
		u     types.Update
	}{
		{"empty item key", "bar", types.Update{Status: types.StatusUnavailable, ActorID: "u1"}},
		{"unknown status", "bar", types.Update{ItemKey: "x", Status: "sold-out", ActorID: "u1"}},
		{"missing actor", "bar", types.Update{ItemKey: "x", Status: types.StatusUnavailable}},
		{"bad scope", "no spaces allowed", types.Update{ItemKey: "x", Status: types.StatusUnavailable, ActorID: "u1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Update(ctx, tt.scope, tt.u)
			if code := status.Code(err); code != codes.InvalidArgument {
				t.Errorf("code: got %v, want InvalidArgument", code)
			}
		})
	}
}

func TestUpdate_PersistenceFailure_Unavailable(t *testing.T) {
	client, _ := startServer(t, failingBackend{})
	ctx := ctxTimeout(t)

	_, err := client.Update(ctx, "bar", types.Update{ItemKey: "x", Status: types.StatusUnavailable, ActorID: "u1"})
	if code := status.Code(err); code != codes.Unavailable {
		t.Errorf("code: got %v, want Unavailable", code)
	}

	snap, err := client.Snapshot(ctx, "bar")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Errorf("items after failed write: got %d, want 0", len(snap.Items))
	}
}
