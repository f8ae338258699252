package main

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/table1837/eightysix/pkg/rpc"
	"github.com/table1837/eightysix/server/internal/availability"
	"github.com/table1837/eightysix/server/internal/interceptor"
	"github.com/table1837/eightysix/server/internal/receiver"
)

// newGRPCServer builds the availability gateway with tracing, panic recovery
// and request logging.
func newGRPCServer(m *availability.Manager, defaultScope string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptor.Recovery(),
			interceptor.Logging(),
		),
	)
	rpc.RegisterAvailabilityServer(srv, receiver.New(m, defaultScope))
	return srv
}
