package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/table1837/eightysix/agent/internal/backoff"
	"github.com/table1837/eightysix/agent/internal/config"
	"github.com/table1837/eightysix/pkg/rpc"
	"github.com/table1837/eightysix/pkg/types"
)

// Shipper buffers availability updates and ships them to the server via gRPC.
// Ship() is non-blocking; when the buffer is full the oldest update is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan types.Update
	dialFn dialFunc // injectable for tests
	bo     *backoff.Backoff

	// pending holds an update whose send failed transiently. It is retried
	// before anything newer so per-item order survives a reconnect.
	// Only touched by the Run goroutine.
	pending *types.Update

	// OnDelivered, when set, is called with each record the server applied.
	OnDelivered func(types.Record)
}

// dialFunc is the function signature used to open a gRPC connection.
// Abstracted so tests can point the shipper at an in-process server.
type dialFunc func(endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan types.Update, cfg.BufferSize),
		dialFn: defaultDial,
		bo:     backoff.New(backoff.DefaultInitial, cfg.ReconnectMax),
	}
}

// Ship enqueues u, stamping the station ID as actor when none is set.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(u types.Update) {
	if u.ActorID == "" {
		u.ActorID = s.cfg.StationID
	}
	for {
		select {
		case s.buf <- u:
			return
		default:
		}
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest update",
				"item", old.ItemKey, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Run drains the buffer, sending updates to the server.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(s.cfg.ServerEndpoint, s.cfg)
		if err != nil {
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.cfg.ServerEndpoint, "err", err)
			if !s.bo.Sleep(ctx) {
				return
			}
			continue
		}

		err = s.drain(ctx, rpc.NewClient(conn))
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.cfg.ServerEndpoint, "err", err)
		if !s.bo.Sleep(ctx) {
			return
		}
	}
}

// drain sends buffered updates until a transient send error occurs or ctx
// is cancelled.
func (s *Shipper) drain(ctx context.Context, client *rpc.Client) error {
	for {
		var u types.Update
		if s.pending != nil {
			u = *s.pending
		} else {
			select {
			case <-ctx.Done():
				return nil
			case u = <-s.buf:
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		rec, err := client.Update(sendCtx, s.cfg.Scope, u)
		cancel()

		if err != nil {
			// Permanent errors (invalid update) → log and discard.
			// Transient errors (unavailable, deadline exceeded) → reconnect.
			if isPermanentError(err) {
				slog.Error("shipper: permanent send error, discarding update",
					"item", u.ItemKey, "err", err)
				s.pending = nil
				continue
			}
			s.pending = &u
			return fmt.Errorf("send: %w", err)
		}

		s.pending = nil
		s.bo.Reset()
		slog.Debug("shipper: update delivered", "item", rec.ItemKey, "status", rec.Status)
		if s.OnDelivered != nil {
			s.OnDelivered(rec)
		}
	}
}

// isPermanentError returns true for gRPC errors that indicate the update
// itself is invalid and should not be retried.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

// defaultDial creates a lazily-connecting gRPC client for endpoint.
func defaultDial(endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opt, err := DialOption(cfg.TLS)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(endpoint, opt, grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
}

// DialOption returns the transport credentials for t: mTLS when a client
// certificate is configured, plaintext otherwise.
func DialOption(t config.TLSConfig) (grpc.DialOption, error) {
	if !t.Enabled() {
		return grpc.WithTransportCredentials(insecure.NewCredentials()), nil
	}
	creds, err := buildMTLSCreds(t)
	if err != nil {
		return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
	}
	return grpc.WithTransportCredentials(creds), nil
}

// buildMTLSCreds loads client certificate and optional CA from the TLS config.
func buildMTLSCreds(t config.TLSConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if t.CAFile != "" {
		caPEM, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", t.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return credentials.NewTLS(tlsCfg), nil
}
