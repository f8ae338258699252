package notify

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/table1837/eightysix/pkg/types"
	"github.com/table1837/eightysix/server/internal/config"
	"github.com/table1837/eightysix/server/internal/session"
)

const (
	queueSize     = 256
	clientTimeout = 10 * time.Second
)

// Event is one applied availability change.
type Event struct {
	Scope  string       `json:"scope"`
	Record types.Record `json:"record"`
}

// Name returns the realtime event name: item-added or item-removed.
func (e Event) Name() string { return types.EventFor(e.Record) }

// Notifier queues applied records and posts them to the configured webhooks.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	webhooks []config.WebhookConfig
	queue    chan Event
	client   *http.Client
}

// New creates a Notifier for webhooks. A Notifier with no webhooks is valid;
// Applied becomes a no-op.
func New(webhooks []config.WebhookConfig) *Notifier {
	return &Notifier{
		webhooks: webhooks,
		queue:    make(chan Event, queueSize),
		client:   &http.Client{Timeout: clientTimeout},
	}
}

// Applied queues rec for delivery. When the queue is full the event is dropped.
func (n *Notifier) Applied(scope string, rec types.Record, _ session.Result) {
	if len(n.webhooks) == 0 {
		return
	}
	select {
	case n.queue <- Event{Scope: scope, Record: rec}:
	default:
		slog.Warn("notify: queue full, dropping event",
			"scope", scope, "item_key", rec.ItemKey)
	}
}

// Rejected is a no-op; failed updates are not announced.
func (n *Notifier) Rejected(string, error) {}

// Run delivers queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		}
	}
}
