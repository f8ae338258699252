package session

import (
	"fmt"
	"log/slog"
)

// Result summarises one Broadcast call.
type Result struct {
	Delivered int
	Evicted   int
}

// Broadcast sends msg to every session in reg. Sessions whose Sink rejects
// the message are unregistered; delivery to the others continues.
//
// Sends are issued sequentially in the caller's goroutine. Because Sinks
// only enqueue, callers that broadcast in apply order get per-session
// delivery in the same order.
func Broadcast(msg []byte, reg *Registry) Result {
	var res Result
	for _, s := range reg.Sessions() {
		if err := deliver(s, msg); err != nil {
			slog.Debug("session: evicting after failed delivery",
				"session_id", s.ID, "err", err)
			reg.UnregisterSink(s.ID, s.Sink)
			res.Evicted++
			continue
		}
		res.Delivered++
	}
	return res
}

// Deliver sends msg to a single session, wrapping failures with
// ErrSessionDelivery. A panicking Sink is treated as a failed delivery.
func Deliver(s Session, msg []byte) error {
	return deliver(s, msg)
}

func deliver(s Session, msg []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrSessionDelivery, s.ID, p)
		}
	}()
	if err := s.Sink.Send(msg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSessionDelivery, s.ID, err)
	}
	return nil
}
