package session

import "sync"

// ChanSink is a Sink backed by a buffered channel. Send never blocks: a full
// buffer is reported as ErrSlowConsumer. The consumer drains C until it is
// closed.
type ChanSink struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

// NewChanSink creates a ChanSink with the given buffer depth.
func NewChanSink(size int) *ChanSink {
	return &ChanSink{ch: make(chan []byte, size)}
}

// C returns the receive side of the sink's buffer.
func (s *ChanSink) C() <-chan []byte { return s.ch }

// Send enqueues msg without blocking.
func (s *ChanSink) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.ch <- msg:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close closes the buffer. It is safe to call more than once.
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Closed reports whether Close has been called.
func (s *ChanSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
