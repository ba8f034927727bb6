package monitor

import "time"

// Outcome classifies a single probe attempt.
type Outcome int

const (
	Replied Outcome = iota
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Replied:
		return "replied"
	case TimedOut:
		return "timed out"
	}
	return "unknown"
}

// Prober opens probing sessions. Every call to Open must return an
// independent Session bound to the given target.
type Prober interface {
	Open(target Target) (Session, error)
}

// Session is a live prober handle. It is owned by exactly one Loop and
// unusable after Close.
type Session interface {
	// Probe sends one echo request and waits up to timeout for the reply.
	// A missing reply is TimedOut, not an error. A *SendError reports a
	// request that never left the host; the attempt counts as TimedOut and
	// the session stays usable. Any other error means the session can't be
	// used anymore.
	Probe(timeout time.Duration) (Outcome, error)

	Close() error
}

// ProberFunc adapts an ordinary function to the Prober interface.
type ProberFunc func(target Target) (Session, error)

// Open calls f(target).
func (f ProberFunc) Open(target Target) (Session, error) {
	return f(target)
}

// SendError wraps a local failure to send an echo request, e.g. a missing
// route during a link flap.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}
