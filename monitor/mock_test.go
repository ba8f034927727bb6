package monitor

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// syncBuffer is a concurrency safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

// LinesContaining returns all log lines containing every needle.
func (b *syncBuffer) LinesContaining(needles ...string) []string {
	var out []string
	for _, line := range b.Lines() {
		match := true
		for _, n := range needles {
			if !strings.Contains(line, n) {
				match = false
				break
			}
		}
		if match {
			out = append(out, line)
		}
	}
	return out
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// mockSession runs probeFn for every attempt.
type mockSession struct {
	probeFn func(n int) (Outcome, error)
	probes  atomic.Int64
	closed  atomic.Bool
}

func (m *mockSession) Probe(timeout time.Duration) (Outcome, error) {
	n := int(m.probes.Add(1))
	return m.probeFn(n)
}

func (m *mockSession) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *mockSession) Probes() int {
	return int(m.probes.Load())
}

// mockProber records the sessions it opened per target.
type mockProber struct {
	openFn func(target Target) (*mockSession, error)

	mu       sync.Mutex
	sessions map[string][]*mockSession
}

func (m *mockProber) Open(target Target) (Session, error) {
	session, err := m.openFn(target)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string][]*mockSession)
	}
	m.sessions[target.String()] = append(m.sessions[target.String()], session)

	return session, nil
}

func (m *mockProber) Sessions(target string) []*mockSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*mockSession, len(m.sessions[target]))
	copy(out, m.sessions[target])
	return out
}

// replying returns a session that replies to every probe, pausing a little
// so tests don't spin.
func replying() *mockSession {
	return &mockSession{probeFn: func(int) (Outcome, error) {
		time.Sleep(time.Millisecond)
		return Replied, nil
	}}
}

func mustTarget(s string) Target {
	t, err := ParseTarget(s)
	if err != nil {
		panic(err)
	}
	return t
}
