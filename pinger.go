package ping

import (
	"net"
	"sync"
	"time"

	"github.com/digineo/pingwatch/internal"
)

const (
	// ProtocolICMP is the number of the Internet Control Message Protocol
	ProtocolICMP = internal.ProtocolICMP

	// ProtocolICMPv6 is the IPv6 Next Header value for ICMPv6
	ProtocolICMPv6 = internal.ProtocolICMPv6

	defaultPayloadSize = 56
)

// Pinger is a instance for ICMP echo requests
type Pinger struct {
	Attempts uint          // number of attempts
	Timeout  time.Duration // timeout per request

	requests map[uint16]*request // currently running requests
	mtx      sync.Mutex          // lock for the requests map

	payload   internal.Payload
	payloadMu sync.RWMutex

	conn internal.Conn
}

// New creates a new Pinger. This will open the sockets and start the
// receiving logic. An empty bind address disables the corresponding
// address family. Privileged pingers use raw sockets, unprivileged ones
// datagram ICMP sockets (see net.ipv4.ping_group_range on Linux).
// You'll need to call Close() to cleanup.
func New(bind4, bind6 string, privileged bool) (*Pinger, error) {
	pinger := &Pinger{
		Attempts: 1,
		Timeout:  time.Second,
		requests: make(map[uint16]*request),
	}
	pinger.payload.Resize(defaultPayloadSize)

	pinger.conn.Privileged = privileged
	pinger.conn.ID = internal.RandomID()
	pinger.conn.Receiver = pinger.process

	if err := pinger.conn.Open(bind4, bind6); err != nil {
		return nil, err
	}

	return pinger, nil
}

// Close will close the ICMP sockets. Running requests fail with ErrClosed.
func (pinger *Pinger) Close() {
	pinger.conn.Close()
}

// Err returns nil while the sockets are usable. After Close it returns
// ErrClosed, after a receive failure the reason for it.
func (pinger *Pinger) Err() error {
	return pinger.conn.Err()
}

// SetPayloadSize resizes the additional payload sent in ICMP Echo
// Requests.
func (pinger *Pinger) SetPayloadSize(size uint16) {
	pinger.payloadMu.Lock()
	pinger.payload.Resize(size)
	pinger.payloadMu.Unlock()
}

// PayloadSize returns the current payload size.
func (pinger *Pinger) PayloadSize() uint16 {
	pinger.payloadMu.RLock()
	defer pinger.payloadMu.RUnlock()

	return uint16(len(pinger.payload))
}

// register enqueues a request under its sequence number.
func (pinger *Pinger) register(seq uint16, req *request) {
	pinger.mtx.Lock()
	pinger.requests[seq] = req
	pinger.mtx.Unlock()
}

// take dequeues the request with the given sequence number. Only the
// first caller gets it, so every request is answered at most once.
func (pinger *Pinger) take(seq uint16, match func(*request) bool) *request {
	pinger.mtx.Lock()
	defer pinger.mtx.Unlock()

	req := pinger.requests[seq]
	if req == nil || (match != nil && !match(req)) {
		return nil
	}
	delete(pinger.requests, seq)
	return req
}

func sameHost(a, b *net.IPAddr) bool {
	return a.IP.Equal(b.IP)
}
