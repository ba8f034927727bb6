package ping

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// sequence number for this process
var sequence uint32

// Ping sends ICMP echo requests, retrying upto Pinger.Attempts times.
// Will finish early on success.
func (pinger *Pinger) Ping(remote *net.IPAddr) (err error) {
	_, err = pinger.PingRTT(remote)
	return
}

// PingRTT sends ICMP echo requests, retrying upto Pinger.Attempts times.
// Will finish early on success and return the round trip time.
func (pinger *Pinger) PingRTT(remote *net.IPAddr) (time.Duration, error) {
	return pinger.PingAttempts(remote, pinger.Timeout, int(pinger.Attempts))
}

// PingAttempts sends ICMP echo requests with the given timeout, retrying
// upto attempts times. Will finish early on success and return the round
// trip time. A closed Pinger is not retried.
func (pinger *Pinger) PingAttempts(remote *net.IPAddr, timeout time.Duration, attempts int) (rtt time.Duration, err error) {
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		rtt, err = pinger.once(remote, timeout)
		if err == nil {
			break // success
		}
		if pinger.conn.Err() != nil {
			break // sockets gone
		}
	}
	return
}

// once sends a single Echo Request and waits for an answer. It returns
// the round trip time (RTT) if a reply is received in time.
func (pinger *Pinger) once(remote *net.IPAddr, timeout time.Duration) (time.Duration, error) {
	if remote == nil || remote.IP == nil {
		return 0, errors.New("missing remote address")
	}
	if err := pinger.conn.Err(); err != nil {
		return 0, err
	}

	seq := uint16(atomic.AddUint32(&sequence, 1))
	req := newRequest(remote)

	pinger.payloadMu.RLock()
	payload := pinger.payload
	pinger.payloadMu.RUnlock()

	// enqueue in currently running requests
	req.tStart = time.Now()
	pinger.register(seq, req)

	// send request
	if err := pinger.conn.WriteTo(remote, int(seq), payload); err != nil {
		if r := pinger.take(seq, nil); r != nil {
			r.respond(errors.Wrapf(err, "send to %s", remote), time.Now())
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// wait for answer
	var err error
	select {
	case <-req.wait:
		return req.roundTripTime()
	case <-timer.C:
		err = &timeoutError{}
	case <-pinger.conn.Done():
		err = pinger.conn.Err()
	}

	// dequeue request
	if pinger.take(seq, nil) == nil {
		// answered in the meantime
		<-req.wait
		return req.roundTripTime()
	}
	return 0, err
}
