package ping

import (
	"net"
	"time"
)

// A request is a currently running ICMP echo request waiting for an answer.
type request struct {
	remote net.IPAddr
	wait   chan struct{}
	result error
	tStart time.Time
	tStop  time.Time
}

func newRequest(remote *net.IPAddr) *request {
	return &request{
		remote: *remote,
		wait:   make(chan struct{}),
	}
}

// respond is responsible for finishing this request. It takes an error
// as failure reason and the time the answer was received.
func (req *request) respond(err error, tRecv time.Time) {
	req.result = err
	req.tStop = tRecv
	close(req.wait)
}

// roundTripTime returns the time between sending the request and
// receiving the answer.
func (req *request) roundTripTime() (time.Duration, error) {
	if req.result != nil {
		return 0, req.result
	}
	return req.tStop.Sub(req.tStart), nil
}
