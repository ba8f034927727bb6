package ping

import (
	"net"
	"time"

	"golang.org/x/net/icmp"
)

// process will finish a currently running Echo Request, if the body is
// an ICMP Echo reply to a request from us. Replies must originate from
// the pinged host; error messages may come from any hop on the way.
func (pinger *Pinger) process(body *icmp.Echo, icmpError error, addr net.IPAddr, tRecv time.Time) {
	req := pinger.take(uint16(body.Seq), func(req *request) bool {
		return icmpError != nil || sameHost(&req.remote, &addr)
	})

	if req != nil {
		req.respond(icmpError, tRecv)
	}
}
