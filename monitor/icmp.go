package monitor

import (
	"net"
	"time"

	"github.com/pkg/errors"

	ping "github.com/digineo/pingwatch"
)

var errNoBind = errors.New("no bind address for the target's address family")

// ICMPProber opens sessions backed by a dedicated ping.Pinger. Only the
// socket matching the target's address family is opened.
type ICMPProber struct {
	Bind4       string // IPv4 bind address, e.g. "0.0.0.0"
	Bind6       string // IPv6 bind address, e.g. "::"
	Privileged  bool   // raw sockets instead of datagram ICMP sockets
	PayloadSize uint16
	Mark        uint // SO_MARK, 0 to leave it unset
}

// Open implements Prober.
func (p *ICMPProber) Open(target Target) (Session, error) {
	var bind4, bind6 string
	if target.IsIPv4() {
		bind4 = p.Bind4
	} else {
		bind6 = p.Bind6
	}
	if bind4 == "" && bind6 == "" {
		return nil, errNoBind
	}

	pinger, err := ping.New(bind4, bind6, p.Privileged)
	if err != nil {
		return nil, err
	}
	pinger.SetPayloadSize(p.PayloadSize)

	if p.Mark != 0 {
		if err := pinger.SetMark(p.Mark); err != nil {
			pinger.Close()
			return nil, errors.Wrap(err, "set mark")
		}
	}

	return &icmpSession{
		pinger: pinger,
		remote: target.IPAddr(),
	}, nil
}

type icmpSession struct {
	pinger *ping.Pinger
	remote *net.IPAddr
}

// Probe sends a single echo request. ICMP error messages (e.g. destination
// unreachable) count as a missing reply.
func (s *icmpSession) Probe(timeout time.Duration) (Outcome, error) {
	_, err := s.pinger.PingAttempts(s.remote, timeout, 1)
	return classify(err, s.pinger.Err())
}

// classify maps the result of an echo request to an Outcome. Only a
// stopped pinger (closed or receive failure) ends the session.
func classify(err, stopped error) (Outcome, error) {
	switch {
	case err == nil:
		return Replied, nil
	case ping.IsTimeout(err), ping.IsICMPError(err):
		return TimedOut, nil
	case stopped != nil:
		return TimedOut, err
	default:
		return TimedOut, &SendError{Err: err}
	}
}

func (s *icmpSession) Close() error {
	s.pinger.Close()
	return nil
}
