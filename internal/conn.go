package internal

import (
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	// ProtocolICMP is the number of the Internet Control Message Protocol
	// (see golang.org/x/net/internal/iana.ProtocolICMP)
	ProtocolICMP = 1

	// ProtocolICMPv6 is the IPv6 Next Header value for ICMPv6
	// see golang.org/x/net/internal/iana.ProtocolIPv6ICMP
	ProtocolICMPv6 = 58
)

// receiveBackoff pauses the receiver after a failed read.
const receiveBackoff = 10 * time.Millisecond

var (
	errNotBound      = errors.New("need at least one bind address")
	errSocketMissing = errors.New("socket missing")
	errNoRawConn     = errors.New("socket does not expose a file descriptor")

	// ErrClosed is reported by Err after Close has been called.
	ErrClosed = errors.New("connection closed")
)

// Receiver gets called from the receiving goroutines for every Echo Reply
// and for every ICMP error message quoting one of our Echo Requests.
type Receiver func(body *icmp.Echo, icmpError error, addr net.IPAddr, tRecv time.Time)

// ICMPError describes an ICMP error message (e.g. destination unreachable)
// received in response to an Echo Request.
type ICMPError struct {
	Type   icmp.Type
	Code   int
	Source net.IPAddr
}

func (e *ICMPError) Error() string {
	return fmt.Sprintf("%v (code %d) from %s", e.Type, e.Code, e.Source.String())
}

// Conn wraps the IPv4 and IPv6 ICMP sockets of a single pinger.
type Conn struct {
	Receiver   Receiver
	Privileged bool
	ID         int // echo identifier, only honored by raw sockets

	conn4 net.PacketConn
	conn6 net.PacketConn

	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
	err  error
}

// Open opens the sockets and starts the receiving logic. An empty bind
// address skips the corresponding address family. You'll need to call
// Close() to cleanup.
func (c *Conn) Open(bind4, bind6 string) error {
	var err error
	var network4, network6 string

	if c.Privileged {
		network4 = "ip4:icmp"
		network6 = "ip6:ipv6-icmp"
	} else {
		network4 = "udp4"
		network6 = "udp6"
	}

	c.conn4, err = c.listen(network4, bind4)
	if err != nil {
		return err
	}

	c.conn6, err = c.listen(network6, bind6)
	if err != nil {
		if c.conn4 != nil {
			c.conn4.Close()
		}
		return err
	}

	if c.conn4 == nil && c.conn6 == nil {
		return errNotBound
	}

	c.done = make(chan struct{})

	if c.conn4 != nil {
		c.wg.Add(1)
		go c.receiver(ProtocolICMP, c.conn4)
	}
	if c.conn6 != nil {
		c.wg.Add(1)
		go c.receiver(ProtocolICMPv6, c.conn6)
	}

	return nil
}

// Close closes the sockets and waits for the receivers to finish.
func (c *Conn) Close() {
	c.shutdown(ErrClosed)
	if c.conn4 != nil {
		c.conn4.Close()
	}
	if c.conn6 != nil {
		c.conn6.Close()
	}
	c.wg.Wait()
}

// Done is closed as soon as one of the receivers stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection stopped receiving, or nil while
// it is still running.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Conn) shutdown(err error) {
	c.once.Do(func() {
		c.err = err
		if c.done == nil {
			c.done = make(chan struct{})
		}
		close(c.done)
	})
}

// Control invokes fn with the file descriptor of every open socket.
// Unprivileged sockets don't expose their descriptor.
func (c *Conn) Control(fn func(fd uintptr) error) error {
	for _, conn := range []net.PacketConn{c.conn4, c.conn6} {
		if conn == nil {
			continue
		}

		sc, ok := conn.(syscall.Conn)
		if !ok {
			return errNoRawConn
		}
		raw, err := sc.SyscallConn()
		if err != nil {
			return err
		}

		var fnErr error
		if err = raw.Control(func(fd uintptr) { fnErr = fn(fd) }); err != nil {
			return err
		}
		if fnErr != nil {
			return fnErr
		}
	}
	return nil
}

// receiver listens on the socket and hands ICMP Echo Replies (and errors
// quoting our requests) to the Receiver.
func (c *Conn) receiver(proto int, conn net.PacketConn) {
	defer c.wg.Done()
	rb := make([]byte, 1500)

	for {
		n, source, err := conn.ReadFrom(rb)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// socket gone
				c.shutdown(errors.Wrap(err, "receive"))
				return
			}
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				Logger.Errorf("receive failed: %v", err)
				time.Sleep(receiveBackoff)
			}
			continue
		}

		var ipAddr net.IPAddr

		switch addr := source.(type) {
		case *net.UDPAddr:
			ipAddr.IP = addr.IP
			ipAddr.Zone = addr.Zone
		case *net.IPAddr:
			ipAddr = *addr
		}

		c.receive(proto, rb[:n], ipAddr, time.Now())
	}
}

// receive takes the raw message and tries to evaluate an ICMP response.
// If that succeeds, the body will be given to the Receiver.
func (c *Conn) receive(proto int, bytes []byte, addr net.IPAddr, t time.Time) {
	// parse message
	m, err := icmp.ParseMessage(proto, bytes)
	if err != nil {
		return
	}

	// evaluate message
	switch m.Type {
	case ipv4.ICMPTypeEchoReply, ipv6.ICMPTypeEchoReply:
		echo, ok := m.Body.(*icmp.Echo)
		if !ok || !c.ours(echo) {
			return
		}
		c.Receiver(echo, nil, addr, t)

	case ipv4.ICMPTypeDestinationUnreachable, ipv6.ICMPTypeDestinationUnreachable:
		body, ok := m.Body.(*icmp.DstUnreach)
		if !ok || body == nil {
			return
		}

		var bodyData []byte
		switch proto {
		case ProtocolICMP:
			// parse header of original IPv4 packet
			hdr, err := ipv4.ParseHeader(body.Data)
			if err != nil || hdr.Len > len(body.Data) {
				return
			}
			bodyData = body.Data[hdr.Len:]
		case ProtocolICMPv6:
			// parse header of original IPv6 packet (we don't need the actual
			// header, but want to detect parsing errors)
			if _, err := ipv6.ParseHeader(body.Data); err != nil {
				return
			}
			bodyData = body.Data[ipv6.HeaderLen:]
		default:
			return
		}

		// parse ICMP message after the IP header
		msg, err := icmp.ParseMessage(proto, bodyData)
		if err != nil {
			return
		}

		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || echo == nil {
			Logger.Infof("expected *icmp.Echo, got %#v", msg)
			return
		}
		if !c.ours(echo) {
			return
		}

		c.Receiver(echo, &ICMPError{Type: m.Type, Code: m.Code, Source: addr}, addr, t)
	}
}

// ours reports whether the echo carries our identifier. The kernel
// rewrites identifiers of unprivileged sockets and filters replies itself.
func (c *Conn) ours(echo *icmp.Echo) bool {
	return !c.Privileged || echo.ID == c.ID
}

// WriteTo marshals an Echo Request with the given sequence number and
// payload and sends it to addr.
func (c *Conn) WriteTo(addr *net.IPAddr, seq int, data []byte) error {
	echo := icmp.Echo{
		ID:   c.ID,
		Seq:  seq,
		Data: data,
	}
	msg := icmp.Message{
		Code: 0,
		Body: &echo,
	}

	var conn net.PacketConn
	if addr.IP.To4() != nil {
		msg.Type = ipv4.ICMPTypeEcho
		conn = c.conn4
	} else {
		msg.Type = ipv6.ICMPTypeEchoRequest
		conn = c.conn6
	}

	if conn == nil {
		return errSocketMissing
	}

	// serialize packet
	wb, err := msg.Marshal(nil)
	if err != nil {
		return err
	}

	// send request
	var dst net.Addr = addr
	if !c.Privileged {
		dst = &net.UDPAddr{
			IP:   addr.IP,
			Zone: addr.Zone,
		}
	}
	_, err = conn.WriteTo(wb, dst)
	return err
}

// listen opens a new ICMP connection, if address is not empty. Raw sockets
// are opened through the net package so their descriptor stays reachable
// (see Control); the kernel strips the IPv4 header on read.
func (c *Conn) listen(network, address string) (net.PacketConn, error) {
	if address == "" {
		return nil, nil
	}

	if c.Privileged {
		conn, err := net.ListenPacket(network, address)
		if err != nil {
			return nil, errors.Wrapf(err, "listen %s %s", network, address)
		}
		return conn, nil
	}

	conn, err := icmp.ListenPacket(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s %s", network, address)
	}
	return conn, nil
}
