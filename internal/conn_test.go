package internal

import (
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

type received struct {
	echo *icmp.Echo
	err  error
	addr net.IPAddr
}

func captureConn(privileged bool, id int) (*Conn, *[]received) {
	var got []received
	c := &Conn{
		Privileged: privileged,
		ID:         id,
		Receiver: func(body *icmp.Echo, icmpError error, addr net.IPAddr, _ time.Time) {
			got = append(got, received{body, icmpError, addr})
		},
	}
	return c, &got
}

func marshal(t *testing.T, msg icmp.Message) []byte {
	b, err := msg.Marshal(nil)
	require.NoError(t, err)
	return b
}

func TestReceiveEchoReply(t *testing.T) {
	assert := assert.New(t)
	src := net.IPAddr{IP: net.ParseIP("192.0.2.1")}

	reply := marshal(t, icmp.Message{
		Type: ipv4.ICMPTypeEchoReply,
		Body: &icmp.Echo{ID: 42, Seq: 7, Data: []byte("payload")},
	})

	c, got := captureConn(true, 42)
	c.receive(ProtocolICMP, reply, src, time.Now())
	if assert.Len(*got, 1) {
		assert.Equal(7, (*got)[0].echo.Seq)
		assert.NoError((*got)[0].err)
		assert.Equal(src, (*got)[0].addr)
	}

	// foreign identifier on a raw socket
	c, got = captureConn(true, 43)
	c.receive(ProtocolICMP, reply, src, time.Now())
	assert.Empty(*got)

	// the kernel filters unprivileged sockets
	c, got = captureConn(false, 43)
	c.receive(ProtocolICMP, reply, src, time.Now())
	assert.Len(*got, 1)
}

func TestReceiveIgnoresGarbage(t *testing.T) {
	c, got := captureConn(true, 1)
	c.receive(ProtocolICMP, []byte{0xff}, net.IPAddr{}, time.Now())

	request := marshal(t, icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: 1, Seq: 1},
	})
	c.receive(ProtocolICMP, request, net.IPAddr{}, time.Now())

	assert.Empty(t, *got)
}

func TestReceiveDestinationUnreachable(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	echo := marshal(t, icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: 42, Seq: 9},
	})
	hdr := ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(echo),
		TTL:      64,
		Protocol: ProtocolICMP,
		Src:      net.ParseIP("192.0.2.10").To4(),
		Dst:      net.ParseIP("198.51.100.1").To4(),
	}
	hb, err := hdr.Marshal()
	require.NoError(err)

	msg := marshal(t, icmp.Message{
		Type: ipv4.ICMPTypeDestinationUnreachable,
		Code: 1,
		Body: &icmp.DstUnreach{Data: append(hb, echo...)},
	})

	router := net.IPAddr{IP: net.ParseIP("192.0.2.254")}
	c, got := captureConn(true, 42)
	c.receive(ProtocolICMP, msg, router, time.Now())

	require.Len(*got, 1)
	assert.Equal(9, (*got)[0].echo.Seq)

	var icmpErr *ICMPError
	require.ErrorAs((*got)[0].err, &icmpErr)
	assert.Equal(ipv4.ICMPTypeDestinationUnreachable, icmpErr.Type)
	assert.Equal(1, icmpErr.Code)
	assert.Equal(router, icmpErr.Source)
	assert.Contains(icmpErr.Error(), "192.0.2.254")
}

func TestWriteToMissingSocket(t *testing.T) {
	c := &Conn{}
	err := c.WriteTo(&net.IPAddr{IP: net.ParseIP("::1")}, 1, nil)
	assert.ErrorIs(t, err, errSocketMissing)
}

func TestOpenNothing(t *testing.T) {
	c := &Conn{}
	assert.ErrorIs(t, c.Open("", ""), errNotBound)
}

func TestCloseReportsErrClosed(t *testing.T) {
	c := &Conn{}
	assert.NoError(t, c.Err())

	c.Close()
	select {
	case <-c.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
	assert.ErrorIs(t, c.Err(), ErrClosed)
}

func TestPayloadResize(t *testing.T) {
	var p Payload
	p.Resize(16)
	assert.Len(t, p, 16)

	p.Resize(0)
	assert.Empty(t, p)
}

func TestRandomID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := RandomID()
		assert.True(t, id > 0 && id <= 0xffff, id)
	}
}

// scriptedConn returns the scripted reads in order, then net.ErrClosed.
type scriptedConn struct {
	net.PacketConn // unused methods panic

	mu    sync.Mutex
	reads []func(b []byte) (int, net.Addr, error)
}

func (s *scriptedConn) ReadFrom(b []byte) (int, net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.reads) == 0 {
		return 0, nil, &net.OpError{Op: "read", Net: "ip4:icmp", Err: net.ErrClosed}
	}
	read := s.reads[0]
	s.reads = s.reads[1:]
	return read(b)
}

func TestReceiverSurvivesReadErrors(t *testing.T) {
	assert := assert.New(t)

	src := &net.IPAddr{IP: net.ParseIP("192.0.2.1")}
	reply := marshal(t, icmp.Message{
		Type: ipv4.ICMPTypeEchoReply,
		Body: &icmp.Echo{ID: 42, Seq: 9},
	})

	conn := &scriptedConn{reads: []func([]byte) (int, net.Addr, error){
		func([]byte) (int, net.Addr, error) {
			return 0, nil, &net.OpError{Op: "read", Net: "ip4:icmp", Err: os.NewSyscallError("recvfrom", syscall.EHOSTUNREACH)}
		},
		func(b []byte) (int, net.Addr, error) {
			return copy(b, reply), src, nil
		},
	}}

	c, got := captureConn(true, 42)
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.receiver(ProtocolICMP, conn)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop")
	}
	c.wg.Wait()

	// the reply after the failed read was still delivered
	if assert.Len(*got, 1) {
		assert.Equal(9, (*got)[0].echo.Seq)
	}
	assert.ErrorIs(c.Err(), net.ErrClosed)
}
