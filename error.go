package ping

import (
	"net"

	"github.com/pkg/errors"

	"github.com/digineo/pingwatch/internal"
)

// ICMPError is returned when an ICMP error message (e.g. destination
// unreachable) answers an echo request.
type ICMPError = internal.ICMPError

// ErrClosed is returned for requests running while the Pinger is closed.
var ErrClosed = internal.ErrClosed

// timeoutError implements the net.Error interface. Originally taken from
// https://github.com/golang/go/blob/release-branch.go1.8/src/net/net.go#L505-L509
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

// IsTimeout reports whether err means no answer arrived in time.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsICMPError reports whether err is an ICMP error message answering the
// request.
func IsICMPError(err error) bool {
	var icmpErr *ICMPError
	return errors.As(err, &icmpErr)
}
