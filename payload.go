package ping

import "github.com/digineo/pingwatch/internal"

var (
	log = internal.Logger

	// SetLogger allows updating the Logger. For details, see
	// "github.com/digineo/go-logwrap".Instance.SetLogger.
	SetLogger = internal.SetLogger
)

// Payload represents additional data appended to outgoing ICMP Echo
// Requests.
type Payload = internal.Payload
