package ping

import (
	"os"
	"syscall"
)

// SetMark sets the SO_MARK socket option on all sockets of the pinger,
// e.g. for policy based routing. Only raw (privileged) sockets support it.
func (pinger *Pinger) SetMark(mark uint) error {
	err := pinger.conn.Control(func(fd uintptr) error {
		return os.NewSyscallError(
			"setsockopt",
			syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_MARK, int(mark)),
		)
	})
	if err != nil {
		log.Errorf("unable to set mark %d: %v", mark, err)
	}
	return err
}
