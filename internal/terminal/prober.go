package terminal

import (
	"context"
	"net"
	"time"
)

// Probe checks whether anything is accepting TCP connections at addr
// (host:port). It performs a bare connect-and-close with no protocol
// traffic, so a true result means only that the port is open; the protocol
// handshake may still fail.
//
// Returns false on any failure (refused, timeout, unreachable, context
// cancellation). Never returns an error: the probe exists purely as a
// fast-fail gate.
func Probe(ctx context.Context, addr string, timeout time.Duration) bool {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
