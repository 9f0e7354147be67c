package terminal

import (
	"context"
	"fmt"
	"time"
)

// ConnectOptions bounds a connection attempt.
type ConnectOptions struct {
	// MaxRetries is the total number of attempts (not additional retries).
	MaxRetries int

	// RetryDelay is the pause between failed attempts.
	RetryDelay time.Duration

	// ProbeTimeout bounds the transport-level reachability check.
	ProbeTimeout time.Duration

	// ConnectTimeout bounds the protocol handshake.
	ConnectTimeout time.Duration
}

// DefaultConnectOptions returns the standard retry policy: three attempts
// five seconds apart, with short probe and handshake timeouts.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		ProbeTimeout:   3 * time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

// Connect establishes a protocol session to the terminal at addr using a
// two-tier check per attempt: a cheap transport probe first, then the
// driver's protocol handshake only if the probe succeeds. A failed probe
// and a failed handshake are retried identically, up to opts.MaxRetries
// attempts with opts.RetryDelay between them.
//
// Returns:
//   - Session: the established session on success
//   - error: ErrUnreachable when every attempt failed at the probe stage;
//     the driver's own error (wrapped) when the final failure was a
//     protocol handshake; ctx.Err() if cancelled mid-retry
func Connect(ctx context.Context, drv Driver, addr string, opts ConnectOptions) (Session, error) {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("connect to %s cancelled: %w", addr, ctx.Err())
			case <-time.After(opts.RetryDelay):
			}
		}

		if !Probe(ctx, addr, opts.ProbeTimeout) {
			lastErr = fmt.Errorf("%w: %s", ErrUnreachable, addr)
			continue
		}

		sess, err := drv.Open(ctx, addr, opts.ConnectTimeout)
		if err != nil {
			lastErr = fmt.Errorf("protocol connect to %s: %w", addr, err)
			continue
		}
		return sess, nil
	}

	return nil, fmt.Errorf("connect to %s failed after %d attempts: %w", addr, opts.MaxRetries, lastErr)
}
