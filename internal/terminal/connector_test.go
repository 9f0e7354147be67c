package terminal

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

// countingDriver records Open calls and fails a configurable number of them.
type countingDriver struct {
	opens    int
	failures int
	failErr  error
	sim      *Simulator
}

func (d *countingDriver) Name() string { return "counting" }

func (d *countingDriver) Open(ctx context.Context, addr string, timeout time.Duration) (Session, error) {
	d.opens++
	if d.opens <= d.failures {
		return nil, d.failErr
	}
	return d.sim.Open(ctx, addr, timeout)
}

func testOpts() ConnectOptions {
	return ConnectOptions{
		MaxRetries:     3,
		RetryDelay:     10 * time.Millisecond,
		ProbeTimeout:   500 * time.Millisecond,
		ConnectTimeout: 500 * time.Millisecond,
	}
}

func reachableAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestConnect_Success(t *testing.T) {
	addr := reachableAddr(t)
	drv := &countingDriver{sim: NewSimulator()}

	sess, err := Connect(context.Background(), drv, addr, testOpts())
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer sess.Close()

	if drv.opens != 1 {
		t.Errorf("expected 1 open, got %d", drv.opens)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	drv := &countingDriver{sim: NewSimulator()}
	_, err = Connect(context.Background(), drv, addr, testOpts())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	// The probe gate must prevent protocol handshakes against a dead host.
	if drv.opens != 0 {
		t.Errorf("expected 0 opens, got %d", drv.opens)
	}
}

func TestConnect_ProtocolFailureRetriedThenReported(t *testing.T) {
	addr := reachableAddr(t)
	protoErr := errors.New("handshake rejected")
	drv := &countingDriver{sim: NewSimulator(), failures: 10, failErr: protoErr}

	start := time.Now()
	_, err := Connect(context.Background(), drv, addr, testOpts())
	elapsed := time.Since(start)

	if drv.opens != 3 {
		t.Errorf("expected exactly 3 handshake attempts, got %d", drv.opens)
	}
	// The reported error must carry the protocol failure, not a generic
	// unreachable message.
	if !errors.Is(err, protoErr) {
		t.Errorf("expected underlying protocol error, got %v", err)
	}
	if errors.Is(err, ErrUnreachable) {
		t.Error("protocol failure must not be reported as unreachable")
	}
	// Two delays between three attempts.
	if elapsed < 20*time.Millisecond {
		t.Errorf("expected retry delays to elapse, took %v", elapsed)
	}
}

func TestConnect_RecoversMidRetry(t *testing.T) {
	addr := reachableAddr(t)
	drv := &countingDriver{sim: NewSimulator(), failures: 2, failErr: errors.New("busy")}

	sess, err := Connect(context.Background(), drv, addr, testOpts())
	if err != nil {
		t.Fatalf("expected recovery on third attempt, got %v", err)
	}
	defer sess.Close()

	if drv.opens != 3 {
		t.Errorf("expected 3 opens, got %d", drv.opens)
	}
}

func TestConnect_CancelledDuringRetryDelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	opts := testOpts()
	opts.RetryDelay = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = Connect(ctx, &countingDriver{sim: NewSimulator()}, addr, opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not interrupt the retry delay")
	}
}
