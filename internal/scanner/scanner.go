// Package scanner discovers terminals on a local subnet by brute-force
// probing every host address on the device port. Hosts that accept the
// transport probe get a full protocol handshake so the result carries
// hardware metadata, not just an open port.
package scanner

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/biofleet/biofleet-core/internal/device"
	"github.com/biofleet/biofleet-core/internal/infrastructure/config"
	"github.com/biofleet/biofleet-core/internal/terminal"
)

// Host address range scanned within the /24.
const (
	firstHost = 1
	lastHost  = 254
)

// Logger defines the logging interface for the scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Result is one discovered terminal.
type Result struct {
	Address string      `json:"ip"`
	Port    int         `json:"port"`
	Info    device.Info `json:"info"`
}

// Scanner sweeps a /24 for terminals using a bounded worker pool.
type Scanner struct {
	cfg    config.ScannerConfig
	driver terminal.Driver
	logger Logger
}

// New creates a scanner using drv to identify responding hosts.
func New(cfg config.ScannerConfig, drv terminal.Driver) *Scanner {
	return &Scanner{
		cfg:    cfg,
		driver: drv,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the scanner.
func (s *Scanner) SetLogger(logger Logger) {
	s.logger = logger
}

// Scan probes hosts prefix.1 through prefix.254 on the configured port.
// prefix must be the first three octets of an IPv4 network, e.g.
// "192.168.1". Hosts that accept the probe but fail the protocol
// handshake are skipped, not reported as errors.
//
// Returns:
//   - []Result: discovered terminals ordered by host address
//   - error: invalid prefix, or ctx.Err() if the sweep was cancelled
func (s *Scanner) Scan(ctx context.Context, prefix string) ([]Result, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	s.logger.Info("network scan started", "prefix", prefix, "port", s.cfg.Port, "workers", workers)

	jobs := make(chan int)
	var (
		mu      sync.Mutex
		results []Result
		wg      sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for host := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if res, ok := s.check(ctx, fmt.Sprintf("%s.%d", prefix, host)); ok {
					mu.Lock()
					results = append(results, res)
					mu.Unlock()
				}
			}
		}()
	}

	for host := firstHost; host <= lastHost; host++ {
		select {
		case <-ctx.Done():
			host = lastHost + 1
		case jobs <- host:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return hostOctet(results[i].Address) < hostOctet(results[j].Address)
	})

	s.logger.Info("network scan complete", "prefix", prefix, "found", len(results))
	return results, nil
}

// check probes one host and, if reachable, identifies it via the driver.
func (s *Scanner) check(ctx context.Context, ip string) (Result, bool) {
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", s.cfg.Port))
	timeout := s.cfg.TimeoutDuration()

	if !terminal.Probe(ctx, addr, timeout) {
		return Result{}, false
	}

	sess, err := s.driver.Open(ctx, addr, timeout)
	if err != nil {
		s.logger.Debug("open port without terminal handshake", "address", addr, "error", err)
		return Result{}, false
	}
	defer sess.Close()

	info, err := sess.Info(ctx)
	if err != nil {
		s.logger.Debug("terminal info read failed during scan", "address", addr, "error", err)
		return Result{}, false
	}

	return Result{Address: ip, Port: s.cfg.Port, Info: info}, true
}

// validatePrefix checks prefix is three valid IPv4 octets.
func validatePrefix(prefix string) error {
	parts := strings.Split(prefix, ".")
	if len(parts) != 3 {
		return fmt.Errorf("scan prefix %q must be the first three octets of an IPv4 network", prefix)
	}
	if ip := net.ParseIP(prefix + ".1"); ip == nil {
		return fmt.Errorf("scan prefix %q is not a valid IPv4 network", prefix)
	}
	return nil
}

// hostOctet extracts the final octet for result ordering.
func hostOctet(ip string) int {
	idx := strings.LastIndex(ip, ".")
	if idx < 0 {
		return 0
	}
	n := 0
	fmt.Sscanf(ip[idx+1:], "%d", &n)
	return n
}
