package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSink delivers events by POSTing JSON to a collector endpoint.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates a sink targeting url. The timeout bounds each
// delivery end to end, connection establishment included.
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Deliver implements Sink. The collector's payload carries the device
// address already, so the device identifier is unused here.
func (s *HTTPSink) Deliver(ctx context.Context, _ string, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting event: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sink returned status %d", resp.StatusCode)
	}
	return nil
}
