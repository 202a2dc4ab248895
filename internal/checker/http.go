package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDrainBytes bounds how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

type httpProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProber returns the HTTP driver. A nil client gets a fresh one whose
// timeout equals the probe ceiling.
func NewHTTPProber(client *http.Client, timeout time.Duration) Prober {
	if timeout <= 0 {
		timeout = DefaultTimeouts().HTTP
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &httpProber{client: client, timeout: timeout}
}

func (p *httpProber) Probe(ctx context.Context, target string) (out Outcome) {
	start := time.Now()
	defer recoverOutcome(start, &out)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Failed(time.Since(start), fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("User-Agent", "uptimekit")

	resp, err := p.client.Do(req)
	if err != nil {
		return Failed(time.Since(start), err.Error())
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return Failed(elapsed, fmt.Sprintf("unexpected status %s", resp.Status))
	}
	return Succeeded(elapsed)
}

func recoverOutcome(start time.Time, out *Outcome) {
	if r := recover(); r != nil {
		*out = Failed(time.Since(start), fmt.Sprintf("probe panic: %v", r))
	}
}
