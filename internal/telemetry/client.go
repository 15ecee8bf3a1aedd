package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/danielpatrickdp/guardian/internal/retry"
)

// #region wire

// wireWindow mirrors the platform's telemetry window contract: a metric-name
// to value mapping plus per-event diagnostics.
type wireWindow struct {
	Metrics     map[string]float64 `json:"metrics"`
	WindowStart time.Time          `json:"window_start"`
	WindowEnd   time.Time          `json:"window_end"`
	Events      []Event            `json:"events"`
}

// requiredMetrics are the fields the gate decides on; a window missing any of
// them is unreadable.
var requiredMetrics = []string{
	"win_rate", "hallucination_rate", "p95_latency_delta", "policy_violation_count",
}

// #endregion wire

// #region client

// HTTPReader reads aggregated telemetry windows over HTTP with a bounded
// timeout and the shared retry budget. It never blocks a caller's loop past
// the budget.
type HTTPReader struct {
	url    string
	client *http.Client
	policy retry.Policy
}

// NewHTTPReader creates a reader for the given window endpoint.
func NewHTTPReader(url string, policy retry.Policy) *HTTPReader {
	return &HTTPReader{
		url:    url,
		client: &http.Client{Timeout: policy.Timeout},
		policy: policy,
	}
}

// ReadWindow fetches and validates the current telemetry window.
func (r *HTTPReader) ReadWindow(ctx context.Context) (Snapshot, error) {
	var wire wireWindow

	err := r.policy.Do(ctx, "telemetry window", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch window: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch window: status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return fmt.Errorf("decode window: %w", err)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	for _, name := range requiredMetrics {
		if _, ok := wire.Metrics[name]; !ok {
			return Snapshot{}, fmt.Errorf("window missing metric %q", name)
		}
	}

	if n := len(wire.Events); n > 0 {
		verifierOK, retried := 0, 0
		for _, ev := range wire.Events {
			if ev.VerifierOK {
				verifierOK++
			}
			if ev.RetryUsed {
				retried++
			}
		}
		log.Printf("[TELEMETRY] window %s..%s events=%d verifier_ok=%d retry_used=%d",
			wire.WindowStart.Format(time.RFC3339), wire.WindowEnd.Format(time.RFC3339),
			n, verifierOK, retried)
	}

	return Snapshot{
		WinRate:           wire.Metrics["win_rate"],
		HallucinationRate: wire.Metrics["hallucination_rate"],
		P95LatencyDelta:   wire.Metrics["p95_latency_delta"],
		PolicyViolations:  int(wire.Metrics["policy_violation_count"]),
		WindowStart:       wire.WindowStart,
		WindowEnd:         wire.WindowEnd,
	}, nil
}

// #endregion client
