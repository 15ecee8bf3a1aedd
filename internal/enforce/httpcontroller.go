package enforce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// #region http-controller

// HTTPController drives targets through the platform's lifecycle-control
// endpoint: POST {base}/targets/{name}/{verb}. The enforcer already bounds
// each call with a timeout context, so the client carries none of its own
// beyond a hard ceiling.
type HTTPController struct {
	base   string
	client *http.Client
}

// NewHTTPController creates a controller for the given control endpoint.
func NewHTTPController(base string) *HTTPController {
	return &HTTPController{
		base:   base,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPController) Throttle(ctx context.Context, target string) error {
	return c.post(ctx, target, "throttle")
}

func (c *HTTPController) Degrade(ctx context.Context, target string) error {
	return c.post(ctx, target, "degrade")
}

func (c *HTTPController) Terminate(ctx context.Context, target string) error {
	return c.post(ctx, target, "terminate")
}

func (c *HTTPController) post(ctx context.Context, target, verb string) error {
	endpoint := fmt.Sprintf("%s/targets/%s/%s", c.base, url.PathEscape(target), verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", verb, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", verb, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", verb, target, resp.StatusCode)
	}
	return nil
}

// #endregion http-controller
