package nodes

import (
	"fmt"
	"io"
	"net/http"

	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
)

// ExtractByURL performs a single direct-URL fetch, the legacy extraction
// path kept for workflows that address a product by URL rather than by
// platform product id (spec §4.8 typed node extract-by-url).
type ExtractByURL struct {
	HTTP Doer
}

// Execute implements registry.Strategy.
func (n *ExtractByURL) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	url, err := configString(ctx.Config, "url")
	if err != nil {
		return registry.Result{}, err
	}

	if ctx.RateLimiter != nil && ctx.Platform != "" {
		if err := ctx.RateLimiter.Wait(ctx.Platform); err != nil {
			return registry.Result{}, fmt.Errorf("extract-by-url: rate limit: %w", err)
		}
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return registry.Result{}, fmt.Errorf("extract-by-url: build request: %w", err)
	}

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return registry.Result{}, fmt.Errorf("extract-by-url: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return registry.Result{}, fmt.Errorf("extract-by-url: %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return registry.Result{}, fmt.Errorf("extract-by-url: read %s: %w", url, err)
	}

	return registry.Result{Data: map[string]interface{}{
		"url":          url,
		"status_code":  resp.StatusCode,
		"body_size":    len(body),
		"content_type": resp.Header.Get("Content-Type"),
	}}, nil
}
