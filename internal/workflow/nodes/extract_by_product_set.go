package nodes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
)

// ExtractByProductSet fetches a page of product ids for a platform's
// sale-status rotation (spec §4.8 typed node extract-by-product-set).
type ExtractByProductSet struct {
	HTTP    Doer
	BaseURL func(platform string) string
}

type productSetResponse struct {
	ProductIDs []string `json:"product_ids"`
	HasMore    bool     `json:"has_more"`
}

// Execute implements registry.Strategy.
func (n *ExtractByProductSet) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	platform, err := configString(ctx.Config, "platform")
	if err != nil {
		return registry.Result{}, err
	}
	saleStatus, _ := ctx.Config["sale_status"].(string)
	limit := configInt(ctx.Config, "limit", 100)
	batchSize := configInt(ctx.Config, "batch_size", 20)

	if ctx.RateLimiter != nil {
		if err := ctx.RateLimiter.Wait(platform); err != nil {
			return registry.Result{}, fmt.Errorf("extract-by-product-set: rate limit: %w", err)
		}
	}

	url := fmt.Sprintf("%s/products?sale_status=%s&limit=%d&batch_size=%d", n.BaseURL(platform), saleStatus, limit, batchSize)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return registry.Result{}, fmt.Errorf("extract-by-product-set: build request: %w", err)
	}

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return registry.Result{}, fmt.Errorf("extract-by-product-set: fetch %s: %w", platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return registry.Result{}, fmt.Errorf("extract-by-product-set: %s returned status %d", platform, resp.StatusCode)
	}

	var parsed productSetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return registry.Result{}, fmt.Errorf("extract-by-product-set: decode response: %w", err)
	}

	ctx.Logger.Debug().Int("count", len(parsed.ProductIDs)).Msg("fetched product set")

	return registry.Result{Data: map[string]interface{}{
		"product_ids": parsed.ProductIDs,
		"has_more":    parsed.HasMore,
	}}, nil
}
