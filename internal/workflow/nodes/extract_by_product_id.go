package nodes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
)

// ExtractByProductID fetches per-product detail for the ids an upstream
// extract-by-product-set node produced, bounded by the job's configured
// concurrency (spec §4.8 typed node extract-by-product-id).
type ExtractByProductID struct {
	HTTP    Doer
	BaseURL func(platform string) string
}

type productDetail struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	ThumbnailURL string  `json:"thumbnail_url"`
}

// Execute implements registry.Strategy.
func (n *ExtractByProductID) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	platform, err := configString(ctx.Config, "platform")
	if err != nil {
		return registry.Result{}, err
	}
	concurrency := configInt(ctx.Config, "concurrency", 4)
	if concurrency < 1 {
		concurrency = 1
	}

	ids, ok := input["product_ids"].([]string)
	if !ok {
		return registry.Result{}, fmt.Errorf("extract-by-product-id: no product_ids in accumulated input")
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	products := make([]productDetail, 0, len(ids))
	var firstErr error

	for _, id := range ids {
		id := id
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			detail, err := n.fetchOne(ctx, platform, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			products = append(products, detail)
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return registry.Result{}, firstErr
	}

	return registry.Result{Data: map[string]interface{}{"products": products}}, nil
}

func (n *ExtractByProductID) fetchOne(ctx *registry.Context, platform, id string) (productDetail, error) {
	if ctx.RateLimiter != nil {
		if err := ctx.RateLimiter.Wait(platform); err != nil {
			return productDetail{}, fmt.Errorf("extract-by-product-id: rate limit %s: %w", id, err)
		}
	}

	url := fmt.Sprintf("%s/products/%s", n.BaseURL(platform), id)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return productDetail{}, fmt.Errorf("extract-by-product-id: build request %s: %w", id, err)
	}

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return productDetail{}, fmt.Errorf("extract-by-product-id: fetch %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return productDetail{}, fmt.Errorf("extract-by-product-id: %s returned status %d", id, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return productDetail{}, fmt.Errorf("extract-by-product-id: read %s: %w", id, err)
	}

	var detail productDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return productDetail{}, fmt.Errorf("extract-by-product-id: decode %s: %w", id, err)
	}

	if ctx.Archiver != nil && detail.ThumbnailURL != "" {
		archived, err := ctx.Archiver.Archive(platform, detail.ThumbnailURL, body)
		if err != nil {
			ctx.Logger.Warn().Err(err).Str("product_id", id).Msg("thumbnail archive failed, continuing without it")
		} else {
			detail.ThumbnailURL = archived
		}
	}

	return detail, nil
}
