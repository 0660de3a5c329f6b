package nodes

import (
	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
)

// ResultWriter is the terminal node of the platform-update workflow: it
// does not call out anywhere, it just folds the accumulated extraction
// output into the final job result (spec §4.8 typed node result-writer).
type ResultWriter struct{}

// Execute implements registry.Strategy.
func (n *ResultWriter) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	platform, _ := ctx.Config["platform"].(string)
	updateSaleStatus := configBool(ctx.Config, "update_sale_status", false)

	products, _ := input["products"].([]productDetail)

	ctx.Logger.Info().
		Str("platform", platform).
		Int("product_count", len(products)).
		Bool("update_sale_status", updateSaleStatus).
		Msg("writing job result")

	return registry.Result{Data: map[string]interface{}{
		"platform":       platform,
		"written_count":  len(products),
		"sale_status_ok": updateSaleStatus,
	}}, nil
}
