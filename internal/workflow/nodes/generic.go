package nodes

import "github.com/scoutgrid/orchestrator/internal/workflow/registry"

// Generic is the untyped legacy passthrough: it performs no work of its
// own and simply re-emits its input, letting hand-authored workflows
// stitch nodes together without a dedicated strategy (spec §4.8 legacy
// node generic).
type Generic struct{}

// Execute implements registry.Strategy.
func (n *Generic) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		out[k] = v
	}
	return registry.Result{Data: out}, nil
}
