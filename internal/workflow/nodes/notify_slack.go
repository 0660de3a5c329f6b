package nodes

import (
	"context"
	"fmt"

	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
)

// NotifySlack posts a summary of the preceding node's output to the
// configured alert channel, skipping silently when nothing upstream
// reported a problem (spec §4.8 typed node notify-slack).
type NotifySlack struct{}

// Execute implements registry.Strategy.
func (n *NotifySlack) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	if healthy, ok := input["healthy"].(bool); ok && healthy {
		return registry.Result{Data: map[string]interface{}{"notified": false}}, nil
	}

	if ctx.Notifier == nil {
		return registry.Result{Data: map[string]interface{}{"notified": false}}, nil
	}

	taskID, _ := ctx.Config["task_id"].(string)
	text := fmt.Sprintf("monitor %s reported unhealthy: %v", taskID, input["check_error"])

	if err := ctx.Notifier.Notify(context.Background(), text); err != nil {
		ctx.Logger.Error().Err(err).Str("task_id", taskID).Msg("notify-slack: send failed")
		return registry.Result{Data: map[string]interface{}{"notified": false}}, nil
	}

	return registry.Result{Data: map[string]interface{}{"notified": true}}, nil
}
