package nodes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
)

// MonitorLink issues a HEAD request (with no GET fallback) against a
// watched url and reports whether it is reachable, feeding the
// notify-slack node on failure (spec §4.8 typed node monitor-link).
type MonitorLink struct {
	HTTP Doer
}

// Execute implements registry.Strategy.
func (n *MonitorLink) Execute(ctx *registry.Context, input map[string]interface{}) (registry.Result, error) {
	url, err := configString(ctx.Config, "url")
	if err != nil {
		return registry.Result{}, err
	}
	taskID, _ := ctx.Config["task_id"].(string)
	taskName, _ := ctx.Config["task_name"].(string)

	healthy, statusCode, checkErr := n.check(url)

	data := map[string]interface{}{
		"task_id":     taskID,
		"task_name":   taskName,
		"url":         url,
		"healthy":     healthy,
		"status_code": statusCode,
	}
	if checkErr != nil {
		data["check_error"] = checkErr.Error()
	}

	ctx.Logger.Info().Str("task_id", taskID).Bool("healthy", healthy).Msg("link checked")

	if taskID != "" && ctx.MonitorRecorder != nil {
		if err := ctx.MonitorRecorder.MarkCompleted(context.Background(), taskID, time.Now()); err != nil {
			ctx.Logger.Error().Err(err).Str("task_id", taskID).Msg("record monitor completion")
		}
	}

	return registry.Result{Data: data}, nil
}

func (n *MonitorLink) check(url string) (healthy bool, statusCode int, err error) {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return false, 0, err
	}

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("monitor-link: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode < 400, resp.StatusCode, nil
}
