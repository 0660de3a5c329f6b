package nodes

import (
	"net/http"
	"time"

	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
)

// PlatformBaseURLs maps a platform name to the base URL its extraction
// nodes should talk to.
type PlatformBaseURLs func(platform string) string

// Wire registers every built-in node strategy against reg, using client
// for outbound HTTP calls and baseURL to resolve a platform to its API
// root. Call once at startup before any workflow is executed.
func Wire(reg *registry.Registry, client Doer, baseURL PlatformBaseURLs) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == nil {
		baseURL = func(platform string) string { return "" }
	}

	reg.Register("extract-by-product-set", func() registry.Strategy {
		return &ExtractByProductSet{HTTP: client, BaseURL: baseURL}
	})
	reg.Register("extract-by-product-id", func() registry.Strategy {
		return &ExtractByProductID{HTTP: client, BaseURL: baseURL}
	})
	reg.Register("extract-by-url", func() registry.Strategy {
		return &ExtractByURL{HTTP: client}
	})
	reg.Register("monitor-link", func() registry.Strategy {
		return &MonitorLink{HTTP: client}
	})
	reg.Register("notify-slack", func() registry.Strategy {
		return &NotifySlack{}
	})
	reg.Register("result-writer", func() registry.Strategy {
		return &ResultWriter{}
	})
	reg.Register("generic", func() registry.Strategy {
		return &Generic{}
	})
}
