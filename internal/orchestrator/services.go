package orchestrator

import (
	"fmt"

	"tripstack/internal/process"
)

// Application service names, in spawn order. The API only needs the
// inference daemon (and optionally the store) up front; the backend needs
// the API to be network-reachable, which its own readiness probe covers;
// the frontend depends on nothing at spawn time.
const (
	ServiceAPI      = "ai-service"
	ServiceBackend  = "backend"
	ServiceFrontend = "frontend"
)

// serviceSpecs builds the immutable per-run service definitions.
// cacheActive reflects the effective caching state after dependency
// provisioning, which may differ from the requested one.
func (o *Orchestrator) serviceSpecs(cacheActive bool) []process.Spec {
	cfg := o.cfg
	return []process.Spec{
		{
			Name:    ServiceAPI,
			Command: fmt.Sprintf("uvicorn app.main:app --host 0.0.0.0 --port %d", cfg.APIPort),
			WorkDir: cfg.APIDir,
			Env: []string{
				fmt.Sprintf("CACHE_ENABLED=%t", cacheActive),
				"LLM_ENDPOINT=" + cfg.OllamaURL + "/api/generate",
				"LLM_MODEL=" + cfg.Model,
			},
			Port:      cfg.APIPort,
			HealthURL: fmt.Sprintf("http://localhost:%d/docs", cfg.APIPort),
		},
		{
			Name:    ServiceBackend,
			Command: "npm run dev",
			WorkDir: cfg.BackendDir,
			Env: []string{
				fmt.Sprintf("PORT=%d", cfg.BackendPort),
				fmt.Sprintf("AI_SERVICE_URL=http://localhost:%d", cfg.APIPort),
			},
			Port:      cfg.BackendPort,
			HealthURL: fmt.Sprintf("http://localhost:%d/version", cfg.BackendPort),
		},
		{
			Name:    ServiceFrontend,
			Command: "npm run dev",
			WorkDir: cfg.FrontendDir,
			Env: []string{
				fmt.Sprintf("PORT=%d", cfg.FrontendPort),
				fmt.Sprintf("VITE_BACKEND_URL=http://localhost:%d", cfg.BackendPort),
			},
			Port:      cfg.FrontendPort,
			HealthURL: fmt.Sprintf("http://localhost:%d/", cfg.FrontendPort),
		},
	}
}
