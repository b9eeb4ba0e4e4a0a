package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/greeter-web/internal/http/greeter"
	"github.com/janisto/greeter-web/internal/http/health"
	applog "github.com/janisto/greeter-web/internal/platform/logging"
	appmiddleware "github.com/janisto/greeter-web/internal/platform/middleware"
	"github.com/janisto/greeter-web/internal/platform/respond"
)

const (
	// DocsPath serves the interactive API reference.
	DocsPath = "/api-docs"
	// HealthPath serves the liveness probe.
	HealthPath = "/health"

	maxRequestBytes = 1 << 20
)

// NewRouter builds the full HTTP handler: middleware stack, error handlers,
// the health probe and every API operation.
func NewRouter(title, version string) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	router.Use(
		appmiddleware.Security(DocsPath),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP trusts X-Forwarded-For; deploy behind a proxy that sets it.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(maxRequestBytes),
		chimiddleware.GetHead,
		applog.RequestLogger(),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	router.Get(HealthPath, health.Handler)

	cfg := huma.DefaultConfig(title, version)
	cfg.DocsPath = DocsPath
	Register(humachi.New(router, cfg))
	return router
}

// Register wires all API operations into api.
func Register(api huma.API) {
	greeter.Register(api)
}
