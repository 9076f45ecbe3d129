package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synxit/synxit-server/internal/logger"
)

// RouterDeps bundles the handlers and middleware the router mounts.
type RouterDeps struct {
	Auth       *AuthHandler
	Blob       *BlobHandler
	Share      *ShareHandler
	Register   *RegisterHandler
	Federation *FederationHandler
	Status     *StatusHandler
	Metrics    *Metrics
	Logger     *logger.Logger

	// WebAppURL, when set, makes GET / redirect to the hosted web app.
	WebAppURL string
}

// NewRouter builds the full route tree. Middleware order: CORS, then
// metrics, then logging, then panic recovery.
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logging := NewLogging(deps.Logger)
	recovery := NewRecovery(deps.Logger)

	r.Use(CORS)
	r.Use(deps.Metrics.Handle)
	r.Use(logging.Handle)
	r.Use(recovery.Handle)

	r.Route("/synxit", func(r chi.Router) {
		r.Post("/auth", deps.Auth.ServeHTTP)
		r.Post("/blob", deps.Blob.ServeHTTP)
		r.Post("/share", deps.Share.ServeHTTP)
		r.Post("/register", deps.Register.ServeHTTP)
		r.Post("/federation", deps.Federation.ServeHTTP)
		r.Get("/status", deps.Status.ServeHTTP)
	})

	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	if deps.WebAppURL != "" {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, deps.WebAppURL, http.StatusFound)
		})
	}

	return r
}
