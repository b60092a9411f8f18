package authconfig

import (
	"net/http"

	"siakad/internal/authflow"
)

// Handlers are the HTTP entry points of the sign-in routes.
type Handlers struct {
	GET  http.Handler
	POST http.Handler
}

// Export hands out h's GET and POST handlers as they are. Behaviour changes
// belong in Options or the adapter, not here.
func Export(h *authflow.Handler) Handlers {
	return Handlers{GET: h.GET, POST: h.POST}
}
