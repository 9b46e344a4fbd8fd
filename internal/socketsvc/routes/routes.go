package routes

import (
	"github.com/go-chi/chi"

	"github.com/avvvet/mastermind-services/internal/socketsvc/handlers"
	"github.com/avvvet/mastermind-services/internal/socketsvc/ws"
)

// SetRoutes mounts the socket endpoint. Authentication happens in the init
// message, since browsers cannot set headers on websocket upgrades.
func SetRoutes(r chi.Router, s *ws.Ws, port string) {
	h := handlers.NewHandler(s, port)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
	})
}
