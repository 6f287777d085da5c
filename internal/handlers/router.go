// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/caucus/internal/metrics"
	"github.com/jason-s-yu/caucus/internal/middleware"
	"github.com/rs/cors"
)

// NewRouter builds the HTTP surface: room redirect, websocket endpoint, room API,
// health, metrics and the static client from staticDir.
func NewRouter(srv *RoomServer, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(srv.Logger))
	r.Use(cors.AllowAll().Handler)

	r.Get("/", IndexHandler(srv))
	r.Get("/ws/{roomId}", RoomWSHandler(srv))

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", ListRoomsHandler(srv))
		r.Post("/", CreateRoomHandler(srv))
		r.Get("/{roomId}", GetRoomHandler(srv))
	})

	r.Get("/healthz", Healthz)
	r.Handle("/metrics", metrics.Handler())

	if staticDir != "" {
		r.Get("/index.html", ClientPageHandler(staticDir))
		r.NotFound(http.FileServer(http.Dir(staticDir)).ServeHTTP)
	}
	return r
}
