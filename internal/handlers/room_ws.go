// internal/handlers/room_ws.go
package handlers

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/caucus/internal/middleware"
)

// RoomWSHandler upgrades /ws/{roomId} and runs a session for the connection until it
// closes.
func RoomWSHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			srv.Logger.Warnf("websocket accept error: %v", err)
			return
		}

		c.SetReadLimit(maxFrameBytes)

		if roomID == "" || len(roomID) > maxRoomIDLen {
			c.Close(InvalidRoomIDError, "invalid room id")
			return
		}

		middleware.LogWebSocketConnect(srv.Logger, r.RemoteAddr, roomID)
		err = srv.newSession(c, roomID, r.RemoteAddr).run(r.Context())
		middleware.LogWebSocketDisconnect(srv.Logger, r.RemoteAddr, roomID, err)
	}
}
