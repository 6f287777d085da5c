// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/caucus/internal/models"
)

// IndexHandler creates a room with a generated name and redirects the browser to the
// client page for it.
func IndexHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := srv.Rooms.CreateRoom("")
		srv.Logger.Debugf("Index: generated room %s", room)
		http.Redirect(w, r, "/index.html?room="+url.QueryEscape(room), http.StatusSeeOther)
	}
}

type createRoomRequest struct {
	Room string `json:"room"`
}

type roomResponse struct {
	Room        string            `json:"room"`
	Connections int               `json:"connections"`
	State       *models.RoomState `json:"state,omitempty"`
}

// CreateRoomHandler handles POST /api/rooms. The body may name the room; an empty body
// or empty name gets a generated one.
func CreateRoomHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.Room) > maxRoomIDLen {
			http.Error(w, "room name too long", http.StatusBadRequest)
			return
		}

		room := srv.Rooms.CreateRoom(req.Room)
		writeJSON(w, http.StatusCreated, roomResponse{Room: room})
	}
}

// GetRoomHandler handles GET /api/rooms/{roomId}.
func GetRoomHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := chi.URLParam(r, "roomId")
		st, ok := srv.Rooms.State(room)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse{
			Room:        room,
			Connections: srv.Directory.Count(room),
			State:       &st,
		})
	}
}

// ListRoomsHandler handles GET /api/rooms.
func ListRoomsHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conns := srv.Directory.Rooms()
		ids := srv.Rooms.Rooms()
		out := make([]roomResponse, 0, len(ids))
		for _, id := range ids {
			out = append(out, roomResponse{Room: id, Connections: conns[id]})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ClientPageHandler serves index.html itself. http.FileServer would redirect
// /index.html to / and lose the room query.
func ClientPageHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(filepath.Join(staticDir, "index.html"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.Error(w, "cannot read client page", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, "index.html", info.ModTime(), f)
	}
}

// Healthz always answers 200.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
