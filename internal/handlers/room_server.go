// internal/handlers/room_server.go
package handlers

import (
	"context"
	"time"

	"github.com/jason-s-yu/caucus/internal/bus"
	"github.com/jason-s-yu/caucus/internal/cache"
	"github.com/jason-s-yu/caucus/internal/metrics"
	"github.com/jason-s-yu/caucus/internal/models"
	"github.com/jason-s-yu/caucus/internal/pool"
	"github.com/jason-s-yu/caucus/internal/room"
	"github.com/sirupsen/logrus"
)

// RoomStore is the registry API sessions and HTTP handlers depend on.
type RoomStore interface {
	CreateRoom(name string) string
	State(roomID string) (models.RoomState, bool)
	Join(roomID string) int
	Leave(roomID string, seatID int) (models.RoomState, bool)
	Apply(roomID string, msg models.ClientMessage) models.RoomState
	Rooms() []string
}

// publishingStore is a RoomStore that publishes its own snapshots.
type publishingStore interface {
	SetPublisher(p room.Publisher)
}

const (
	defaultPingInterval = 60 * time.Second
	defaultWriteTimeout = 5 * time.Second
	journalTimeout      = 2 * time.Second
)

// RoomServer holds the collaborators shared by every connection.
type RoomServer struct {
	Rooms     RoomStore
	Directory *pool.Directory
	Bus       *bus.Bus
	Journal   cache.Journal
	Logger    *logrus.Logger

	PingInterval time.Duration
	WriteTimeout time.Duration
}

// NewRoomServer wires a RoomServer with default timings and a no-op journal. A store
// that can publish is pointed at b, so room snapshots reach the bus in the order the
// store applied them.
func NewRoomServer(rooms RoomStore, dir *pool.Directory, b *bus.Bus, logger *logrus.Logger) *RoomServer {
	if ps, ok := rooms.(publishingStore); ok {
		ps.SetPublisher(b)
	}
	return &RoomServer{
		Rooms:        rooms,
		Directory:    dir,
		Bus:          b,
		Journal:      cache.NopJournal{},
		Logger:       logger,
		PingInterval: defaultPingInterval,
		WriteTimeout: defaultWriteTimeout,
	}
}

// record journals one room event. Failures are logged and otherwise ignored.
func (srv *RoomServer) record(room, kind string, seatID int, payload any) {
	if srv.Journal == nil {
		return
	}
	rec, err := cache.NewRecord(room, kind, seatID, payload)
	if err != nil {
		srv.Logger.Warnf("Room %s: %v", room, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := srv.Journal.Record(ctx, rec); err != nil {
		srv.Logger.Warnf("Room %s: journal %s failed: %v", room, kind, err)
	}
}

// refreshRoomGauge sets the active-room gauge from the directory.
func (srv *RoomServer) refreshRoomGauge() {
	metrics.RoomsActive.Set(float64(len(srv.Directory.Rooms())))
}
