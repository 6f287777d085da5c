// internal/handlers/room_session.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/caucus/internal/bus"
	"github.com/jason-s-yu/caucus/internal/cache"
	"github.com/jason-s-yu/caucus/internal/metrics"
	"github.com/jason-s-yu/caucus/internal/models"
	"github.com/jason-s-yu/caucus/internal/pool"
	"github.com/sirupsen/logrus"
)

var errBusClosed = errors.New("update bus closed")

// wsConn is the part of *websocket.Conn a session uses.
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type sessionState int

const (
	stateConnecting sessionState = iota
	stateActive
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateActive:
		return "active"
	default:
		return "closed"
	}
}

// inbound is one result of a socket read.
type inbound struct {
	data []byte
	err  error
}

// roomSession drives one client connection inside one room.
type roomSession struct {
	srv    *RoomServer
	conn   wsConn
	room   string
	handle *pool.Handle
	log    *logrus.Entry

	mu     sync.Mutex
	state  sessionState
	seat   int
	joined bool
	sub    *bus.Subscription

	stopReader context.CancelFunc
	closeOnce  sync.Once
}

func (srv *RoomServer) newSession(conn wsConn, room, remoteAddr string) *roomSession {
	h := pool.NewHandle(remoteAddr)
	return &roomSession{
		srv:    srv,
		conn:   conn,
		room:   room,
		handle: h,
		log: srv.Logger.WithFields(logrus.Fields{
			"room":    room,
			"session": h.ID.String(),
		}),
	}
}

func (s *roomSession) setState(st sessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *roomSession) currentState() sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// run performs the handshake, drives the event loop and always cleans up. The returned
// error says why the session ended; nil means the client closed normally.
func (s *roomSession) run(ctx context.Context) error {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	err := s.handshake(ctx)
	if err == nil {
		err = s.loop(ctx)
	}
	s.close(err)

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	return err
}

// handshake seats the client, subscribes it to room updates and sends the initial
// PlayerAssigned and UpdateState frames.
func (s *roomSession) handshake(ctx context.Context) error {
	s.srv.Directory.Register(s.room, s.handle)
	s.srv.refreshRoomGauge()

	// Subscribe first so no snapshot published after the join is missed. Join itself
	// publishes the new seat to everyone already in the room.
	sub := s.srv.Bus.Subscribe(s.room)
	seat := s.srv.Rooms.Join(s.room)

	s.mu.Lock()
	s.seat = seat
	s.joined = true
	s.sub = sub
	s.mu.Unlock()

	s.log = s.log.WithField("seat", seat)
	s.srv.record(s.room, cache.KindJoin, seat, nil)

	snap, ok := s.srv.Rooms.State(s.room)
	if !ok {
		snap = models.NewRoomState()
	}

	if err := s.write(ctx, models.PlayerAssigned{PlayerID: seat}); err != nil {
		return fmt.Errorf("send PlayerAssigned: %w", err)
	}
	if err := s.write(ctx, models.UpdateState{State: snap}); err != nil {
		return fmt.Errorf("send initial state: %w", err)
	}

	s.setState(stateActive)
	s.log.Debug("Session active")
	return nil
}

// loop waits on inbound frames, the keepalive ticker and bus updates, handling
// whichever is ready first, until one of them fails.
func (s *roomSession) loop(ctx context.Context) error {
	readCtx, cancel := context.WithCancel(ctx)
	s.stopReader = cancel
	frames := make(chan inbound)
	go s.readPump(readCtx, frames)

	interval := s.srv.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case in := <-frames:
			if in.err != nil {
				return in.err
			}
			s.handleFrame(in.data)

		case <-ticker.C:
			if err := s.write(ctx, models.Ping{Data: 0}); err != nil {
				return fmt.Errorf("send ping: %w", err)
			}

		case upd, ok := <-s.sub.C:
			if !ok {
				return errBusClosed
			}
			if upd.Room != s.room {
				continue
			}
			if err := s.write(ctx, models.UpdateState{State: upd.State}); err != nil {
				return fmt.Errorf("send state update: %w", err)
			}
		}
	}
}

// readPump feeds text frames into out until the socket fails or ctx ends. Binary frames
// are skipped.
func (s *roomSession) readPump(ctx context.Context, out chan<- inbound) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case out <- inbound{err: err}:
			case <-ctx.Done():
			}
			return
		}
		if typ != websocket.MessageText {
			s.log.Debugf("Ignoring non-text frame type %d", typ)
			continue
		}

		select {
		case out <- inbound{data: data}:
		case <-ctx.Done():
			return
		}
	}
}

// handleFrame applies one client frame; the registry publishes the resulting snapshot.
// Frames that fail to decode are dropped without telling the client.
func (s *roomSession) handleFrame(data []byte) {
	msg, err := models.DecodeClientMessage(data)
	if err != nil {
		s.log.Debugf("Dropping frame: %v", err)
		return
	}

	s.srv.Rooms.Apply(s.room, msg)
	metrics.ClientMessages.WithLabelValues(msg.MessageType()).Inc()

	if _, isPong := msg.(models.Pong); !isPong {
		s.srv.record(s.room, msg.MessageType(), s.seatID(), json.RawMessage(data))
	}
}

func (s *roomSession) seatID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seat
}

// write encodes msg and sends it as one text frame, bounded by WriteTimeout.
func (s *roomSession) write(ctx context.Context, msg models.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", msg, err)
	}

	timeout := s.srv.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.conn.Write(writeCtx, websocket.MessageText, data)
}

// close releases everything the session holds. It runs once no matter how many paths
// reach it: unsubscribe, deregister, vacate the seat (the registry promotes a waiting
// participant and publishes the result), then close the socket.
func (s *roomSession) close(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = stateClosed
		sub, joined, seat := s.sub, s.joined, s.seat
		s.mu.Unlock()

		if sub != nil {
			sub.Close()
		}

		left := s.srv.Directory.Deregister(s.room, s.handle)
		s.srv.refreshRoomGauge()
		if left == 0 {
			s.log.Debug("Last connection left the room")
		}

		if joined {
			snap, _ := s.srv.Rooms.Leave(s.room, seat)
			if snap.NotifyChange.CurrentID != 0 {
				metrics.Promotions.Inc()
			}
			s.srv.record(s.room, cache.KindLeave, seat, snap.NotifyChange)
		}

		code, text := websocket.StatusNormalClosure, "bye"
		switch {
		case errors.Is(reason, errBusClosed):
			code, text = BusClosedError, "server shutting down"
		case reason != nil && websocket.CloseStatus(reason) == -1:
			code, text = websocket.StatusGoingAway, "connection closed"
		}
		_ = s.conn.Close(code, text)
		if s.stopReader != nil {
			s.stopReader()
		}

		if reason != nil && websocket.CloseStatus(reason) == -1 && !errors.Is(reason, context.Canceled) {
			s.log.Warnf("Session closed: %v", reason)
		} else {
			s.log.Info("Session closed")
		}
	})
}
