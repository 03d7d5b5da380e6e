// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soliduel/soliduel/internal/middleware"
	"github.com/soliduel/soliduel/internal/session"
	"github.com/soliduel/soliduel/internal/store"
)

const wsWriteTimeout = 3 * time.Second

// badSubprotocolClose is a custom close code telling the client it connected
// with an unsupported subprotocol.
const badSubprotocolClose websocket.StatusCode = 3000

// RoomWSHandler upgrades the connection for a room and bridges it to a
// session from the manager's registry: one goroutine pumps session events
// out, the handler goroutine reads client inputs in. A client reconnecting
// mid-round re-attaches to its live session and keeps its board; the session
// loop itself owns all game state and outlives any one connection.
func RoomWSHandler(logger *logrus.Logger, st store.Store, mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// URL path: /room/ws/{room_id}
		idStr := strings.TrimPrefix(r.URL.Path, "/room/ws/")
		if idx := strings.Index(idStr, "/"); idx != -1 {
			idStr = idStr[:idx]
		}
		roomID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid room_id in path (/room/ws/{room_id})", http.StatusBadRequest)
			return
		}

		if _, err := st.GetRoom(r.Context(), roomID); err != nil {
			if err == store.ErrRoomNotFound {
				http.Error(w, "room not found", http.StatusNotFound)
			} else {
				http.Error(w, "failed to load room", http.StatusInternalServerError)
			}
			return
		}

		// Authenticate before the upgrade so the guest cookie can still be
		// set on the handshake response.
		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("auth failed for room %s: %v", roomID, err)
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"soliduel"},
			OriginPatterns: []string{"*"}, // tighten for production deployments
		})
		if err != nil {
			logger.Warnf("websocket accept error for room %s: %v", roomID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")

		if c.Subprotocol() != "soliduel" {
			c.Close(badSubprotocolClose, "client must use the 'soliduel' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		s, reattached, err := mgr.Attach(ctx, roomID, userID)
		if err != nil {
			logger.Warnf("join failed for user %s in room %s: %v", userID, roomID, err)
			c.Close(websocket.StatusPolicyViolation, "join failed")
			return
		}
		if reattached {
			logger.Infof("user %s reconnected to room %s", userID, roomID)
		}

		events := s.AttachClient()
		go writeEvents(ctx, c, s, events, logger)

		// Ask the loop for a full state frame so the (re)connected client
		// renders immediately.
		select {
		case s.Inputs() <- session.Input{Kind: session.InputSync}:
		default:
		}

		readInputs(ctx, c, s, logger)

		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// writeEvents drains this connection's event channel into the socket. It
// exits when the channel closes (session finished, or a newer connection for
// the same user attached) and closes the connection cleanly so the read loop
// unblocks.
func writeEvents(ctx context.Context, c *websocket.Conn, s *session.Session, events <-chan session.Event, logger *logrus.Logger) {
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("failed to marshal event %q for room %s: %v", ev.Type, s.RoomID, err)
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err = c.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			logger.Warnf("failed to write event to user %s in room %s: %v", s.UserID, s.RoomID, err)
			return
		}
	}
	c.Close(websocket.StatusNormalClosure, "session ended")
}

// readInputs parses client frames into inputs and feeds the session mailbox.
// Malformed frames get an error event back; the connection stays up.
func readInputs(ctx context.Context, c *websocket.Conn, s *session.Session, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("websocket closed normally for user %s in room %s", s.UserID, s.RoomID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("websocket context canceled for user %s in room %s", s.UserID, s.RoomID)
			} else {
				logger.Warnf("websocket read error for user %s in room %s: %v", s.UserID, s.RoomID, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var in session.Input
		if err := json.Unmarshal(data, &in); err != nil {
			logger.Warnf("invalid JSON from user %s in room %s: %v", s.UserID, s.RoomID, err)
			sendWsError(ctx, c, "invalid JSON format")
			continue
		}
		switch in.Kind {
		case session.InputTap, session.InputStart, session.InputNextRound, session.InputConcede, session.InputSync:
		default:
			sendWsError(ctx, c, "unknown input kind")
			continue
		}

		select {
		case s.Inputs() <- in:
		case <-ctx.Done():
			return
		}
	}
}

// sendWsError pushes a transient error frame to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, msg string) {
	data, err := json.Marshal(session.Event{Type: session.EventError, Message: msg})
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	_ = c.Write(wctx, websocket.MessageText, data)
}
