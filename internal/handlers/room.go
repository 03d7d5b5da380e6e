// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/soliduel/soliduel/internal/models"
	"github.com/soliduel/soliduel/internal/room"
	"github.com/soliduel/soliduel/internal/store"
)

type createRoomRequest struct {
	MaxRounds int `json:"max_rounds,omitempty"`
}

type createRoomResponse struct {
	RoomID uuid.UUID `json:"room_id"`
}

// CreateRoomHandler creates a room document with the caller as host and
// returns the room id. The caller then connects to /room/ws/{room_id}.
func CreateRoomHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		hostID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		var req createRoomRequest
		if r.Body != nil {
			// Empty body is fine; defaults apply.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		maxRounds := room.DefaultMaxRounds
		if req.MaxRounds > 0 {
			maxRounds = req.MaxRounds
		}
		doc := models.NewRoom(hostID, maxRounds)
		if err := st.CreateRoom(r.Context(), doc); err != nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createRoomResponse{RoomID: doc.ID})
	}
}

type roomInfoResponse struct {
	RoomID     uuid.UUID         `json:"room_id"`
	Status     models.RoomStatus `json:"status"`
	Round      int               `json:"round"`
	MaxRounds  int               `json:"max_rounds"`
	HasGuest   bool              `json:"has_guest"`
	Spectators int               `json:"spectators"`
}

// GetRoomHandler returns a small public summary of a room, enough for a
// client to decide whether to join as a player or a spectator.
func GetRoomHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/room/")
		if idx := strings.Index(idStr, "/"); idx != -1 {
			idStr = idStr[:idx]
		}
		roomID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}

		doc, err := st.GetRoom(r.Context(), roomID)
		if err == store.ErrRoomNotFound {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "failed to load room", http.StatusInternalServerError)
			return
		}

		resp := roomInfoResponse{
			RoomID:     doc.ID,
			Status:     doc.Status,
			Round:      doc.CurrentRound,
			MaxRounds:  doc.MaxRounds,
			HasGuest:   doc.GuestID != uuid.Nil,
			Spectators: len(doc.Spectators),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
