// internal/handlers/room_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliduel/soliduel/internal/auth"
	"github.com/soliduel/soliduel/internal/models"
	"github.com/soliduel/soliduel/internal/store"
)

// authedRequest builds a request carrying a valid auth_token cookie, so the
// handler resolves the caller without minting a guest account.
func authedRequest(t *testing.T, method, target string, body string) (*http.Request, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.CreateJWT(userID.String())
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Cookie", "auth_token="+token)
	return req, userID
}

func TestCreateRoomHandler(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "1h")
	auth.Init()
	st := store.NewMemory()

	req, userID := authedRequest(t, http.MethodPost, "/room/create", `{"max_rounds": 5}`)
	w := httptest.NewRecorder()
	CreateRoomHandler(st)(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp createRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	doc, err := st.GetRoom(context.Background(), resp.RoomID)
	require.NoError(t, err)
	assert.Equal(t, userID, doc.HostID)
	assert.Equal(t, 5, doc.MaxRounds)
	assert.Equal(t, models.StatusRoomWait, doc.Status)
}

func TestCreateRoomHandlerRejectsGet(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "1h")
	auth.Init()
	st := store.NewMemory()

	req, _ := authedRequest(t, http.MethodGet, "/room/create", "")
	w := httptest.NewRecorder()
	CreateRoomHandler(st)(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetRoomHandler(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	hostID := uuid.New()
	doc := models.NewRoom(hostID, 3)
	require.NoError(t, st.CreateRoom(ctx, doc))
	_, err := st.Join(ctx, doc.ID, uuid.New())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/room/"+doc.ID.String(), nil)
	w := httptest.NewRecorder()
	GetRoomHandler(st)(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp roomInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, doc.ID, resp.RoomID)
	assert.Equal(t, models.StatusRoomWait, resp.Status)
	assert.True(t, resp.HasGuest)
	assert.Zero(t, resp.Spectators)
}

func TestGetRoomHandlerNotFound(t *testing.T) {
	st := store.NewMemory()
	req := httptest.NewRequest(http.MethodGet, "/room/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	GetRoomHandler(st)(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRoomHandlerBadID(t *testing.T) {
	st := store.NewMemory()
	req := httptest.NewRequest(http.MethodGet, "/room/not-a-uuid", nil)
	w := httptest.NewRecorder()
	GetRoomHandler(st)(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "abc", extractCookieToken("auth_token=abc", "auth_token"))
	assert.Equal(t, "abc", extractCookieToken("other=x; auth_token=abc; more=y", "auth_token"))
	assert.Equal(t, "", extractCookieToken("other=x", "auth_token"))
}
