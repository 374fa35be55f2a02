package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/protocol"
	"sketchroom/internal/core/services"
	"sketchroom/internal/infrastructure/middleware"
	"sketchroom/internal/infrastructure/repositories/memory"
	"sketchroom/internal/render"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopConn struct{ id domain.ParticipantID }

func (c nopConn) ID() domain.ParticipantID     { return c.id }
func (c nopConn) Send(protocol.Envelope) error { return nil }
func (c nopConn) Close() error                 { return nil }

type testAPI struct {
	router *gin.Engine
	rooms  *services.RoomManager
	auth   services.AuthService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop().Sugar()
	auth := services.NewAuthService("handler-secret", time.Hour, time.Hour)
	rooms := services.NewRoomManager(
		memory.NewMemoryRoomRepository(),
		auth,
		nil,
		services.RoomManagerConfig{IdleTimeout: time.Minute, DefaultWidth: 64, DefaultHeight: 48},
		logger,
	)
	t.Cleanup(rooms.Close)

	boards := services.NewBoardService(memory.NewMemoryCanvasStore(), nil, logger)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	NewRoomHandler(rooms, boards, auth, logger).SetupRoutes(router)

	return &testAPI{router: router, rooms: rooms, auth: auth}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type createResponse struct {
	Room        domain.RoomInfo `json:"room"`
	OwnerToken  string          `json:"owner_token"`
	InviteToken string          `json:"invite_token"`
}

func (a *testAPI) createRoom(t *testing.T, body map[string]interface{}) createResponse {
	t.Helper()
	w := a.do(http.MethodPost, "/api/v1/rooms", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp createResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (a *testAPI) drawLine(t *testing.T, roomID domain.RoomID, token string) {
	t.Helper()
	ctx := context.Background()
	room, p, err := a.rooms.Join(ctx, roomID, nopConn{id: "painter"}, "painter", token)
	require.NoError(t, err)

	tool := domain.DefaultTool()
	tool.Size = 6
	require.NoError(t, room.BeginStroke(ctx, p.ID, protocol.StrokeBeginPayload{
		StrokeID: "line", Tool: tool, Point: protocol.WirePoint{X: 5, Y: 24},
	}))
	require.NoError(t, room.UpdateStroke(ctx, p.ID, protocol.StrokeUpdatePayload{
		StrokeID: "line",
		Points:   []protocol.WirePoint{{X: 20, Y: 24}, {X: 40, Y: 24}, {X: 58, Y: 24}},
	}))
	require.NoError(t, room.EndStroke(ctx, p.ID, protocol.StrokeEndPayload{StrokeID: "line"}))
}

func TestRoomHandler_CreateAndList(t *testing.T) {
	api := newTestAPI(t)

	public := api.createRoom(t, map[string]interface{}{"name": "Sketch club"})
	assert.NotEmpty(t, public.OwnerToken)
	assert.Empty(t, public.InviteToken)
	assert.Equal(t, domain.RoomTypeFreeform, public.Room.Type)
	assert.Equal(t, 64, public.Room.Settings.Width)

	private := api.createRoom(t, map[string]interface{}{"name": "Secret", "private": true})
	assert.NotEmpty(t, private.InviteToken)

	w := api.do(http.MethodGet, "/api/v1/rooms", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Rooms []domain.RoomInfo `json:"rooms"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, public.Room.ID, list.Rooms[0].ID)
}

func TestRoomHandler_CreateRejectsBadInput(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{name: "unknown type", body: map[string]interface{}{"type": "poker"}},
		{name: "oversized board", body: map[string]interface{}{"width": 100000}},
		{name: "negative size", body: map[string]interface{}{"height": -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/v1/rooms", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_INPUT")
		})
	}
}

func TestRoomHandler_GetRoom(t *testing.T) {
	api := newTestAPI(t)
	created := api.createRoom(t, map[string]interface{}{"name": "Board"})

	w := api.do(http.MethodGet, "/api/v1/rooms/"+string(created.Room.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"participants"`)

	w = api.do(http.MethodGet, "/api/v1/rooms/missing-room", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomHandler_PrivateRoomNeedsToken(t *testing.T) {
	api := newTestAPI(t)
	created := api.createRoom(t, map[string]interface{}{"private": true})
	path := "/api/v1/rooms/" + string(created.Room.ID)

	w := api.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"UNAUTHORIZED"`)
	assert.Contains(t, w.Body.String(), "private room requires a token")
	assert.Contains(t, w.Body.String(), string(created.Room.ID))
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, path+"/board.png", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, path, created.InviteToken, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, path, created.OwnerToken, nil).Code)

	other := api.createRoom(t, map[string]interface{}{"private": true})
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, path, other.OwnerToken, nil).Code)
}

func TestRoomHandler_OwnerRoutes(t *testing.T) {
	api := newTestAPI(t)
	created := api.createRoom(t, map[string]interface{}{"type": "guessing_game", "private": true})
	base := "/api/v1/rooms/" + string(created.Room.ID)

	w := api.do(http.MethodPost, base+"/invites", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, base+"/invites", created.InviteToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, base+"/invites", created.OwnerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var invite struct {
		InviteToken string `json:"invite_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invite))
	assert.NoError(t, api.auth.VerifyInvite(invite.InviteToken, created.Room.ID))

	w = api.do(http.MethodPut, base+"/word", created.OwnerToken, map[string]string{"word": "giraffe"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodPut, base+"/word", created.OwnerToken, map[string]string{"word": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_SetWordOnFreeformConflicts(t *testing.T) {
	api := newTestAPI(t)
	created := api.createRoom(t, map[string]interface{}{})

	w := api.do(http.MethodPut, "/api/v1/rooms/"+string(created.Room.ID)+"/word", created.OwnerToken,
		map[string]string{"word": "cat"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoomHandler_ClearEmptiesBoard(t *testing.T) {
	api := newTestAPI(t)
	created := api.createRoom(t, map[string]interface{}{})
	api.drawLine(t, created.Room.ID, "")

	w := api.do(http.MethodPost, "/api/v1/rooms/"+string(created.Room.ID)+"/clear", created.OwnerToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	room, err := api.rooms.Get(context.Background(), created.Room.ID)
	require.NoError(t, err)
	strokes, err := room.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, strokes)
}

func TestRoomHandler_ExportPNG(t *testing.T) {
	api := newTestAPI(t)
	created := api.createRoom(t, map[string]interface{}{})
	api.drawLine(t, created.Room.ID, "")

	w := api.do(http.MethodGet, "/api/v1/rooms/"+string(created.Room.ID)+"/board.png", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	surface, err := render.DecodePNG(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 64, surface.Width())
	assert.Equal(t, 48, surface.Height())
	assert.Equal(t, uint8(255), surface.At(30, 24).A)
	assert.Equal(t, uint8(0), surface.At(30, 5).A)
}

func TestRoomHandler_ExportPDF(t *testing.T) {
	api := newTestAPI(t)
	created := api.createRoom(t, map[string]interface{}{"name": "Printable"})

	w := api.do(http.MethodGet, "/api/v1/rooms/"+string(created.Room.ID)+"/board.pdf", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestRoomHandler_SnapshotRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	created := api.createRoom(t, map[string]interface{}{})
	api.drawLine(t, created.Room.ID, "")
	base := "/api/v1/rooms/" + string(created.Room.ID)

	w := api.do(http.MethodPost, base+"/snapshots/bad%20name", created.OwnerToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, base+"/snapshots/first-draft", created.OwnerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/v1/snapshots/first-draft", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		Width   int    `json:"width"`
		Height  int    `json:"height"`
		DataURL string `json:"data_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 64, snap.Width)
	assert.Equal(t, 48, snap.Height)
	surface, err := render.DecodeDataURL(snap.DataURL)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), surface.At(30, 24).A)

	w = api.do(http.MethodGet, "/api/v1/snapshots/first-draft?format=png", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = api.do(http.MethodGet, "/api/v1/snapshots/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
