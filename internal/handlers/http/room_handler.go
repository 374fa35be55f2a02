package http

import (
	"bytes"
	"net/http"
	"strings"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
	"sketchroom/internal/core/services"
	"sketchroom/internal/infrastructure/middleware"
	apperrors "sketchroom/pkg/errors"
	"sketchroom/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBoardSide = 4096

var _ ports.HTTPHandler = (*RoomHandler)(nil)

type RoomHandler struct {
	rooms  *services.RoomManager
	boards *services.BoardService
	auth   services.AuthService
	logger *zap.SugaredLogger
}

func NewRoomHandler(
	rooms *services.RoomManager,
	boards *services.BoardService,
	auth services.AuthService,
	logger *zap.SugaredLogger,
) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		boards: boards,
		auth:   auth,
		logger: logger,
	}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/rooms", h.ListRooms)
		api.POST("/rooms", h.CreateRoom)
		api.GET("/snapshots/:name", h.GetSnapshot)

		// Private rooms need a guest or owner token to be viewed.
		viewer := api.Group("/rooms/:id", middleware.OptionalAuthMiddleware(h.auth))
		viewer.GET("", h.GetRoom)
		viewer.GET("/board.png", h.ExportPNG)
		viewer.GET("/board.pdf", h.ExportPDF)

		owner := api.Group("/rooms/:id",
			middleware.AuthMiddleware(h.auth),
			middleware.RoomPermissionMiddleware(h.auth, domain.RoleOwner),
		)
		owner.POST("/invites", h.CreateInvite)
		owner.PUT("/word", h.SetSecretWord)
		owner.POST("/clear", h.ClearRoom)
		owner.POST("/snapshots/:name", h.SaveSnapshot)
	}
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rooms": rooms,
		"count": len(rooms),
	})
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name       string          `json:"name"`
		Type       domain.RoomType `json:"type"`
		Private    bool            `json:"private"`
		SecretWord string          `json:"secret_word"`
		Width      int             `json:"width"`
		Height     int             `json:"height"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("invalid request body"))
		return
	}

	if req.Type == "" {
		req.Type = domain.RoomTypeFreeform
	}
	if !req.Type.Valid() {
		_ = c.Error(apperrors.NewInvalidInputError("unknown room type").WithContext("type", req.Type))
		return
	}
	if req.Name != "" {
		if err := validation.ValidateRoomName(req.Name); err != nil {
			_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if req.SecretWord != "" {
		if err := validation.ValidateSecretWord(req.SecretWord); err != nil {
			_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if req.Width < 0 || req.Height < 0 || req.Width > maxBoardSide || req.Height > maxBoardSide {
		_ = c.Error(apperrors.NewInvalidInputError("board size out of range").
			WithContext("max", maxBoardSide))
		return
	}

	room, err := h.rooms.Create(c.Request.Context(), services.RoomOptions{
		Name:       strings.TrimSpace(req.Name),
		Type:       req.Type,
		SecretWord: strings.TrimSpace(req.SecretWord),
		Settings: domain.RoomSettings{
			IsPrivate: req.Private,
			Width:     req.Width,
			Height:    req.Height,
		},
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	ownerToken, err := h.auth.GenerateToken(room.ID(), domain.RoleOwner)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := gin.H{
		"room":        room.Info(),
		"owner_token": ownerToken,
	}
	if req.Private {
		invite, err := h.auth.IssueInvite(room.ID())
		if err != nil {
			_ = c.Error(err)
			return
		}
		resp["invite_token"] = invite
	}

	h.logger.Infow("Room created via API",
		"room_id", room.ID(),
		"type", req.Type,
		"private", req.Private,
		"client_ip", c.ClientIP(),
	)
	c.JSON(http.StatusCreated, resp)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, ok := h.viewableRoom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	stats, err := room.Stats(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	participants, err := room.Participants(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":         room.Info(),
		"stats":        stats,
		"participants": participants,
	})
}

func (h *RoomHandler) CreateInvite(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}

	invite, err := h.auth.IssueInvite(room.ID())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"room_id":      room.ID(),
		"invite_token": invite,
	})
}

func (h *RoomHandler) SetSecretWord(c *gin.Context) {
	var req struct {
		Word string `json:"word"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("invalid request body"))
		return
	}
	if err := validation.ValidateSecretWord(req.Word); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	room, ok := h.room(c)
	if !ok {
		return
	}
	if room.Info().Type != domain.RoomTypeGuessingGame {
		_ = c.Error(apperrors.NewConflictError("room is not a guessing game"))
		return
	}

	if err := room.SetSecretWord(c.Request.Context(), strings.TrimSpace(req.Word)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) ClearRoom(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	if err := room.Clear(c.Request.Context(), ""); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) ExportPNG(c *gin.Context) {
	room, ok := h.viewableRoom(c)
	if !ok {
		return
	}

	data, err := h.boards.ExportPNG(c.Request.Context(), room)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (h *RoomHandler) ExportPDF(c *gin.Context) {
	room, ok := h.viewableRoom(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.boards.ExportPDF(c.Request.Context(), room, &buf); err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+string(room.ID())+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *RoomHandler) SaveSnapshot(c *gin.Context) {
	name := c.Param("name")
	if err := validation.ValidateSnapshotName(name); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	room, ok := h.room(c)
	if !ok {
		return
	}
	if err := h.boards.SaveSnapshot(c.Request.Context(), room, name); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"name":    name,
		"room_id": room.ID(),
	})
}

func (h *RoomHandler) GetSnapshot(c *gin.Context) {
	name := c.Param("name")
	if err := validation.ValidateSnapshotName(name); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	canvas, dataURL, err := h.boards.LoadSnapshot(c.Request.Context(), name)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if c.Query("format") == "png" {
		data, err := canvas.ExportPNG()
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.Data(http.StatusOK, "image/png", data)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":     name,
		"width":    canvas.Width(),
		"height":   canvas.Height(),
		"data_url": dataURL,
	})
}

func (h *RoomHandler) room(c *gin.Context) (*services.Room, bool) {
	id := c.Param("id")
	if err := validation.ValidateRoomID(id); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return nil, false
	}
	room, err := h.rooms.Get(c.Request.Context(), domain.RoomID(id))
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	return room, true
}

// viewableRoom resolves the room and, for private rooms, checks the token
// stored by OptionalAuthMiddleware.
func (h *RoomHandler) viewableRoom(c *gin.Context) (*services.Room, bool) {
	room, ok := h.room(c)
	if !ok {
		return nil, false
	}
	if !room.Info().Settings.IsPrivate {
		return room, true
	}

	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		_ = c.Error(apperrors.NewUnauthorizedError("private room requires a token").WithContext("room_id", room.ID()))
		return nil, false
	}
	if err := h.auth.CheckRoomPermission(claims, room.ID(), domain.RoleGuest); err != nil {
		_ = c.Error(err)
		return nil, false
	}
	return room, true
}
