package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/models"
	"github.com/voxhall/voxhall/pkg/rooms"
)

// RoomProvider is the slice of the room management client the HTTP layer
// uses. Tests substitute an in-memory fake.
type RoomProvider interface {
	CreateRoom(ctx context.Context, name string, maxParticipants, emptyTimeout int, metadata map[string]any) (*models.RoomInfo, error)
	ListRooms(ctx context.Context) ([]models.RoomInfo, error)
	GetRoom(ctx context.Context, name string) (*models.RoomInfo, error)
	DeleteRoom(ctx context.Context, name string) error
	MintAccessToken(room, identity string, metadata map[string]any) (string, time.Time, error)
	ValidateToken(token string) bool
}

// RoomHandler handles room lifecycle requests.
type RoomHandler struct {
	provider RoomProvider
	logger   *slog.Logger
}

func NewRoomHandler(provider RoomProvider) *RoomHandler {
	return &RoomHandler{provider: provider, logger: logging.Get()}
}

func (h *RoomHandler) RegisterRoutes(r *gin.RouterGroup) {
	roomsGroup := r.Group("/rooms")
	{
		roomsGroup.POST("/create", h.CreateRoom)
		roomsGroup.GET("/list", h.ListRooms)
		roomsGroup.GET("/:room_name", h.GetRoom)
		roomsGroup.DELETE("/:room_name", h.DeleteRoom)
	}
}

// CreateRoom creates a room on the provider.
// POST /api/v1/rooms/create
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req models.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Err("Invalid request body", CodeValidationError))
		return
	}

	if !validRoomName(req.RoomName) {
		c.JSON(http.StatusBadRequest, models.Err(
			"Room name must be 1-100 characters of letters, numbers, spaces, hyphens or underscores",
			CodeInvalidRoomName))
		return
	}
	if req.MaxParticipants == 0 {
		req.MaxParticipants = defaultParticipant
	}
	if req.MaxParticipants < minParticipants || req.MaxParticipants > maxParticipants {
		c.JSON(http.StatusBadRequest, models.Err(
			"max_participants must be between 1 and 1000", CodeInvalidMaxParticipants))
		return
	}
	if req.EmptyTimeout == 0 {
		req.EmptyTimeout = defaultTimeout
	}
	if req.EmptyTimeout < minEmptyTimeout || req.EmptyTimeout > maxEmptyTimeout {
		c.JSON(http.StatusBadRequest, models.Err(
			"empty_timeout must be between 10 and 86400 seconds", CodeInvalidEmptyTimeout))
		return
	}
	if !metadataFits(req.Metadata) {
		c.JSON(http.StatusBadRequest, models.Err(
			"metadata must serialize to at most 1024 characters", CodeInvalidMetadata))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.provider.GetRoom(ctx, req.RoomName); err == nil {
		c.JSON(http.StatusConflict, models.Err("Room already exists", CodeRoomExists))
		return
	} else if !errors.Is(err, rooms.ErrRoomNotFound) {
		h.logger.Error("Room existence check failed", "room", req.RoomName, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to create room", CodeRoomCreateFailed))
		return
	}

	info, err := h.provider.CreateRoom(ctx, req.RoomName, req.MaxParticipants, req.EmptyTimeout, req.Metadata)
	if err != nil {
		h.logger.Error("Room creation failed", "room", req.RoomName, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to create room", CodeRoomCreateFailed))
		return
	}

	c.JSON(http.StatusOK, models.RoomResponse{
		Success:           true,
		Message:           "Room created successfully",
		RoomName:          info.Name,
		RoomSID:           info.SID,
		ParticipantsCount: info.NumParticipants,
		Metadata:          info.Metadata,
	})
}

// ListRooms lists all active rooms.
// GET /api/v1/rooms/list
func (h *RoomHandler) ListRooms(c *gin.Context) {
	roomList, err := h.provider.ListRooms(c.Request.Context())
	if err != nil {
		h.logger.Error("Room listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to list rooms", CodeRoomListFailed))
		return
	}

	c.JSON(http.StatusOK, models.RoomListResponse{
		Success:    true,
		Message:    "Rooms retrieved successfully",
		Rooms:      roomList,
		TotalCount: len(roomList),
	})
}

// GetRoom returns one room by name.
// GET /api/v1/rooms/:room_name
func (h *RoomHandler) GetRoom(c *gin.Context) {
	name := c.Param("room_name")

	info, err := h.provider.GetRoom(c.Request.Context(), name)
	if errors.Is(err, rooms.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, models.Err("Room not found", CodeRoomNotFound))
		return
	}
	if err != nil {
		h.logger.Error("Room lookup failed", "room", name, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to get room", CodeRoomGetFailed))
		return
	}

	c.JSON(http.StatusOK, models.RoomResponse{
		Success:           true,
		Message:           "Room retrieved successfully",
		RoomName:          info.Name,
		RoomSID:           info.SID,
		ParticipantsCount: info.NumParticipants,
		Metadata:          info.Metadata,
	})
}

// DeleteRoom removes a room from the provider.
// DELETE /api/v1/rooms/:room_name
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	name := c.Param("room_name")

	ctx := c.Request.Context()
	if _, err := h.provider.GetRoom(ctx, name); errors.Is(err, rooms.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, models.Err("Room not found", CodeRoomNotFound))
		return
	}

	if err := h.provider.DeleteRoom(ctx, name); err != nil {
		h.logger.Error("Room deletion failed", "room", name, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to delete room", CodeRoomDeleteFailed))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Room deleted successfully",
		"room_name": name,
	})
}
