package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/models"
	"github.com/voxhall/voxhall/pkg/rooms"
)

// TokenHandler issues and validates room access tokens.
type TokenHandler struct {
	provider RoomProvider
	logger   *slog.Logger
}

func NewTokenHandler(provider RoomProvider) *TokenHandler {
	return &TokenHandler{provider: provider, logger: logging.Get()}
}

func (h *TokenHandler) RegisterRoutes(r *gin.RouterGroup) {
	tokens := r.Group("/tokens")
	{
		tokens.POST("/generate", h.GenerateToken)
		tokens.POST("/validate", h.ValidateToken)
	}
}

// GenerateToken mints a join token for (room, username). The room must
// already exist.
// POST /api/v1/tokens/generate
func (h *TokenHandler) GenerateToken(c *gin.Context) {
	var req models.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Err("Invalid request body", CodeValidationError))
		return
	}
	if strings.TrimSpace(req.RoomName) == "" {
		c.JSON(http.StatusBadRequest, models.Err("room_name is required", CodeRoomNameRequired))
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, models.Err("username is required", CodeUsernameRequired))
		return
	}

	if _, err := h.provider.GetRoom(c.Request.Context(), req.RoomName); err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, models.Err("Room not found", CodeRoomNotFound))
			return
		}
		h.logger.Error("Room lookup failed before token mint", "room", req.RoomName, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to generate token", CodeTokenGenerationFailed))
		return
	}

	token, expiresAt, err := h.provider.MintAccessToken(req.RoomName, req.Username, req.Metadata)
	if err != nil {
		h.logger.Error("Token mint failed", "room", req.RoomName, "user", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to generate token", CodeTokenGenerationFailed))
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		Success:   true,
		Message:   "Token generated successfully",
		Token:     token,
		RoomName:  req.RoomName,
		Username:  req.Username,
		ExpiresAt: expiresAt,
	})
}

// ValidateToken checks a token's signature and expiry.
// POST /api/v1/tokens/validate
func (h *TokenHandler) ValidateToken(c *gin.Context) {
	var req models.ValidateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, models.Err("token is required", CodeValidationError))
		return
	}

	valid := h.provider.ValidateToken(req.Token)
	message := "Token is valid"
	if !valid {
		message = "Token is invalid or expired"
	}
	c.JSON(http.StatusOK, models.TokenValidationResponse{
		Success:   true,
		Message:   message,
		Valid:     valid,
		Timestamp: time.Now().UTC(),
	})
}
