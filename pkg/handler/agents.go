package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voxhall/voxhall/pkg/agent"
	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/models"
	"github.com/voxhall/voxhall/pkg/rooms"
)

// AgentRunner is the registry surface the HTTP layer drives.
type AgentRunner interface {
	Start(ctx context.Context, roomName string) (participantID, status string, err error)
	Stop(roomName string)
	Status(roomName string) agent.Status
}

// AgentHandler starts, stops, and inspects room agents.
type AgentHandler struct {
	agents   AgentRunner
	provider RoomProvider
	logger   *slog.Logger
}

func NewAgentHandler(agents AgentRunner, provider RoomProvider) *AgentHandler {
	return &AgentHandler{agents: agents, provider: provider, logger: logging.Get()}
}

func (h *AgentHandler) RegisterRoutes(r *gin.RouterGroup) {
	agents := r.Group("/agents")
	{
		agents.POST("/start", h.StartAgent)
		agents.POST("/stop", h.StopAgent)
		agents.GET("/status/:room_name", h.AgentStatus)
	}
}

// StartAgent launches the agent in an existing room. Starting a room that
// already has an agent reports already_active, not an error.
// POST /api/v1/agents/start
func (h *AgentHandler) StartAgent(c *gin.Context) {
	var req models.StartAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Err("Invalid request body", CodeValidationError))
		return
	}
	if strings.TrimSpace(req.RoomName) == "" {
		c.JSON(http.StatusBadRequest, models.Err("room_name is required", CodeRoomNameRequired))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.provider.GetRoom(ctx, req.RoomName); err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, models.Err("Room not found", CodeRoomNotFound))
			return
		}
		h.logger.Error("Room lookup failed before agent start", "room", req.RoomName, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to start agent", CodeAgentStartFailed))
		return
	}

	participantID, status, err := h.agents.Start(ctx, req.RoomName)
	if err != nil {
		h.logger.Error("Agent start failed", "room", req.RoomName, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err("Failed to start agent", CodeAgentStartFailed))
		return
	}

	message := "Agent started successfully"
	if status == agent.StatusAlreadyActive {
		message = "Agent is already active in this room"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              message,
		"room_name":            req.RoomName,
		"status":               status,
		"agent_participant_id": participantID,
	})
}

// StopAgent disconnects the room's agent; stopping a room without one is
// a successful no-op.
// POST /api/v1/agents/stop
func (h *AgentHandler) StopAgent(c *gin.Context) {
	var req models.StopAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Err("Invalid request body", CodeValidationError))
		return
	}
	if strings.TrimSpace(req.RoomName) == "" {
		c.JSON(http.StatusBadRequest, models.Err("room_name is required", CodeRoomNameRequired))
		return
	}

	h.agents.Stop(req.RoomName)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Agent stopped successfully",
		"room_name": req.RoomName,
	})
}

// AgentStatus reports whether a room has an active, connected agent.
// GET /api/v1/agents/status/:room_name
func (h *AgentHandler) AgentStatus(c *gin.Context) {
	name := c.Param("room_name")
	status := h.agents.Status(name)

	c.JSON(http.StatusOK, models.AgentStatusResponse{
		Success:            true,
		Message:            "Agent status retrieved",
		RoomName:           name,
		AgentActive:        status.Active,
		AgentParticipantID: status.ParticipantID,
		AgentConnected:     status.Connected,
	})
}
