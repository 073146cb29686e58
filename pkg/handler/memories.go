package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/memstore"
	"github.com/voxhall/voxhall/pkg/models"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
	defaultListLimit   = 10
	maxListLimit       = 50
)

// MemoryIndex is the store surface memoryd exposes over HTTP.
type MemoryIndex interface {
	Add(ctx context.Context, username, text string, metadata map[string]any) (*memstore.Record, error)
	Search(ctx context.Context, username, query string, limit int) ([]memstore.SearchResult, error)
	GetAll(ctx context.Context, username string, limit int) ([]memstore.Record, error)
	DeleteAll(ctx context.Context, username string) (int, error)
	Healthy(ctx context.Context) bool
}

// MemoryHandler serves the memory CRUD and search API. Outside debug mode
// raw store errors never reach the response body.
type MemoryHandler struct {
	store  MemoryIndex
	debug  bool
	logger *slog.Logger
}

func NewMemoryHandler(store MemoryIndex, debug bool) *MemoryHandler {
	return &MemoryHandler{store: store, debug: debug, logger: logging.Get()}
}

func (h *MemoryHandler) RegisterRoutes(r *gin.RouterGroup) {
	memories := r.Group("/memories")
	{
		memories.POST("", h.StoreMemory)
		memories.POST("/search", h.SearchMemories)
		memories.GET("/:username", h.GetMemories)
		memories.DELETE("/:username", h.DeleteMemories)
	}
	r.GET("/health", h.Health)
}

func (h *MemoryHandler) fail(c *gin.Context, status int, message, code string, err error) {
	if h.debug && err != nil {
		c.JSON(status, models.ErrWithDetails(message, code, err.Error()))
		return
	}
	c.JSON(status, models.Err(message, code))
}

// StoreMemory stores one memory for a user.
// POST /api/v1/memories
func (h *MemoryHandler) StoreMemory(c *gin.Context) {
	var req models.MemoryStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Err("Invalid request body", CodeValidationError))
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, models.Err("username is required", CodeUsernameRequired))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, models.Err("message is required", CodeMessageRequired))
		return
	}

	rec, err := h.store.Add(c.Request.Context(), req.Username, req.Message, req.Metadata)
	if err != nil {
		h.logger.Error("Memory store failed", "user", req.Username, "error", err)
		h.fail(c, http.StatusInternalServerError, "Failed to store memory", CodeMemoryStoreFailed, err)
		return
	}

	c.JSON(http.StatusOK, models.MemoryResponse{
		Success: true,
		Message: "Memory stored successfully",
		Data:    map[string]any{"memory_id": rec.ID, "username": rec.Username},
	})
}

// SearchMemories returns up to limit memories relevant to the query.
// POST /api/v1/memories/search
func (h *MemoryHandler) SearchMemories(c *gin.Context) {
	var req models.MemorySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Err("Invalid request body", CodeValidationError))
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, models.Err("username is required", CodeUsernameRequired))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, models.Err("query is required", CodeValidationError))
		return
	}
	limit := defaultSearchLimit
	if req.Limit != nil {
		if *req.Limit < 1 || *req.Limit > maxSearchLimit {
			c.JSON(http.StatusBadRequest, models.Err("limit must be between 1 and 20", CodeValidationError))
			return
		}
		limit = *req.Limit
	}

	results, err := h.store.Search(c.Request.Context(), req.Username, req.Query, limit)
	if err != nil {
		h.logger.Error("Memory search failed", "user", req.Username, "error", err)
		h.fail(c, http.StatusInternalServerError, "Failed to search memories", CodeMemorySearchFailed, err)
		return
	}

	memories := make([]models.Memory, len(results))
	for i, r := range results {
		score := r.Score
		memories[i] = models.Memory{ID: r.ID, Text: r.Text, Score: &score, Metadata: r.Metadata}
	}
	c.JSON(http.StatusOK, models.MemorySearchResponse{
		Success:  true,
		Message:  "Memories retrieved successfully",
		Memories: memories,
		Count:    len(memories),
	})
}

// GetMemories lists a user's memories, most recent first.
// GET /api/v1/memories/:username?limit=N
func (h *MemoryHandler) GetMemories(c *gin.Context) {
	username := c.Param("username")

	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			c.JSON(http.StatusBadRequest, models.Err("limit must be between 1 and 50", CodeValidationError))
			return
		}
		limit = n
	}

	records, err := h.store.GetAll(c.Request.Context(), username, limit)
	if err != nil {
		h.logger.Error("Memory retrieval failed", "user", username, "error", err)
		h.fail(c, http.StatusInternalServerError, "Failed to retrieve memories", CodeMemoryRetrieveFailed, err)
		return
	}

	memories := make([]models.Memory, len(records))
	for i, r := range records {
		memories[i] = models.Memory{ID: r.ID, Text: r.Text, Metadata: r.Metadata}
	}
	c.JSON(http.StatusOK, models.MemorySearchResponse{
		Success:  true,
		Message:  "Memories retrieved successfully",
		Memories: memories,
		Count:    len(memories),
	})
}

// DeleteMemories removes all of a user's memories.
// DELETE /api/v1/memories/:username
func (h *MemoryHandler) DeleteMemories(c *gin.Context) {
	username := c.Param("username")

	count, err := h.store.DeleteAll(c.Request.Context(), username)
	if err != nil {
		h.logger.Error("Memory deletion failed", "user", username, "error", err)
		h.fail(c, http.StatusInternalServerError, "Failed to delete memories", CodeMemoryDeleteFailed, err)
		return
	}

	c.JSON(http.StatusOK, models.MemoryResponse{
		Success: true,
		Message: "Memories deleted successfully",
		Data:    map[string]any{"deleted_count": count, "username": username},
	})
}

// Health probes the backing store.
// GET /api/v1/health
func (h *MemoryHandler) Health(c *gin.Context) {
	status := http.StatusOK
	resp := models.HealthResponse{
		Status:    "healthy",
		Service:   "memoryd",
		Store:     "connected",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !h.store.Healthy(c.Request.Context()) {
		status = http.StatusServiceUnavailable
		resp.Status = "unhealthy"
		resp.Store = "unreachable"
	}
	c.JSON(status, resp)
}

// Root serves the memoryd service descriptor.
// GET /
func (h *MemoryHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "memoryd",
		"status":  "running",
		"endpoints": []string{
			"POST /api/v1/memories",
			"POST /api/v1/memories/search",
			"GET /api/v1/memories/:username",
			"DELETE /api/v1/memories/:username",
			"GET /api/v1/health",
		},
	})
}
