package handler

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"replay-service/dto"
	"replay-service/service"
)

// ReplayHandler exposes the user-facing replay operations over HTTP.
// Authentication happened upstream; the user id arrives resolved.
type ReplayHandler struct {
	replay *service.ReplayService
}

func NewReplayHandler(replay *service.ReplayService) *ReplayHandler {
	return &ReplayHandler{replay: replay}
}

func (h *ReplayHandler) Register(r *gin.Engine) {
	api := r.Group("/api/replay")
	api.POST("/start", h.start)
	api.POST("/stop", h.stop)
	api.POST("/capture", h.capture)
	api.GET("/stream", h.stream)
	api.GET("/session", h.sessionInfo)
	api.GET("/playlist", h.playlist)
	api.GET("/segments/:filename", h.segment)
}

func (h *ReplayHandler) start(c *gin.Context) {
	var req dto.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.replay.Start(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReplayHandler) stop(c *gin.Context) {
	var req struct {
		UserId uuid.UUID `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.replay.Stop(c.Request.Context(), req.UserId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReplayHandler) capture(c *gin.Context) {
	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.replay.CaptureClip(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReplayHandler) stream(c *gin.Context) {
	userId, ok := queryUserId(c)
	if !ok {
		return
	}
	durationMinutes, err := strconv.Atoi(c.DefaultQuery("durationMinutes", "5"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid durationMinutes"})
		return
	}

	path, err := h.replay.StreamClip(c.Request.Context(), userId, durationMinutes)
	if err != nil {
		respondError(c, err)
		return
	}
	defer os.Remove(path)

	c.FileAttachment(path, "replay.mp4")
}

func (h *ReplayHandler) sessionInfo(c *gin.Context) {
	userId, ok := queryUserId(c)
	if !ok {
		return
	}

	info, err := h.replay.SessionInfo(c.Request.Context(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *ReplayHandler) playlist(c *gin.Context) {
	userId, ok := queryUserId(c)
	if !ok {
		return
	}

	manifest, err := h.replay.Playlist(c.Request.Context(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", []byte(manifest))
}

func (h *ReplayHandler) segment(c *gin.Context) {
	userId, ok := queryUserId(c)
	if !ok {
		return
	}

	path, err := h.replay.SegmentFile(c.Request.Context(), userId, c.Param("filename"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "video/mp4")
	c.File(path)
}

func queryUserId(c *gin.Context) (uuid.UUID, bool) {
	userId, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
		return uuid.Nil, false
	}
	return userId, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
