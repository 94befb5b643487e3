package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourelearner/digiboard44/internal/middleware"
	"github.com/yourelearner/digiboard44/internal/service"
)

const maxHistoryLimit = 100

// LiveHandler 暴露在线教师目录与直播历史
type LiveHandler struct {
	liveService *service.LiveService
}

func NewLiveHandler(liveService *service.LiveService) *LiveHandler {
	if liveService == nil {
		panic("LiveService cannot be nil for LiveHandler")
	}
	return &LiveHandler{liveService: liveService}
}

// ListLive GET /api/live
func (h *LiveHandler) ListLive(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"teachers": h.liveService.ListLive(c.Request.Context())})
}

// History GET /api/live/history?limit=N
func (h *LiveHandler) History(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			ErrorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	sessions, err := h.liveService.History(c.Request.Context(), middleware.CurrentUserID(c), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"sessions": sessions})
}
