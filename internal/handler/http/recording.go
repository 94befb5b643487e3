package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/middleware"
	"github.com/yourelearner/digiboard44/internal/service"
)

// RecordingHandler 处理学生保存的课程记录
type RecordingHandler struct {
	recordingService *service.RecordingService
}

func NewRecordingHandler(recordingService *service.RecordingService) *RecordingHandler {
	if recordingService == nil {
		panic("RecordingService cannot be nil for RecordingHandler")
	}
	return &RecordingHandler{recordingService: recordingService}
}

// CreateRecordingRequest 白板历史由客户端决定格式，原样保存
type CreateRecordingRequest struct {
	TeacherID      string          `json:"teacherId" binding:"required"`
	VideoURL       string          `json:"videoUrl" binding:"required"`
	WhiteboardData json.RawMessage `json:"whiteboardData"`
}

// Create 保存一节课
func (h *RecordingHandler) Create(c *gin.Context) {
	var req CreateRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRecording: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	rec, err := h.recordingService.Create(c.Request.Context(), middleware.CurrentUserID(c), req.TeacherID, req.VideoURL, whiteboardText(req.WhiteboardData))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, rec)
}

// ListForStudent 返回当前学生的全部记录
func (h *RecordingHandler) ListForStudent(c *gin.Context) {
	recs, err := h.recordingService.ListForStudent(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, recs)
}

// Delete 删除当前学生的一条记录
func (h *RecordingHandler) Delete(c *gin.Context) {
	if err := h.recordingService.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Session deleted"})
}

// whiteboardText 字符串形式的数据去掉引号保存，其他 JSON 按原文保存
func whiteboardText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
