package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AmyLu0828/the-resume-hub/internal/api/middleware"
	"github.com/AmyLu0828/the-resume-hub/internal/errcode"
	"github.com/AmyLu0828/the-resume-hub/internal/generator"
	"github.com/AmyLu0828/the-resume-hub/internal/resume"
	"github.com/AmyLu0828/the-resume-hub/internal/session"
)

// SessionHandler 负责会话生命周期与文档编辑 API。
type SessionHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewSessionHandler 构造 SessionHandler。
func NewSessionHandler(sessions *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// CreateSession 创建一个新的空白会话。
func (h *SessionHandler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"session_id": s.ID,
		"created_at": s.CreatedAt,
	})
}

// GetDocument 返回会话当前的文档与源码快照。
func (h *SessionHandler) GetDocument(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		NotFound(c, "session not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document": s.Document(),
		"source":   s.Source(),
	})
}

// ApplyUpdate 应用一条编辑消息，只改内存文档，不触发生成。
func (h *SessionHandler) ApplyUpdate(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		NotFound(c, "session not found")
		return
	}

	var update resume.UpdateMessage
	if err := c.ShouldBindJSON(&update); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := s.ApplyUpdate(update); err != nil {
		BadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Submit 对指定区块触发一次生成，并返回最新源码。
func (h *SessionHandler) Submit(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		NotFound(c, "session not found")
		return
	}

	var trigger resume.SubmitTrigger
	if err := c.ShouldBindJSON(&trigger); err != nil {
		BadRequest(c, err.Error())
		return
	}

	source, fellBack, err := s.Submit(c.Request.Context(), trigger)
	if err != nil {
		log := middleware.LoggerFromContext(c)
		log.Error("generation failed",
			slog.String("session_id", s.ID),
			slog.String("section", trigger.Section),
			slog.Any("error", err),
		)
		var genErr *generator.GenerationError
		if errors.As(err, &genErr) {
			ErrorWithCode(c, http.StatusBadGateway, errcode.SystemError, genErr.Error())
			return
		}
		Internal(c, "generation failed")
		return
	}

	response := gin.H{
		"success": true,
		"source":  source,
		"code":    errcode.OK,
	}
	if fellBack {
		response["code"] = errcode.IncrementalFellBack
		response["warning"] = "incremental generation fell back to full"
	}
	c.JSON(http.StatusOK, response)
}
