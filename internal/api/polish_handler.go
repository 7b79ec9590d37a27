package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmyLu0828/the-resume-hub/internal/api/middleware"
	"github.com/AmyLu0828/the-resume-hub/internal/errcode"
	"github.com/AmyLu0828/the-resume-hub/internal/polish"
	"github.com/AmyLu0828/the-resume-hub/internal/session"
)

// 会话级润色限流：LLM 调用昂贵，限制每分钟次数。
const (
	polishRateLimit  = 10
	polishRateWindow = time.Minute
)

// PolishHandler 负责润色请求：限流、调用润色客户端、合并结果。
type PolishHandler struct {
	sessions    *session.Manager
	polisher    *polish.Polisher
	rateCounter redisRateCounter
	logger      *slog.Logger
}

// NewPolishHandler 构造 PolishHandler。
func NewPolishHandler(sessions *session.Manager, polisher *polish.Polisher, rateCounter redisRateCounter, logger *slog.Logger) *PolishHandler {
	return &PolishHandler{
		sessions:    sessions,
		polisher:    polisher,
		rateCounter: rateCounter,
		logger:      logger,
	}
}

type polishRequest struct {
	Section string          `json:"section" binding:"required"`
	EntryID string          `json:"entryId"`
	Content json.RawMessage `json:"content" binding:"required"`
}

// Polish 润色指定条目的文本，合并进文档后自动触发该区块的生成。
func (h *PolishHandler) Polish(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		NotFound(c, "session not found")
		return
	}

	var req polishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	if h.rateCounter != nil {
		key := fmt.Sprintf("polish_rate:%s", s.ID)
		count, err := incrWithTTL(ctx, h.rateCounter, key, polishRateWindow)
		if err != nil {
			// Redis 不可用时放行，润色不是关键路径。
			log.Warn("polish rate counter unavailable", slog.Any("error", err))
		} else if count > polishRateLimit {
			TooManyRequests(c, "polish rate limit exceeded, try again later")
			return
		}
	}

	result, err := s.Polish(ctx, h.polisher, req.Section, req.EntryID, req.Content)
	if err != nil {
		if errors.Is(err, session.ErrUnsupportedPolishSection) {
			BadRequest(c, err.Error())
			return
		}
		log.Error("polish failed",
			slog.String("session_id", s.ID),
			slog.String("section", req.Section),
			slog.Any("error", err),
		)
		ErrorWithCode(c, http.StatusBadGateway, errcode.SystemError, "polish failed, original text kept")
		return
	}

	response := gin.H{
		"success": true,
		"content": gin.H{"polishedDescription": result.Improved},
		"code":    errcode.OK,
	}
	if result.SubmitErr != nil {
		// 合并已生效，但自动提交失败；前端可手动重新提交。
		log.Warn("auto submit after polish failed",
			slog.String("session_id", s.ID),
			slog.String("section", req.Section),
			slog.Any("error", result.SubmitErr),
		)
		response["code"] = errcode.SystemError
		response["warning"] = "polished text saved, regeneration failed"
	} else {
		response["source"] = result.SourceText
	}
	c.JSON(http.StatusOK, response)
}
