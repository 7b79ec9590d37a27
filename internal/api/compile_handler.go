package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/AmyLu0828/the-resume-hub/internal/api/middleware"
	"github.com/AmyLu0828/the-resume-hub/internal/compiler"
	"github.com/AmyLu0828/the-resume-hub/internal/database"
	"github.com/AmyLu0828/the-resume-hub/internal/errcode"
	"github.com/AmyLu0828/the-resume-hub/internal/session"
	"github.com/AmyLu0828/the-resume-hub/internal/tasks"
)

// presignTTL 是最终产物下载链接的有效期。
const presignTTL = 5 * time.Minute

// ObjectStore 是编译产物存储的最小接口，生产实现为 MinIO 客户端。
type ObjectStore interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// LatexCompiler 是同步编译所需的最小接口，生产实现为 pdflatex 编译器。
type LatexCompiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// CompileHandler 负责同步编译与异步最终化。
type CompileHandler struct {
	sessions    *session.Manager
	compiler    LatexCompiler
	db          *gorm.DB
	asynqClient *asynq.Client
	storage     ObjectStore
	logger      *slog.Logger
}

// NewCompileHandler 构造 CompileHandler。
func NewCompileHandler(
	sessions *session.Manager,
	comp LatexCompiler,
	db *gorm.DB,
	asynqClient *asynq.Client,
	storage ObjectStore,
	logger *slog.Logger,
) *CompileHandler {
	return &CompileHandler{
		sessions:    sessions,
		compiler:    comp,
		db:          db,
		asynqClient: asynqClient,
		storage:     storage,
		logger:      logger,
	}
}

type compileRequest struct {
	LatexCode string `json:"latexCode"`
}

// Compile 同步编译并直接返回 PDF 字节流，适合预览。
// 请求体可携带 latexCode 编译用户手工修改过的源码，否则编译会话当前源码。
func (h *CompileHandler) Compile(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		NotFound(c, "session not found")
		return
	}

	var req compileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}

	source := req.LatexCode
	if source == "" {
		source = s.Source()
	}
	if source == "" {
		Conflict(c, "nothing generated yet")
		return
	}

	pdfBytes, err := h.compiler.Compile(c.Request.Context(), source)
	if err != nil {
		log := middleware.LoggerFromContext(c)
		log.Error("compile failed", slog.String("session_id", s.ID), slog.Any("error", err))

		var cerr *compiler.CompileError
		if errors.As(err, &cerr) {
			ErrorWithCode(c, http.StatusUnprocessableEntity, errcode.CompileFailed, cerr.Detail)
			return
		}
		ErrorWithCode(c, http.StatusInternalServerError, errcode.SystemError, "compile failed")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="resume.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// Finalize 将最终 PDF 编译任务入队并立即返回 202。
// 文档快照随任务记录保存，之后的编辑不影响本次产物。
func (h *CompileHandler) Finalize(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		NotFound(c, "session not found")
		return
	}

	doc := s.Document()
	if doc.IsEmpty() {
		Conflict(c, "document is empty")
		return
	}

	snapshot, err := json.Marshal(doc)
	if err != nil {
		Internal(c, "failed to snapshot document")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	job := database.CompileJob{
		SessionID:     s.ID,
		CorrelationID: correlationID,
		Payload:       datatypes.JSON(snapshot),
		Status:        database.JobStatusPending,
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Create(&job).Error; err != nil {
		Internal(c, "failed to create compile job")
		return
	}

	task, err := tasks.NewPDFFinalizeTask(job.ID, s.ID, correlationID)
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(5))
	if err != nil {
		Internal(c, "failed to enqueue pdf finalize")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "PDF finalize request accepted",
		"job_id":  job.ID,
		"task_id": info.ID,
	})
}

// GetJob 返回异步任务状态；完成后附带预签名下载链接。
func (h *CompileHandler) GetJob(c *gin.Context) {
	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	var job database.CompileJob
	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).First(&job, uint(jobID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		Internal(c, "failed to query job")
		return
	}

	response := gin.H{
		"job_id":     job.ID,
		"session_id": job.SessionID,
		"status":     job.Status,
	}
	switch job.Status {
	case database.JobStatusCompleted:
		url, err := h.storage.GeneratePresignedURL(ctx, job.ObjectKey, presignTTL)
		if err != nil {
			Internal(c, "failed to generate download link")
			return
		}
		response["url"] = url
	case database.JobStatusFailed:
		response["error"] = job.ErrorMessage
	}
	c.JSON(http.StatusOK, response)
}
