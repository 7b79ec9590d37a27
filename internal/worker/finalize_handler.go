package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/AmyLu0828/the-resume-hub/internal/compiler"
	"github.com/AmyLu0828/the-resume-hub/internal/database"
	"github.com/AmyLu0828/the-resume-hub/internal/errcode"
	"github.com/AmyLu0828/the-resume-hub/internal/generator"
	"github.com/AmyLu0828/the-resume-hub/internal/resume"
	"github.com/AmyLu0828/the-resume-hub/internal/storage"
	"github.com/AmyLu0828/the-resume-hub/internal/tasks"
)

// objectStore 是任务处理器需要的产物存储操作，生产实现为 MinIO 客户端。
type objectStore interface {
	UploadPDF(ctx context.Context, objectKey string, data []byte) error
	DeleteObject(ctx context.Context, objectKey string) error
}

// FinalizeTaskHandler 负责消费最终 PDF 编译任务：渲染入队时的文档快照、
// 调用 pdflatex 编译、上传产物并通知前端。
type FinalizeTaskHandler struct {
	db          *gorm.DB
	storage     objectStore
	redisClient *redis.Client
	compiler    *compiler.Compiler
	logger      *slog.Logger
}

// NewFinalizeTaskHandler 创建任务处理器。
func NewFinalizeTaskHandler(
	db *gorm.DB,
	storage *storage.Client,
	redisClient *redis.Client,
	comp *compiler.Compiler,
	logger *slog.Logger,
) *FinalizeTaskHandler {
	return &FinalizeTaskHandler{
		db:          db,
		storage:     storage,
		redisClient: redisClient,
		compiler:    comp,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *FinalizeTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.PDFFinalizePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("session_id", payload.SessionID),
		slog.Uint64("job_id", uint64(payload.JobID)),
	)
	log.Info("Starting final PDF compile task...")

	var job database.CompileJob
	if err := h.db.WithContext(ctx).First(&job, payload.JobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("compile job not found, skipping task")
			return nil
		}
		log.Error("query compile job failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		message := strings.TrimSpace(retErr.Error())
		if err := h.db.WithContext(ctx).Model(&job).Updates(map[string]any{
			"status":        database.JobStatusFailed,
			"error_message": message,
		}).Error; err != nil {
			log.Error("mark compile job failed", slog.Any("error", err))
		}

		code := errcode.SystemError
		var cerr *compiler.CompileError
		if errors.As(retErr, &cerr) {
			code = errcode.CompileFailed
		}
		notify := PDFFinalizeNotifyMessage{
			Status:        "error",
			JobID:         job.ID,
			SessionID:     job.SessionID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     code,
			ErrorMessage:  message,
		}
		if err := h.publishFinalizeNotify(ctx, job.SessionID, notify); err != nil {
			log.Error("publish compile error notification failed", slog.Any("error", err))
		}
	}()

	if err := h.db.WithContext(ctx).Model(&job).Update("status", database.JobStatusProcessing).Error; err != nil {
		log.Error("mark compile job processing", slog.Any("error", err))
		return err
	}

	var doc resume.ResumeData
	if err := json.Unmarshal(job.Payload, &doc); err != nil {
		log.Error("decode document snapshot failed", slog.Any("error", err))
		return fmt.Errorf("decode document snapshot: %w", err)
	}

	source, err := generator.RenderDocument(doc)
	if err != nil {
		log.Error("render document failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := h.compiler.Compile(ctx, source)
	if err != nil {
		log.Error("compile document failed", slog.Any("error", err))
		return err
	}

	objectKey := fmt.Sprintf("generated-resumes/%s/%s.pdf", job.SessionID, uuid.NewString())
	if err := h.storage.UploadPDF(ctx, objectKey, pdfBytes); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	// 新产物上传成功后释放同一会话上一份产物。
	h.releasePreviousArtifact(ctx, log, job.SessionID, job.ID)

	if err := h.db.WithContext(ctx).Model(&job).Updates(map[string]any{
		"status":     database.JobStatusCompleted,
		"object_key": objectKey,
	}).Error; err != nil {
		log.Error("update compile job failed", slog.Any("error", err))
		return err
	}

	notify := PDFFinalizeNotifyMessage{
		Status:        "completed",
		JobID:         job.ID,
		SessionID:     job.SessionID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
		ObjectKey:     objectKey,
	}
	if err := h.publishFinalizeNotify(ctx, job.SessionID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("Final PDF compile task completed successfully.")
	return nil
}

// releasePreviousArtifact 删除同一会话上一个已完成任务的对象。
// 删除失败只记日志，不影响本次任务结果。
func (h *FinalizeTaskHandler) releasePreviousArtifact(ctx context.Context, log *slog.Logger, sessionID string, currentJobID uint) {
	var previous database.CompileJob
	err := h.db.WithContext(ctx).
		Where("session_id = ? AND status = ? AND id <> ?", sessionID, database.JobStatusCompleted, currentJobID).
		Order("id DESC").
		First(&previous).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("query previous artifact failed", slog.Any("error", err))
		}
		return
	}
	if previous.ObjectKey == "" {
		return
	}
	if err := h.storage.DeleteObject(ctx, previous.ObjectKey); err != nil {
		log.Warn("delete previous artifact failed",
			slog.String("object_key", previous.ObjectKey),
			slog.Any("error", err),
		)
	}
}

func (h *FinalizeTaskHandler) publishFinalizeNotify(ctx context.Context, sessionID string, notify PDFFinalizeNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("session_notify:%s", sessionID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
