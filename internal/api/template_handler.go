package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"

	"github.com/AmyLu0828/the-resume-hub/internal/errcode"
	"github.com/AmyLu0828/the-resume-hub/internal/template"
)

// 上传模板的大小上限，LaTeX 模板都是小文本文件。
const maxTemplateSize = 1 << 20

// TemplateHandler 负责模板的获取、重置与上传。
type TemplateHandler struct {
	templates *template.Store
	logger    *slog.Logger
	clamdAddr string
}

// NewTemplateHandler 构造 TemplateHandler。
func NewTemplateHandler(templates *template.Store, logger *slog.Logger, clamdAddr string) *TemplateHandler {
	return &TemplateHandler{
		templates: templates,
		logger:    logger,
		clamdAddr: clamdAddr,
	}
}

// Acquire 返回当前激活模板的结构化内容，未缓存时从磁盘加载。
func (h *TemplateHandler) Acquire(c *gin.Context) {
	parts, err := h.templates.Acquire(c.Request.Context())
	if err != nil {
		if errors.Is(err, template.ErrMissingMarkers) {
			ErrorWithCode(c, http.StatusUnprocessableEntity, errcode.TemplateMissing, err.Error())
			return
		}
		ErrorWithCode(c, http.StatusInternalServerError, errcode.TemplateMissing, "failed to load template")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":     parts.Name,
		"preamble": parts.Preamble,
		"header":   parts.Header,
		"sections": parts.Sections,
	})
}

// Reset 清空模板缓存，下一次获取会重新从磁盘加载。
func (h *TemplateHandler) Reset(c *gin.Context) {
	h.templates.Reset()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Upload 接收自定义模板文件：先杀毒扫描，再做标记校验，最后激活。
// 校验失败时保留原有模板。
func (h *TemplateHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxTemplateSize {
		BadRequest(c, "template file too large")
		return
	}

	if h.clamdAddr != "" {
		fileReader, err := file.Open()
		if err != nil {
			Internal(c, "failed to open file")
			return
		}

		clamdClient := clamd.NewClamd(h.clamdAddr)
		abortChan := make(chan bool)
		scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
		fileReader.Close()
		if err != nil {
			h.logger.Error("scan template", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
		defer close(abortChan)

		for result := range scanChan {
			if result.Status != clamd.RES_OK {
				BadRequest(c, "malicious file detected")
				return
			}
		}
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer fileReader.Close()

	content, err := io.ReadAll(io.LimitReader(fileReader, maxTemplateSize))
	if err != nil {
		Internal(c, "failed to read file")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	}

	if err := h.templates.SetActive(name, string(content)); err != nil {
		ErrorWithCode(c, http.StatusUnprocessableEntity, errcode.TemplateMissing, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "name": name})
}
