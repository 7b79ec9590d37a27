package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/AmyLu0828/the-resume-hub/internal/database"
	"github.com/AmyLu0828/the-resume-hub/internal/resume"
	"github.com/AmyLu0828/the-resume-hub/internal/session"
)

type fakeObjectStore struct {
	presign map[string]string
}

func (s *fakeObjectStore) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	if v, ok := s.presign[objectKey]; ok {
		return v, nil
	}
	return "https://example.invalid/" + objectKey, nil
}

type fakeCompiler struct {
	sources []string
}

func (f *fakeCompiler) Compile(_ context.Context, source string) ([]byte, error) {
	f.sources = append(f.sources, source)
	return []byte("%PDF-1.5 fake"), nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// 内存库绑定单个连接，连接池扩容会拿到空库
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&database.CompileJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newJobRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewCompileHandler(newTestSessions(t), nil, db, nil, &fakeObjectStore{}, nil)

	router := gin.New()
	router.GET("/v1/jobs/:id", handler.GetJob)
	return router
}

func TestGetJob_CompletedIncludesDownloadLink(t *testing.T) {
	db := newTestDB(t)
	job := database.CompileJob{
		SessionID: "sess-1",
		Status:    database.JobStatusCompleted,
		ObjectKey: "generated-resumes/sess-1/final.pdf",
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	router := newJobRouter(t, db)
	w := doJSON(t, router, http.MethodGet, fmt.Sprintf("/v1/jobs/%d", job.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get job: status %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		URL    string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != database.JobStatusCompleted {
		t.Fatalf("unexpected status %q", resp.Status)
	}
	if resp.URL != "https://example.invalid/generated-resumes/sess-1/final.pdf" {
		t.Fatalf("unexpected url %q", resp.URL)
	}
}

func TestGetJob_FailedIncludesError(t *testing.T) {
	db := newTestDB(t)
	job := database.CompileJob{
		SessionID:    "sess-1",
		Status:       database.JobStatusFailed,
		ErrorMessage: "pdflatex exited with errors",
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	router := newJobRouter(t, db)
	w := doJSON(t, router, http.MethodGet, fmt.Sprintf("/v1/jobs/%d", job.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get job: status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != database.JobStatusFailed || resp.Error == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func newCompileRouter(t *testing.T, comp LatexCompiler) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessions := newTestSessions(t)
	handler := NewCompileHandler(sessions, comp, newTestDB(t), nil, &fakeObjectStore{}, nil)

	router := gin.New()
	router.POST("/v1/sessions/:id/compile", handler.Compile)
	return router, sessions
}

func TestCompile_ClientSuppliedSource(t *testing.T) {
	comp := &fakeCompiler{}
	router, sessions := newCompileRouter(t, comp)
	s := sessions.Create()

	// 未生成过源码的新会话也能编译用户自带的 LaTeX
	const latexCode = `\documentclass{article}\begin{document}edited by hand\end{document}`
	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+s.ID+"/compile", map[string]string{
		"latexCode": latexCode,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("compile: status %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("unexpected content type %q", got)
	}
	if len(comp.sources) != 1 || comp.sources[0] != latexCode {
		t.Fatalf("compiler must receive the client source, got %v", comp.sources)
	}
}

func TestCompile_FallsBackToSessionSource(t *testing.T) {
	comp := &fakeCompiler{}
	router, sessions := newCompileRouter(t, comp)
	s := sessions.Create()

	name, _ := json.Marshal(resume.Name{FirstName: "Amy", LastName: "Lu"})
	if err := s.ApplyUpdate(resume.UpdateMessage{
		Section:    resume.SectionName,
		ChangeType: resume.ChangeUpdate,
		Content:    name,
	}); err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if _, _, err := s.Submit(context.Background(), resume.SubmitTrigger{Section: resume.SectionName}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+s.ID+"/compile", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("compile: status %d: %s", w.Code, w.Body.String())
	}
	if len(comp.sources) != 1 || comp.sources[0] != s.Source() {
		t.Fatal("compiler must receive the session source when no body is sent")
	}
}

func TestCompile_NothingToCompile(t *testing.T) {
	router, sessions := newCompileRouter(t, &fakeCompiler{})
	s := sessions.Create()

	if w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+s.ID+"/compile", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a fresh session without a body, got %d", w.Code)
	}
}

func TestGetJob_BadAndMissingIDs(t *testing.T) {
	router := newJobRouter(t, newTestDB(t))

	if w := doJSON(t, router, http.MethodGet, "/v1/jobs/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/v1/jobs/42", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing job, got %d", w.Code)
	}
}
