package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/AmyLu0828/the-resume-hub/internal/database"
)

type fakeObjectStore struct {
	deleted []string
}

func (s *fakeObjectStore) UploadPDF(_ context.Context, _ string, _ []byte) error {
	return nil
}

func (s *fakeObjectStore) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	return nil
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

func seedJob(t *testing.T, db *gorm.DB, sessionID, status, objectKey string) database.CompileJob {
	t.Helper()
	job := database.CompileJob{
		SessionID: sessionID,
		Status:    status,
		ObjectKey: objectKey,
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func TestReleasePreviousArtifact_DeletesPriorCompletedObject(t *testing.T) {
	db := newTestDB(t)
	store := &fakeObjectStore{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &FinalizeTaskHandler{db: db, storage: store, logger: log}

	seedJob(t, db, "sess-1", database.JobStatusCompleted, "generated-resumes/sess-1/old.pdf")
	seedJob(t, db, "sess-2", database.JobStatusCompleted, "generated-resumes/sess-2/other.pdf")
	seedJob(t, db, "sess-1", database.JobStatusFailed, "")
	current := seedJob(t, db, "sess-1", database.JobStatusProcessing, "")

	h.releasePreviousArtifact(context.Background(), log, "sess-1", current.ID)

	if len(store.deleted) != 1 {
		t.Fatalf("expected exactly one deletion, got %v", store.deleted)
	}
	if store.deleted[0] != "generated-resumes/sess-1/old.pdf" {
		t.Errorf("deleted wrong object: %s", store.deleted[0])
	}
}

func TestReleasePreviousArtifact_FirstFinalizeDeletesNothing(t *testing.T) {
	db := newTestDB(t)
	store := &fakeObjectStore{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &FinalizeTaskHandler{db: db, storage: store, logger: log}

	current := seedJob(t, db, "sess-1", database.JobStatusProcessing, "")

	h.releasePreviousArtifact(context.Background(), log, "sess-1", current.ID)

	if len(store.deleted) != 0 {
		t.Fatalf("expected no deletions, got %v", store.deleted)
	}
}
