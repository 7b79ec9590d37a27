package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/AmyLu0828/the-resume-hub/internal/config"
	"github.com/AmyLu0828/the-resume-hub/internal/llm"
	"github.com/AmyLu0828/the-resume-hub/internal/polish"
	"github.com/AmyLu0828/the-resume-hub/internal/resume"
	"github.com/AmyLu0828/the-resume-hub/internal/session"
)

type fakeRateCounter struct {
	count   int64
	incrErr error
	expires []time.Duration
}

func (f *fakeRateCounter) Incr(_ context.Context, _ string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.count++
	return redis.NewIntResult(f.count, nil)
}

func (f *fakeRateCounter) Expire(_ context.Context, _ string, ttl time.Duration) *redis.BoolCmd {
	f.expires = append(f.expires, ttl)
	return redis.NewBoolResult(true, nil)
}

// chatServer mimics a /chat/completions endpoint that always returns reply
// as the assistant message content.
func chatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		}
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPolishRouter(t *testing.T, counter redisRateCounter) (*gin.Engine, *session.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := chatServer(t, `{"content":{"polishedDescription":"I am a passionate software engineer."}}`)
	polisher := polish.NewPolisher(llm.NewClient(config.LLMConfig{
		BaseURL: srv.URL,
		Model:   "test-model",
	}))

	sessions := newTestSessions(t)
	s := sessions.Create()
	about, _ := json.Marshal(resume.AboutMe{Description: "i am engineer"})
	if err := s.ApplyUpdate(resume.UpdateMessage{
		Section:    resume.SectionAboutMe,
		ChangeType: resume.ChangeUpdate,
		Content:    about,
	}); err != nil {
		t.Fatalf("apply update: %v", err)
	}

	handler := NewPolishHandler(sessions, polisher, counter, nil)
	router := gin.New()
	router.POST("/v1/sessions/:id/polish", handler.Polish)
	return router, s
}

func polishBody() map[string]any {
	return map[string]any{
		"section": resume.SectionAboutMe,
		"content": map[string]string{"description": "i am engineer"},
	}
}

func TestPolishHandler_RateLimitPerSession(t *testing.T) {
	counter := &fakeRateCounter{}
	router, s := newPolishRouter(t, counter)
	path := "/v1/sessions/" + s.ID + "/polish"

	for i := 0; i < polishRateLimit; i++ {
		w := doJSON(t, router, http.MethodPost, path, polishBody())
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d: %s", i+1, w.Code, w.Body.String())
		}
	}

	w := doJSON(t, router, http.MethodPost, path, polishBody())
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d: %s", w.Code, w.Body.String())
	}

	// 计数键只在首次创建时设置过期时间
	if len(counter.expires) != 1 || counter.expires[0] != polishRateWindow {
		t.Errorf("expected one expire call with the rate window, got %v", counter.expires)
	}
}

func TestPolishHandler_CounterUnavailableAllowsRequest(t *testing.T) {
	counter := &fakeRateCounter{incrErr: errors.New("connection refused")}
	router, s := newPolishRouter(t, counter)

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+s.ID+"/polish", polishBody())
	if w.Code != http.StatusOK {
		t.Fatalf("polish must proceed without the counter, got %d: %s", w.Code, w.Body.String())
	}
}
