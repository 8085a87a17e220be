package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subtrans/backend/internal/audit"
	"github.com/subtrans/backend/internal/auth"
	"github.com/subtrans/backend/internal/config"
	"github.com/subtrans/backend/internal/db"
	"github.com/subtrans/backend/internal/job"
)

const testSRT = "1\n00:00:01,000 --> 00:00:02,000\nHello.\n\n2\n00:00:03,000 --> 00:00:04,000\nBye.\n\n"

type testServer struct {
	t      *testing.T
	router http.Handler
	db     *db.Database
	queue  *job.JobQueue
	jwt    *auth.JWTService
	media  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	media := filepath.Join(dir, "media")
	require.NoError(t, os.MkdirAll(filepath.Join(media, "show"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(media, "show", "ep1.en.srt"), []byte(testSRT), 0644))

	database, err := db.NewSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.EnsureAdmin("admin", "secret"))

	logger := zap.NewNop().Sugar()
	queue := job.NewJobQueue(database.DB(), logger)
	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		queue.Stop()
		database.Close()
	})

	jwtService := auth.NewJWTService("test-secret")
	cfg := &config.Config{
		Engine:           "echo",
		TargetLang:       "pt-BR",
		SourceLang:       "auto",
		BatchSize:        50,
		BatchConcurrency: 1,
		MediaPath:        media,
		CORSOrigins:      []string{"*"},
	}

	return &testServer{
		t: t,
		router: NewRouter(Deps{
			DB:     database,
			JWT:    jwtService,
			Config: cfg,
			Queue:  queue,
			Logger: logger,
			Done:   done,
		}),
		db:    database,
		queue: queue,
		jwt:   jwtService,
		media: media,
	}
}

func (s *testServer) token(role string) string {
	hash, err := auth.HashPassword("pw")
	require.NoError(s.t, err)
	id, err := s.db.CreateUser(role+"-user", hash, role)
	require.NoError(s.t, err)
	tok, err := s.jwt.GenerateToken(id, role+"-user", role)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthAndAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do("GET", "/api/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	decode(t, rec, &login)
	assert.Equal(t, "admin", login.User.Role)

	rec = s.do("GET", "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"admin"`)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]string{"username": "admin", "password": "wrong"}

	for i := 0; i < 10; i++ {
		s.do("POST", "/api/auth/login", "", creds)
	}
	rec := s.do("POST", "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	admin := s.token("admin")
	rec = s.do("GET", "/api/admin/ratelimit", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "10.0.0.1")

	rec = s.do("DELETE", "/api/admin/ratelimit", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do("POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFilesAndCues(t *testing.T) {
	s := newTestServer(t)
	viewer := s.token("viewer")

	rec := s.do("GET", "/api/files/tree?depth=1", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ep1.en.srt")

	rec = s.do("GET", "/api/files/search?q=EP1", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "show/ep1.en.srt")

	rec = s.do("GET", "/api/subtitle/cues/show/ep1.en.srt", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cues struct {
		Count int `json:"count"`
		Cues  []struct {
			ID   int    `json:"id"`
			Text string `json:"text"`
		} `json:"cues"`
	}
	decode(t, rec, &cues)
	assert.Equal(t, 2, cues.Count)
	assert.Equal(t, "Bye.", cues.Cues[1].Text)

	rec = s.do("GET", "/api/subtitle/content/show/ep1.en.srt?format=vtt", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "WEBVTT")
	assert.Contains(t, rec.Body.String(), "00:00:01.000 --> 00:00:02.000")

	rec = s.do("GET", "/api/subtitle/cues/show/missing.srt", viewer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("GET", "/api/subtitle/cues/show/ep1.mkv", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranslateEnqueuesJob(t *testing.T) {
	s := newTestServer(t)
	editor := s.token("editor")

	rec := s.do("POST", "/api/subtitle/translate/show/ep1.en.srt", s.token("viewer"), map[string]interface{}{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("POST", "/api/subtitle/translate/show/ep1.en.srt", editor, map[string]interface{}{"engine": "babelfish"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/subtitle/translate/show/ep1.en.srt", editor, map[string]interface{}{"from_id": 2, "to_id": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	presetID, err := s.db.CreateTranslationPreset("Casual", "Keep it casual.")
	require.NoError(t, err)

	rec = s.do("POST", "/api/subtitle/translate/show/ep1.en.srt", editor, map[string]interface{}{
		"target_lang": "ja",
		"preset_id":   presetID,
		"from_id":     2,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created job.Job
	decode(t, rec, &created)
	assert.Equal(t, job.StatusPending, created.Status)
	assert.Equal(t, "show/ep1.en.srt", created.FilePath)

	var params job.TranslateParams
	require.NoError(t, json.Unmarshal(created.Params, &params))
	assert.Equal(t, "ja", params.TargetLang)
	assert.Equal(t, "echo", params.Engine)
	assert.Equal(t, "custom", params.Preset)
	assert.Equal(t, "Keep it casual.", params.CustomPrompt)
	assert.Equal(t, 2, params.FromID)
	assert.Equal(t, 50, params.BatchSize)

	rec = s.do("GET", "/api/jobs/"+created.ID, editor, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobBatches(t *testing.T) {
	s := newTestServer(t)
	viewer := s.token("viewer")

	created, err := s.queue.Enqueue(job.JobTranslate, "show/ep1.en.srt", job.TranslateParams{})
	require.NoError(t, err)
	require.NoError(t, s.db.Record(context.Background(), audit.Entry{
		RunID: created.ID, Batch: 1, FirstID: 1, LastID: 2, State: "success", Request: "1| Hello.", Response: "ok", At: time.Now(),
	}))

	rec := s.do("GET", "/api/jobs/"+created.ID+"/batches", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []audit.Entry
	decode(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "1| Hello.", entries[0].Request)

	rec = s.do("GET", "/api/jobs/unknown/batches", viewer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("admin")

	rec := s.do("GET", "/api/settings", s.token("editor"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("PUT", "/api/settings", admin, map[string]string{"default_engine": "babelfish"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("PUT", "/api/settings", admin, map[string]string{
		"default_engine":      "deepl",
		"default_target_lang": "de",
		"unknown_key":         "ignored",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "deepl", s.db.GetSetting("default_engine", ""))
	assert.Equal(t, "", s.db.GetSetting("unknown_key", ""))

	rec = s.do("GET", "/api/settings/gemini-models", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAdminUsers(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("admin")

	rec := s.do("POST", "/api/admin/users", admin, map[string]string{"username": "new", "password": "pw", "role": "root"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/admin/users", admin, map[string]string{"username": "new", "password": "pw", "role": "viewer"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do("GET", "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"new"`)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do("GET", "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_count")
}

func TestPresetValidation(t *testing.T) {
	s := newTestServer(t)
	editor := s.token("editor")

	rec := s.do("POST", "/api/presets", editor, map[string]string{"name": "  ", "prompt": "Be brief."})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/presets", editor, map[string]string{"name": "Broken", "prompt": "Reply inside <TRANSLATION_END>"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/presets", editor, map[string]string{"name": " Formal ", "prompt": "Use formal register."})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		SystemPrompt string `json:"system_prompt"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "Formal", created.Name)
	assert.Contains(t, created.SystemPrompt, "User instructions: Use formal register.")

	rec = s.do("PUT", "/api/presets/999", editor, map[string]string{"name": "x", "prompt": "y"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("POST", "/api/subtitle/translate/show/ep1.en.srt", editor, map[string]interface{}{
		"preset":        "custom",
		"custom_prompt": "Format:\n1| text",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
