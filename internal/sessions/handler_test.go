package sessions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aura-live/backend/internal/auth"
	"github.com/aura-live/backend/internal/middleware"
	"github.com/aura-live/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	jwt      *auth.JWTService
	registry *Registry
}

func newTestServer(t *testing.T, webhookSecret string) *testServer {
	t.Helper()
	jwtService := auth.NewJWTService("test-secret", 1)
	registry := NewRegistry(NewMemoryStore(nil), nil)
	h := NewHandler(registry, nil)
	wh := NewWebhookHandler(registry, webhookSecret, nil)

	r := gin.New()
	r.GET("/sessions/:id", h.Get)
	r.GET("/creators/:id/sessions", h.History)
	r.POST("/webhooks/room-ended", wh.RoomEnded)
	api := r.Group("")
	api.Use(middleware.JWT(jwtService))
	api.POST("/sessions/start", middleware.RequireRole(models.RoleCreator, models.RoleAdmin), h.Start)
	api.POST("/sessions/stop", h.Stop)
	api.POST("/sessions/stop-all", middleware.RequireRole(models.RoleAdmin), h.StopAll)
	api.POST("/sessions/:id/end", h.End)
	return &testServer{router: r, jwt: jwtService, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path, userID string, role models.Role, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := s.jwt.Generate(userID, role)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) models.LiveSession {
	t.Helper()
	var body struct {
		Data models.LiveSession `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return body.Data
}

func TestHandlerStartAndEndFlow(t *testing.T) {
	srv := newTestServer(t, "")

	rec := srv.do(t, http.MethodPost, "/sessions/start", "creator-a", models.RoleCreator, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	s := decodeSession(t, rec)
	if s.CreatorID != "creator-a" || !s.IsActive {
		t.Fatalf("started session = %+v", s)
	}

	rec = srv.do(t, http.MethodPost, "/sessions/"+s.ID.String()+"/end", "creator-b", models.RoleCreator, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("end by other creator status = %d, want 403", rec.Code)
	}
	rec = srv.do(t, http.MethodPost, "/sessions/"+s.ID.String()+"/end", "creator-a", models.RoleCreator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("end by owner status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ended := decodeSession(t, rec); ended.IsActive {
		t.Fatalf("ended session still active")
	}
}

func TestHandlerStartRoleAndDelegation(t *testing.T) {
	srv := newTestServer(t, "")

	if rec := srv.do(t, http.MethodPost, "/sessions/start", "v1", models.RoleViewer, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("viewer start status = %d, want 403", rec.Code)
	}
	body := []byte(`{"creator_id":"creator-z"}`)
	if rec := srv.do(t, http.MethodPost, "/sessions/start", "creator-a", models.RoleCreator, body); rec.Code != http.StatusForbidden {
		t.Fatalf("creator starting for another status = %d, want 403", rec.Code)
	}
	rec := srv.do(t, http.MethodPost, "/sessions/start", "root", models.RoleAdmin, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin delegated start status = %d", rec.Code)
	}
	if s := decodeSession(t, rec); s.CreatorID != "creator-z" {
		t.Fatalf("CreatorID = %q, want creator-z", s.CreatorID)
	}
}

func TestHandlerStopAllAdminOnly(t *testing.T) {
	srv := newTestServer(t, "")
	srv.do(t, http.MethodPost, "/sessions/start", "creator-a", models.RoleCreator, nil)

	if rec := srv.do(t, http.MethodPost, "/sessions/stop-all", "creator-a", models.RoleCreator, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("creator stop-all status = %d, want 403", rec.Code)
	}
	rec := srv.do(t, http.MethodPost, "/sessions/stop-all", "root", models.RoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin stop-all status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"stopped":1`)) {
		t.Fatalf("stop-all body = %s", rec.Body.String())
	}
}

func TestHandlerGetUnknownAndMalformed(t *testing.T) {
	srv := newTestServer(t, "")
	if rec := srv.do(t, http.MethodGet, "/sessions/nope", "", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d, want 400", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/sessions/6f1c1f3e-8a0e-4c39-9a57-1f9d1b0e2a11", "", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestWebhookRoomEnded(t *testing.T) {
	const secret = "hook-secret"
	srv := newTestServer(t, secret)
	rec := srv.do(t, http.MethodPost, "/sessions/start", "creator-a", models.RoleCreator, nil)
	s := decodeSession(t, rec)

	payload := []byte(`{"room_name":"` + s.ID.String() + `"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/room-ended", bytes.NewReader(payload))
	req.Header.Set(SignatureHeader, Sign([]byte("wrong"), payload))
	bad := httptest.NewRecorder()
	srv.router.ServeHTTP(bad, req)
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature status = %d, want 401", bad.Code)
	}

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/webhooks/room-ended", bytes.NewReader(payload))
		req.Header.Set(SignatureHeader, Sign([]byte(secret), payload))
		ok := httptest.NewRecorder()
		srv.router.ServeHTTP(ok, req)
		if ok.Code != http.StatusOK {
			t.Fatalf("webhook attempt %d status = %d, body %s", i, ok.Code, ok.Body.String())
		}
	}
	active, _ := srv.registry.IsActive(req.Context(), s.ID.String())
	if active {
		t.Fatalf("session still active after webhook")
	}
}

func TestWebhookWithoutSecretIsUnavailable(t *testing.T) {
	srv := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/room-ended", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
