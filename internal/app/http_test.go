package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authorsite/api/internal/auth"
	"authorsite/api/internal/broadcast"
	"authorsite/api/internal/config"
	"authorsite/api/internal/contact"
	"authorsite/api/internal/localstore"
	"authorsite/api/internal/media"
	"authorsite/api/internal/newsletter"
	"authorsite/api/internal/search"
	"authorsite/api/internal/site"
)

type testEnv struct {
	server  *HTTPServer
	handler http.Handler
	facade  *site.Facade
	kv      *localstore.KV
	token   string
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	kv, err := localstore.NewKV(t.TempDir(), 10*1024*1024)
	if err != nil {
		t.Fatalf("new kv: %v", err)
	}
	uploader, err := media.NewUploader(config.Config{}, logger)
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}
	facade := site.NewFacade(site.NewLocalBackend(localstore.NewContentStore(kv, logger)), broadcast.NewBus(logger), uploader, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = facade.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := facade.WaitReady(waitCtx); err != nil {
		t.Fatalf("facade not ready: %v", err)
	}

	admin, err := auth.NewAdmin(auth.AdminConfig{Username: "admin", Password: "secret", Secret: "test-secret", Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("new admin: %v", err)
	}
	session, err := admin.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	searchSvc := search.NewService(nil, logger)
	searchSvc.Refresh(facade.Content())

	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "http://localhost:3000"
	}
	server := NewHTTPServer(Dependencies{
		Config:     cfg,
		Logger:     logger,
		Facade:     facade,
		Contact:    contact.NewService(contact.NewKVStore(kv), logger),
		Newsletter: newsletter.NewList(kv, logger),
		Search:     searchSvc,
		Admin:      admin,
	})
	return &testEnv{server: server, handler: server.Handler(), facade: facade, kv: kv, token: session.Token}
}

func (e *testEnv) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	fixed := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	env.server.now = func() time.Time { return fixed }

	rr := env.do(t, http.MethodGet, "/health", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	decodeJSON(t, rr, &response)
	if response["status"] != "OK" {
		t.Errorf("expected status OK, got %v", response["status"])
	}
	if response["timestamp"] != "2024-05-01T10:30:00.000Z" {
		t.Errorf("unexpected timestamp %v", response["timestamp"])
	}
}

func TestReadyEndpointReportsFailingCheck(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	rr := env.do(t, http.MethodGet, "/ready", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	env.server.checks = map[string]Pinger{"database": failingPinger{err: context.DeadlineExceeded}}
	rr = env.do(t, http.MethodGet, "/ready", "", false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var response struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	decodeJSON(t, rr, &response)
	if response.Status != "not_ready" {
		t.Errorf("expected not_ready, got %q", response.Status)
	}
	if response.Checks["database"]["status"] != "error" {
		t.Errorf("expected database error, got %v", response.Checks["database"])
	}
	if response.Checks["content"]["backend"] != "local" {
		t.Errorf("expected local backend, got %v", response.Checks["content"])
	}
}

func TestPreflightAndCORSHeaders(t *testing.T) {
	env := newTestEnv(t, config.Config{CORSOrigin: "https://autora.example"})

	rr := env.do(t, http.MethodOptions, "/api/anything", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://autora.example" {
		t.Errorf("unexpected origin %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, PATCH, DELETE, OPTIONS" {
		t.Errorf("unexpected methods %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Errorf("unexpected headers %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected a request id")
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	for _, path := range []string{"/", "/nope", "/api", "/api/unknown", "/api/contact-messages/a/b"} {
		rr := env.do(t, http.MethodGet, path, "", false)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected status 404, got %d", path, rr.Code)
		}
		if body := rr.Body.String(); body != "{\"error\":\"Endpoint no encontrado\"}\n" {
			t.Fatalf("%s: unexpected body %q", path, body)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	rr := env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"secret"}`, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var session struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	decodeJSON(t, rr, &session)
	if session.Token == "" || session.User.Username != "admin" || session.User.Role != "admin" {
		t.Fatalf("unexpected session %+v", session)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestLogoutClosesSession(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	rr := env.do(t, http.MethodGet, "/api/newsletter", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 before logout, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/auth/logout", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodGet, "/api/newsletter", "", true)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 after logout, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/auth/logout", "", true)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for a closed session, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/auth/logout", "", false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without a token, got %d", rr.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	cases := []struct{ method, path string }{
		{http.MethodPut, "/api/content"},
		{http.MethodPatch, "/api/content/heroSection"},
		{http.MethodPost, "/api/content/reset"},
		{http.MethodPost, "/api/uploads"},
		{http.MethodGet, "/api/newsletter"},
		{http.MethodGet, "/api/newsletter/export"},
		{http.MethodDelete, "/api/newsletter/1"},
		{http.MethodPatch, "/api/contact-messages/x"},
		{http.MethodDelete, "/api/contact-messages/x"},
	}
	for _, tc := range cases {
		rr := env.do(t, tc.method, tc.path, `{}`, false)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPut, "/api/content", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a forged token, got %d", rr.Code)
	}
}

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{contact.ErrNotFound, http.StatusNotFound},
		{contact.ErrInvalidStatus, http.StatusBadRequest},
		{newsletter.ErrAlreadySubscribed, http.StatusConflict},
		{newsletter.ErrInvalidEmail, http.StatusBadRequest},
		{media.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{site.ErrStopped, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapError(tc.err).Status; got != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, got)
		}
	}
}
