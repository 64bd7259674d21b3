package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"authorsite/api/internal/auth"
	"authorsite/api/internal/config"
	"authorsite/api/internal/contact"
	"authorsite/api/internal/newsletter"
	"authorsite/api/internal/render"
	"authorsite/api/internal/search"
	"authorsite/api/internal/site"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Config     config.Config
	Logger     *zap.Logger
	Facade     *site.Facade
	Contact    *contact.Service
	Newsletter *newsletter.List
	Search     *search.Service
	Renderer   *render.Renderer
	Admin      *auth.Admin
	// Checks are reported by /ready under their key.
	Checks map[string]Pinger
}

type HTTPServer struct {
	cfg        config.Config
	logger     *zap.Logger
	facade     *site.Facade
	contact    *contact.Service
	newsletter *newsletter.List
	search     *search.Service
	renderer   *render.Renderer
	admin      *auth.Admin
	checks     map[string]Pinger
	now        func() time.Time

	streamsDone chan struct{}
	closeOnce   sync.Once
}

func NewHTTPServer(deps Dependencies) *HTTPServer {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = render.NewRenderer()
	}
	return &HTTPServer{
		cfg:        deps.Config,
		logger:     logger.Named("http"),
		facade:     deps.Facade,
		contact:    deps.Contact,
		newsletter: deps.Newsletter,
		search:     deps.Search,
		renderer:   renderer,
		admin:      deps.Admin,
		checks:     deps.Checks,
		now:        time.Now,

		streamsDone: make(chan struct{}),
	}
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not cancel
// running requests, so it is registered with RegisterOnShutdown.
func (s *HTTPServer) CloseStreams() {
	s.closeOnce.Do(func() { close(s.streamsDone) })
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "OK",
			"timestamp": s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeNotFound(w)
		return
	}

	switch parts[1] {
	case "contact-messages":
		if s.routeContact(w, r, parts[2:]) {
			return
		}
	case "content":
		if s.routeContent(w, r, parts[2:]) {
			return
		}
	case "newsletter":
		if s.routeNewsletter(w, r, parts[2:]) {
			return
		}
	case "auth":
		if r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "login" {
			s.handleLogin(w, r)
			return
		}
		if r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "logout" {
			s.handleLogout(w, r)
			return
		}
	case "uploads":
		if r.Method == http.MethodPost && len(parts) == 2 {
			s.handleUpload(w, r)
			return
		}
	case "blog":
		if r.Method == http.MethodGet && len(parts) == 3 {
			s.handleBlogPost(w, r, parts[2])
			return
		}
	case "search":
		if r.Method == http.MethodGet && len(parts) == 2 {
			s.handleSearch(w, r)
			return
		}
	}

	writeNotFound(w)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready := true
	checks := map[string]any{}
	if s.facade != nil {
		snap := s.facade.Snapshot()
		check := map[string]any{"status": "ok", "backend": snap.Kind.String(), "version": snap.Version}
		if snap.IsLoading() {
			ready = false
			check["status"] = "loading"
		}
		checks["content"] = check
	}
	for name, dep := range s.checks {
		if err := dep.Ping(ctx); err != nil {
			ready = false
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ok":     ready,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.admin.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		s.logger.Info("admin login rejected", zap.String("username", body.Username))
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", auth.ErrInvalidCredentials.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Se requiere autenticación", nil)
		return
	}
	if err := s.admin.Logout(r.Context(), token); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Sesión no válida o expirada", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// requireAdmin writes a 401 and returns false unless the request carries a valid
// administrator token.
func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Se requiere autenticación", nil)
		return false
	}
	if _, err := s.admin.Verify(r.Context(), token); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Sesión no válida o expirada", nil)
		return false
	}
	return true
}

// fail logs server-side errors and writes the mapped response. Details of 5xx
// responses are only shown outside production.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	domainErr := mapError(err)
	if domainErr.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	details := domainErr.Details
	if domainErr.Status >= http.StatusInternalServerError && !s.cfg.ShowErrorDetails() {
		details = nil
	}
	writeError(w, domainErr.Status, domainErr.Code, domainErr.Message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.cfg.CORSOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush lets event streams push through the recorder.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Endpoint no encontrado"})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		// An empty body reads as an empty object.
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
