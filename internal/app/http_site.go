package app

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"authorsite/api/internal/imagenorm"
	"authorsite/api/internal/newsletter"
	"authorsite/api/internal/search"
)

const maxUploadBytes = 32 << 20

func (s *HTTPServer) routeNewsletter(w http.ResponseWriter, r *http.Request, rest []string) bool {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		s.handleSubscribe(w, r)
	case len(rest) == 0 && r.Method == http.MethodGet:
		if s.requireAdmin(w, r) {
			subs, err := s.newsletter.Subscribers(r.Context())
			if err != nil {
				s.fail(w, r, err)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"subscribers": subs, "total": len(subs)})
		}
	case len(rest) == 1 && rest[0] == "export" && r.Method == http.MethodGet:
		if s.requireAdmin(w, r) {
			s.handleSubscribersExport(w, r)
		}
	case len(rest) == 1 && r.Method == http.MethodDelete:
		if s.requireAdmin(w, r) {
			s.handleUnsubscribe(w, r, rest[0])
		}
	default:
		return false
	}
	return true
}

func (s *HTTPServer) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sub, err := s.newsletter.Subscribe(r.Context(), body.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"message":    "¡Gracias por suscribirte!",
		"subscriber": sub,
	})
}

func (s *HTTPServer) handleSubscribersExport(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	count, err := s.newsletter.ExportCSV(r.Context(), &body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	header := w.Header()
	header.Set("Content-Type", "text/csv; charset=utf-8")
	header.Set("Content-Disposition", `attachment; filename="`+newsletter.ExportFilename(s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := body.WriteTo(w); err != nil {
		s.logger.Warn("write subscribers export", zap.Error(err))
		return
	}
	s.logger.Info("subscribers exported", zap.Int("count", count))
}

func (s *HTTPServer) handleUnsubscribe(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Identificador no válido", nil)
		return
	}
	if err := s.newsletter.Remove(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload normalizes the multipart "file" with the profile named by ?profile
// (upload, portrait or cover) and returns the URL to store in the document.
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	profile, err := imagenorm.ProfileByName(r.URL.Query().Get("profile"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PROFILE", err.Error(), nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Falta el archivo de imagen", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "No se pudo leer el archivo", nil)
		return
	}

	upload, err := s.facade.UploadImage(r.Context(), data, profile)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"url":     upload.URL,
		"width":   upload.Width,
		"height":  upload.Height,
		"quality": upload.Quality,
		"bytes":   upload.Bytes,
		"stored":  upload.Stored,
	})
}

func (s *HTTPServer) handleBlogPost(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Identificador no válido", nil)
		return
	}
	post, ok := s.facade.Content().FindPost(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Artículo no encontrado", nil)
		return
	}
	html, err := s.renderer.HTML(post.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post, "html": html})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, ok := search.ParseResultType(query.Get("type"))
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "Tipo de búsqueda no válido", nil)
		return
	}
	limit := 20
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 100", nil)
			return
		}
		limit = parsed
	}
	if s.search == nil {
		s.fail(w, r, errors.New("search is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.search.Search(search.Query{Text: query.Get("q"), FilterType: filter, Limit: limit}))
}
