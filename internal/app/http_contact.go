package app

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"authorsite/api/internal/contact"
)

func (s *HTTPServer) routeContact(w http.ResponseWriter, r *http.Request, rest []string) bool {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		s.handleContactSubmit(w, r)
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.handleContactList(w, r)
	case len(rest) == 1 && r.Method == http.MethodPatch:
		if s.requireAdmin(w, r) {
			s.handleContactStatus(w, r, rest[0])
		}
	case len(rest) == 1 && r.Method == http.MethodDelete:
		if s.requireAdmin(w, r) {
			msg, err := s.contact.Delete(r.Context(), rest[0])
			if err != nil {
				s.fail(w, r, err)
				return true
			}
			writeJSON(w, http.StatusOK, msg)
		}
	default:
		return false
	}
	return true
}

// The public contact routes keep the response shapes the site's form already reads:
// {errors} on validation, {error, details?} on failure.
func (s *HTTPServer) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	if err := decodeBody(r, &in); err != nil {
		s.writeServerError(w, r, "Error al procesar la solicitud", err)
		return
	}

	msg, err := s.contact.Submit(r.Context(), in)
	var invalid *contact.ValidationError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": invalid.Problems})
		return
	case err != nil:
		s.writeServerError(w, r, "Error al guardar el mensaje", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Mensaje enviado correctamente",
		"data":    msg,
	})
}

func (s *HTTPServer) handleContactList(w http.ResponseWriter, r *http.Request) {
	messages, err := s.contact.List(r.Context(), r.URL.Query().Get("status"))
	if errors.Is(err, contact.ErrInvalidStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("list contact messages", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Error al obtener mensajes"})
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *HTTPServer) handleContactStatus(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	msg, err := s.contact.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *HTTPServer) writeServerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.logger.Error(message,
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	payload := map[string]any{"error": message}
	if s.cfg.ShowErrorDetails() {
		payload["details"] = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, payload)
}
