package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"authorsite/api/internal/content"
	"authorsite/api/internal/site"
)

// maxContentBody bounds PUT and PATCH bodies. It sits above the document ceiling so
// oversized documents reach the capacity check and get its message.
const maxContentBody = 2 * content.MaxDocumentBytes

func (s *HTTPServer) routeContent(w http.ResponseWriter, r *http.Request, rest []string) bool {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, snapshotPayload(s.facade.Snapshot()))
	case len(rest) == 0 && r.Method == http.MethodPut:
		if s.requireAdmin(w, r) {
			s.handleContentSave(w, r)
		}
	case len(rest) == 1 && rest[0] == "events" && r.Method == http.MethodGet:
		s.handleContentEvents(w, r)
	case len(rest) == 1 && rest[0] == "reset" && r.Method == http.MethodPost:
		if s.requireAdmin(w, r) {
			s.handleContentReset(w, r)
		}
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.handleSectionGet(w, rest[0])
	case len(rest) == 1 && r.Method == http.MethodPatch:
		if s.requireAdmin(w, r) {
			s.handleSectionUpdate(w, r, rest[0])
		}
	default:
		return false
	}
	return true
}

func snapshotPayload(snap site.Snapshot) map[string]any {
	return map[string]any{
		"content":   snap.Content,
		"version":   snap.Version,
		"isLoading": snap.IsLoading(),
		"backend":   snap.Kind.String(),
	}
}

func (s *HTTPServer) handleContentSave(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContentBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "El contenido es demasiado grande", nil)
		return
	}
	doc, err := content.Decode(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", err.Error())
		return
	}
	result, err := s.facade.SaveContent(r.Context(), doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sizeInMB": result.SizeInMB(),
		"version":  result.Version,
	})
}

func (s *HTTPServer) handleSectionGet(w http.ResponseWriter, name string) {
	section, err := content.ParseSection(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_SECTION", err.Error(), nil)
		return
	}
	doc := s.facade.Content()
	value, err := doc.Section(section)
	if err != nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_SECTION", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *HTTPServer) handleSectionUpdate(w http.ResponseWriter, r *http.Request, name string) {
	section, err := content.ParseSection(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_SECTION", err.Error(), nil)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContentBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "El contenido es demasiado grande", nil)
		return
	}
	result, err := s.facade.UpdateSection(r.Context(), section, json.RawMessage(raw))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sizeInMB": result.SizeInMB(),
		"version":  result.Version,
	})
}

func (s *HTTPServer) handleContentReset(w http.ResponseWriter, r *http.Request) {
	version, err := s.facade.ResetContent(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "version": version})
}

// handleContentEvents streams one "content" event per snapshot version until the
// client goes away. The current snapshot is sent first.
func (s *HTTPServer) handleContentEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming no soportado", nil)
		return
	}
	snapshots, cancel := s.facade.Subscribe()
	defer cancel()
	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(snap site.Snapshot) bool {
		payload, _ := json.Marshal(map[string]any{
			"version":   snap.Version,
			"isLoading": snap.IsLoading(),
		})
		if _, err := fmt.Fprintf(w, "id: %d\nevent: content\ndata: %s\n\n", snap.Version, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	last := s.facade.Snapshot()
	if !send(last) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.streamsDone:
			return
		case snap := <-snapshots:
			if snap.Version == last.Version && snap.State == last.State {
				continue
			}
			last = snap
			if !send(snap) {
				return
			}
		}
	}
}
