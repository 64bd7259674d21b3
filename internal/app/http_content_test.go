package app

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"authorsite/api/internal/config"
	"authorsite/api/internal/content"
)

type contentResponse struct {
	Content   content.Document `json:"content"`
	Version   uint64           `json:"version"`
	IsLoading bool             `json:"isLoading"`
	Backend   string           `json:"backend"`
}

func TestGetContentReturnsSnapshot(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	rr := env.do(t, http.MethodGet, "/api/content", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var snap contentResponse
	decodeJSON(t, rr, &snap)
	if snap.IsLoading || snap.Backend != "local" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Content.About.Title != content.Defaults().About.Title {
		t.Fatalf("expected default content, got %+v", snap.Content.About)
	}
}

func TestPutContentAssignsIDsAndBumpsVersion(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	before := env.facade.Snapshot().Version

	doc := content.Defaults()
	doc.Books.Books = []content.Book{{Title: "La novela del mar"}}
	body, _ := json.Marshal(doc)

	rr := env.do(t, http.MethodPut, "/api/content", string(body), true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var result struct {
		Success  bool   `json:"success"`
		SizeInMB string `json:"sizeInMB"`
		Version  uint64 `json:"version"`
	}
	decodeJSON(t, rr, &result)
	if !result.Success || result.Version != before+1 || result.SizeInMB == "" {
		t.Fatalf("unexpected result %+v", result)
	}

	books := env.facade.Content().Books.Books
	if len(books) != 1 || books[0].ID == 0 {
		t.Fatalf("expected one book with an id, got %+v", books)
	}
}

func TestPutContentValidationIs422(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	doc := content.Defaults()
	doc.Blog.Posts = []content.Post{{Content: "sin título"}}
	body, _ := json.Marshal(doc)

	rr := env.do(t, http.MethodPut, "/api/content", string(body), true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Code    string   `json:"code"`
		Details []string `json:"details"`
	}
	decodeJSON(t, rr, &payload)
	if payload.Code != "VALIDATION_FAILED" || len(payload.Details) == 0 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(env.facade.Content().Blog.Posts) != 0 {
		t.Fatalf("rejected document must not become current")
	}
}

func TestPutContentOverCapacityIs413(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	doc := content.Defaults()
	doc.Hero.Title = strings.Repeat("x", content.MaxDocumentBytes)
	body, _ := json.Marshal(doc)

	rr := env.do(t, http.MethodPut, "/api/content", string(body), true)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
	var payload struct {
		Code string `json:"code"`
	}
	decodeJSON(t, rr, &payload)
	if payload.Code != "CAPACITY_EXCEEDED" {
		t.Fatalf("unexpected code %q", payload.Code)
	}
	if env.facade.Content().Hero.Title != content.Defaults().Hero.Title {
		t.Fatalf("previous document must be retained")
	}
}

func TestPutContentRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	rr := env.do(t, http.MethodPut, "/api/content", `{"heroSection":`, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPatchSectionMergesIntoCurrentDocument(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	rr := env.do(t, http.MethodPatch, "/api/content/heroSection", `{"title":"Nueva portada"}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	hero := env.facade.Content().Hero
	if hero.Title != "Nueva portada" {
		t.Fatalf("expected merged title, got %q", hero.Title)
	}
	if hero.ButtonText != content.Defaults().Hero.ButtonText {
		t.Fatalf("untouched fields must be kept, got %q", hero.ButtonText)
	}

	rr = env.do(t, http.MethodGet, "/api/content/heroSection", "", false)
	var section content.HeroSection
	decodeJSON(t, rr, &section)
	if section.Title != "Nueva portada" {
		t.Fatalf("unexpected section %+v", section)
	}

	rr = env.do(t, http.MethodPatch, "/api/content/footer", `{}`, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown section: expected 404, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPatch, "/api/content/heroSection", `[1,2]`, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-object update: expected 422, got %d", rr.Code)
	}
}

func TestResetContentRestoresDefaults(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	env.do(t, http.MethodPatch, "/api/content/aboutSection", `{"title":"Quién soy"}`, true)
	rr := env.do(t, http.MethodPost, "/api/content/reset", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !content.Equal(env.facade.Content(), content.Defaults()) {
		t.Fatalf("expected defaults after reset")
	}
}

func TestContentEventsStreamVersions(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/content/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() map[string]any {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var payload map[string]any
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					t.Fatalf("parse event: %v", err)
				}
				return payload
			}
		}
	}

	first := readEvent()
	initial := first["version"].(float64)

	rr := env.do(t, http.MethodPatch, "/api/content/heroSection", `{"title":"Otra"}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: %d", rr.Code)
	}
	next := readEvent()
	if next["version"].(float64) != initial+1 {
		t.Fatalf("expected version %v, got %v", initial+1, next["version"])
	}
}

func TestCloseStreamsEndsEventStream(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/content/events", nil)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.handler.ServeHTTP(rr, req)
		close(done)
	}()

	env.server.CloseStreams()
	env.server.CloseStreams()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not end")
	}
	if !strings.Contains(rr.Body.String(), "event: content") {
		t.Fatalf("expected the initial event, got %q", rr.Body.String())
	}
}
