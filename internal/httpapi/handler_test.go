package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/storycam/internal/capture"
	"github.com/orgball2608/storycam/internal/device/synthetic"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/internal/httpapi"
	"github.com/orgball2608/storycam/internal/media"
	"github.com/orgball2608/storycam/internal/publish"
	"github.com/orgball2608/storycam/internal/story"
	"github.com/orgball2608/storycam/internal/viewer"
	"github.com/orgball2608/storycam/pkg/config"
	"github.com/orgball2608/storycam/pkg/logger"
)

type fixture struct {
	server    *httptest.Server
	stories   *story.Store
	media     *media.MemoryStore
	driver    *synthetic.Driver
	publisher *publish.Publisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	log := logger.NewNop()

	stories := story.New(story.Opts{Clock: clock, Logger: log})
	session := viewer.New(stories)
	stories.OnEvict(session.Evicted)
	store := media.NewMemoryStore()

	cfg := &config.Config{}
	cfg.App.OwnerID = "me"
	cfg.App.OwnerName = "Me"
	publisher, err := publish.New(publish.Opts{
		Stories: stories,
		Media:   store,
		Logger:  log,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("publish.New() failed: %v", err)
	}
	t.Cleanup(publisher.Close)

	driver := synthetic.New(synthetic.Options{Clock: clock, Torch: true})
	ctrl := capture.New(capture.Opts{
		Config: capture.Config{Facing: domain.FacingEnvironment},
		Driver: driver,
		Clock:  clock,
		Logger: log,
		Admit:  publisher.Admit,
	})
	ctrl.OnCaptureComplete(publisher.Keep)
	t.Cleanup(ctrl.Close)

	h := httpapi.New(httpapi.Opts{
		Stories:   stories,
		Viewer:    session,
		Capture:   ctrl,
		Publisher: publisher,
		Media:     store,
		Logger:    log,
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &fixture{server: srv, stories: stories, media: store, driver: driver, publisher: publisher}
}

func (f *fixture) publish(t *testing.T, ownerID string) domain.StoryItem {
	t.Helper()
	loc, err := f.media.Put(context.Background(), domain.MediaFile{Kind: domain.MediaImage, MIMEType: "image/jpeg", Data: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	item, err := f.stories.Append(domain.Owner{ID: ownerID, DisplayName: strings.ToUpper(ownerID)}, domain.MediaRef{Kind: domain.MediaImage, Location: loc}, domain.Retention24h, nil)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	return item
}

func (f *fixture) do(t *testing.T, method, path string, out any) int {
	t.Helper()
	return f.send(t, method, path, nil, out)
}

func (f *fixture) send(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.server.URL+path, payload)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type collectionBody struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
	Items       []struct {
		ID        string `json:"id"`
		URL       string `json:"url"`
		ExpiresIn string `json:"expires_in"`
		Viewed    bool   `json:"viewed"`
		Viewers   int    `json:"viewers"`
	} `json:"items"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestStoriesRoutes(t *testing.T) {
	f := newFixture(t)

	var errBody httpapi.ErrorResponse
	if code := f.do(t, http.MethodGet, "/stories/alice", &errBody); code != http.StatusNotFound {
		t.Errorf("GET unknown owner = %d, want 404", code)
	}

	item := f.publish(t, "alice")

	var c collectionBody
	if code := f.do(t, http.MethodGet, "/stories/alice?viewer=carol", &c); code != http.StatusOK {
		t.Fatalf("GET /stories/alice = %d", code)
	}
	if c.ID != "alice" || c.DisplayName != "ALICE" || !c.Active || len(c.Items) != 1 {
		t.Fatalf("collection = %+v", c)
	}
	if c.Items[0].Viewed || !strings.HasPrefix(c.Items[0].URL, "/media/") || c.Items[0].ExpiresIn != "24h" {
		t.Errorf("item = %+v", c.Items[0])
	}

	var changed map[string]bool
	if code := f.do(t, http.MethodPost, "/stories/alice/items/"+item.ID+"/viewed?viewer=carol", &changed); code != http.StatusOK || !changed["changed"] {
		t.Errorf("mark viewed = %d %v", code, changed)
	}
	if code := f.do(t, http.MethodPost, "/stories/alice/items/"+item.ID+"/viewed", &errBody); code != http.StatusBadRequest {
		t.Errorf("mark viewed without viewer = %d, want 400", code)
	}

	f.do(t, http.MethodGet, "/stories/alice?viewer=carol", &c)
	if !c.Items[0].Viewed || c.Items[0].Viewers != 1 {
		t.Errorf("item after view = %+v", c.Items[0])
	}

	var list []collectionBody
	if code := f.do(t, http.MethodGet, "/stories", &list); code != http.StatusOK || len(list) != 1 {
		t.Errorf("list = %d %+v", code, list)
	}

	if code := f.do(t, http.MethodDelete, "/stories/alice/items/"+item.ID, nil); code != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", code)
	}
	if code := f.do(t, http.MethodDelete, "/stories/alice/items/"+item.ID, &errBody); code != http.StatusNotFound {
		t.Errorf("second DELETE = %d, want 404", code)
	}

	var active map[string]bool
	f.do(t, http.MethodGet, "/stories/alice/active", &active)
	if active["active"] {
		t.Error("owner still active after removing the only item")
	}
}

func TestServeMedia(t *testing.T) {
	f := newFixture(t)
	f.publish(t, "alice")

	var c collectionBody
	f.do(t, http.MethodGet, "/stories/alice", &c)

	resp, err := http.Get(f.server.URL + c.Items[0].URL)
	if err != nil {
		t.Fatalf("GET media: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "jpeg" {
		t.Errorf("media = %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", ct)
	}

	var errBody httpapi.ErrorResponse
	if code := f.do(t, http.MethodGet, "/media/missing.jpg", &errBody); code != http.StatusNotFound {
		t.Errorf("missing media = %d, want 404", code)
	}
}

func TestViewerRoutes(t *testing.T) {
	f := newFixture(t)
	item := f.publish(t, "alice")

	var opened struct {
		Opened  bool                 `json:"opened"`
		Session domain.ViewerSession `json:"session"`
	}
	f.do(t, http.MethodPost, "/viewer/bob?viewer=carol", &opened)
	if opened.Opened {
		t.Error("viewer opened for an owner without stories")
	}

	f.do(t, http.MethodPost, "/viewer/alice?viewer=carol", &opened)
	if !opened.Opened || opened.Session.FocusedOwnerID != "alice" {
		t.Errorf("open = %+v", opened)
	}

	f.stories.Remove("alice", item.ID)

	var state domain.ViewerSession
	f.do(t, http.MethodGet, "/viewer", &state)
	if state.IsOpen {
		t.Error("viewer still open after its owner's only item was removed")
	}

	f.do(t, http.MethodDelete, "/viewer", &state)
	if state.IsOpen {
		t.Error("viewer open after DELETE")
	}
}

func TestCaptureRoutes(t *testing.T) {
	f := newFixture(t)

	var s map[string]any
	if code := f.do(t, http.MethodPost, "/capture/open", &s); code != http.StatusOK || s["status"] != string(domain.StatusLive) {
		t.Fatalf("open = %d %v", code, s)
	}
	if s["torch"] != true {
		t.Errorf("torch capability = %v, want true", s["torch"])
	}

	f.do(t, http.MethodPost, "/capture/flash", &s)
	if s["flash"] != string(domain.FlashOn) || !f.driver.Current().Torch() {
		t.Errorf("flash = %v, torch lit = %v", s["flash"], f.driver.Current().Torch())
	}

	f.do(t, http.MethodPost, "/capture/facing", &s)
	if s["facing"] != string(domain.FacingUser) {
		t.Errorf("facing = %v, want user", s["facing"])
	}

	f.do(t, http.MethodPost, "/capture/close", &s)
	if s["status"] != string(domain.StatusClosed) || f.driver.Active() != 0 {
		t.Errorf("close = %v, active = %d", s, f.driver.Active())
	}
}

func TestCapturePermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.driver.SetPermissionDenied(true)

	var errBody httpapi.ErrorResponse
	if code := f.do(t, http.MethodPost, "/capture/open", &errBody); code != http.StatusForbidden {
		t.Errorf("open = %d, want 403", code)
	}
	if errBody.Code != "permission_denied" {
		t.Errorf("code = %q, want permission_denied", errBody.Code)
	}

	f.driver.SetPermissionDenied(false)
	var s map[string]any
	if code := f.do(t, http.MethodPost, "/capture/retry", &s); code != http.StatusOK || s["status"] != string(domain.StatusLive) {
		t.Errorf("retry = %d %v", code, s)
	}
}

type draftBody struct {
	ID   string           `json:"id"`
	Kind domain.MediaKind `json:"kind"`
}

type publishedBody struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	URL             string    `json:"url"`
	ExpiresIn       string    `json:"expires_in"`
}

func TestShutterCreatesDraft(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/capture/open", nil)

	var s map[string]any
	if code := f.do(t, http.MethodPost, "/capture/press", &s); code != http.StatusOK {
		t.Fatalf("press = %d %v", code, s)
	}
	var errBody httpapi.ErrorResponse
	if code := f.do(t, http.MethodPost, "/capture/press", &errBody); code != http.StatusConflict {
		t.Errorf("second press = %d, want 409", code)
	}
	f.do(t, http.MethodPost, "/capture/release", &s)
	if s["drafts"] != float64(1) {
		t.Errorf("drafts after release = %v, want 1", s["drafts"])
	}

	var drafts []draftBody
	f.do(t, http.MethodGet, "/capture/drafts", &drafts)
	if len(drafts) != 1 || drafts[0].Kind != domain.MediaImage {
		t.Fatalf("drafts = %+v, want one photo", drafts)
	}

	var item publishedBody
	if code := f.do(t, http.MethodPost, "/capture/drafts/"+drafts[0].ID+"/publish", &item); code != http.StatusCreated {
		t.Fatalf("publish = %d", code)
	}
	if item.OwnerID != "me" || item.ExpiresIn != "24h" || !strings.HasPrefix(item.URL, "/media/") {
		t.Errorf("item = %+v", item)
	}
	if !f.stories.HasActive("me") {
		t.Error("published draft not in the story store")
	}
	if code := f.do(t, http.MethodPost, "/capture/drafts/"+drafts[0].ID+"/publish", &errBody); code != http.StatusNotFound {
		t.Errorf("republish = %d, want 404", code)
	}
}

func TestPublishDraftWithTierAndTrim(t *testing.T) {
	f := newFixture(t)
	f.publisher.Keep(domain.MediaFile{Kind: domain.MediaVideo, MIMEType: "video/mp4", Data: []byte("ftypisom")}, domain.MediaVideo)
	id := f.publisher.Drafts()[0].ID

	body := map[string]any{
		"tier": 48,
		"trim": map[string]float64{"start": 1.5, "end": 9},
	}
	var item publishedBody
	if code := f.send(t, http.MethodPost, "/capture/drafts/"+id+"/publish", body, &item); code != http.StatusCreated {
		t.Fatalf("publish = %d", code)
	}
	if got := item.ExpiresAt.Sub(item.CreatedAt); got != 48*time.Hour {
		t.Errorf("expires_at - created_at = %v, want 48h", got)
	}
	if item.DurationSeconds != 7.5 {
		t.Errorf("duration_seconds = %v, want 7.5", item.DurationSeconds)
	}
	if item.ExpiresIn != "48h" {
		t.Errorf("expires_in = %q, want 48h", item.ExpiresIn)
	}
}

func TestPublishDraftErrors(t *testing.T) {
	f := newFixture(t)
	f.publisher.Keep(domain.MediaFile{Kind: domain.MediaImage, MIMEType: "image/jpeg", Data: []byte("jpeg")}, domain.MediaImage)
	id := f.publisher.Drafts()[0].ID

	var errBody httpapi.ErrorResponse
	if code := f.send(t, http.MethodPost, "/capture/drafts/"+id+"/publish", map[string]int{"tier": 12}, &errBody); code != http.StatusBadRequest {
		t.Errorf("tier 12 = %d, want 400", code)
	}
	if code := f.send(t, http.MethodPost, "/capture/drafts/"+id+"/publish", "not an object", &errBody); code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", code)
	}

	if code := f.do(t, http.MethodDelete, "/capture/drafts/"+id, nil); code != http.StatusNoContent {
		t.Errorf("discard = %d, want 204", code)
	}
	if code := f.do(t, http.MethodDelete, "/capture/drafts/"+id, &errBody); code != http.StatusNotFound {
		t.Errorf("second discard = %d, want 404", code)
	}
}
