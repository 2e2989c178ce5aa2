package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func (ts *testServer) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req)
}

func TestAPICreateAndGet(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.postJSON("/api/pastes", `{"content":"fmt.Println(1)","language":"go","expiration":"1w"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rr.Code, rr.Body.String())
	}
	var created createResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.ExpiresAt == nil || !created.ExpiresAt.Equal(ts.clock.Now().Add(7*24*time.Hour)) {
		t.Fatalf("unexpected expires_at %v", created.ExpiresAt)
	}
	if !strings.HasSuffix(created.URL, "/p/"+created.ID) {
		t.Fatalf("unexpected url %q", created.URL)
	}

	got := ts.get("/api/pastes/" + created.ID)
	if got.Code != http.StatusOK {
		t.Fatalf("get status %d", got.Code)
	}
	var p pasteResponse
	if err := json.Unmarshal(got.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if p.Content != "fmt.Println(1)" || p.Language != "go" {
		t.Fatalf("unexpected paste %+v", p)
	}
	if !p.CreatedAt.Equal(ts.clock.Now()) {
		t.Fatalf("unexpected created_at %v", p.CreatedAt)
	}
}

func TestAPINeverExpiresIsNull(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.postJSON("/api/pastes", `{"content":"forever","expiration":"never"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"expires_at":null`) {
		t.Fatalf("expected null expires_at: %s", rr.Body.String())
	}
}

func TestAPIDefaultsToOneDay(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.postJSON("/api/pastes", `{"content":"tomorrow"}`)
	var created createResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.ExpiresAt == nil || !created.ExpiresAt.Equal(ts.clock.Now().Add(24*time.Hour)) {
		t.Fatalf("unexpected expires_at %v", created.ExpiresAt)
	}
}

func TestAPIErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"empty body", ``, http.StatusBadRequest},
		{"malformed", `{"content":`, http.StatusBadRequest},
		{"unknown field", `{"content":"x","password":"p"}`, http.StatusBadRequest},
		{"empty content", `{"content":""}`, http.StatusBadRequest},
		{"bad expiration", `{"content":"x","expiration":"2y"}`, http.StatusBadRequest},
		{"too large", `{"content":"` + strings.Repeat("a", 1025) + `"}`, http.StatusBadRequest},
		{"body limit", `{"content":"` + strings.Repeat("a", 8192) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/pastes", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.RequestIDHeader, "req-"+strings.ReplaceAll(tc.name, " ", "-"))
		rr := ts.do(req)
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.status, rr.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode error body: %v", tc.name, err)
		}
		if body["error"] == "" {
			t.Fatalf("%s: missing error message", tc.name)
		}
		if body["request_id"] != req.Header.Get(middleware.RequestIDHeader) {
			t.Fatalf("%s: request id %q not echoed", tc.name, body["request_id"])
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/pastes", strings.NewReader(`content=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rr := ts.do(req); rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 got %d", rr.Code)
	}
	if ts.store.Len() != 0 {
		t.Fatalf("rejected requests stored pastes")
	}
}

func TestAPIGetExpired(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.postJSON("/api/pastes", `{"content":"short","expiration":"1h"}`)
	var created createResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	ts.clock.Advance(999 * time.Second)
	if got := ts.get("/api/pastes/" + created.ID); got.Code != http.StatusOK {
		t.Fatalf("expected live paste, got %d", got.Code)
	}
	ts.clock.Advance(time.Hour)
	got := ts.get("/api/pastes/" + created.ID)
	if got.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", got.Code)
	}
	if !strings.Contains(got.Body.String(), "Paste not found") {
		t.Fatalf("unexpected body %s", got.Body.String())
	}
}

func TestAPICatalogues(t *testing.T) {
	ts := newTestServer(t, nil)

	var langs []languageResponse
	if err := json.Unmarshal(ts.get("/api/languages").Body.Bytes(), &langs); err != nil {
		t.Fatalf("decode languages: %v", err)
	}
	if len(langs) == 0 || langs[0].ID != "plaintext" || langs[0].Extension != "txt" {
		t.Fatalf("unexpected languages %+v", langs)
	}

	var exps []expirationResponse
	if err := json.Unmarshal(ts.get("/api/expirations").Body.Bytes(), &exps); err != nil {
		t.Fatalf("decode expirations: %v", err)
	}
	want := map[string]int64{"1h": 3600, "1d": 86400, "1w": 604800, "1m": 2592000, "never": 0}
	if len(exps) != len(want) {
		t.Fatalf("unexpected expirations %+v", exps)
	}
	for _, e := range exps {
		if want[e.Value] != e.Seconds {
			t.Fatalf("%s: %d seconds", e.Value, e.Seconds)
		}
		if e.Default != (e.Value == "1d") {
			t.Fatalf("%s: default flag %v", e.Value, e.Default)
		}
	}
}
