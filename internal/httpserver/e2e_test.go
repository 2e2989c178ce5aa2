package httpserver

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestEndToEndCreateViewRaw(t *testing.T) {
	ts := newTestServer(t, nil)
	hs := httptest.NewServer(ts.Handler())
	defer hs.Close()

	client := &http.Client{Timeout: 5 * time.Second, CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	form := url.Values{}
	form.Set("content", "hello world")
	form.Set("language", "plaintext")
	form.Set("expire", "1h")

	resp, err := client.PostForm(hs.URL+"/pastes", form)
	if err != nil {
		t.Fatalf("post form: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		t.Fatalf("missing location header")
	}

	viewResp, err := client.Get(hs.URL + loc)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	body, err := io.ReadAll(viewResp.Body)
	viewResp.Body.Close()
	if err != nil {
		t.Fatalf("read view: %v", err)
	}
	if viewResp.StatusCode != http.StatusOK {
		t.Fatalf("view status %d", viewResp.StatusCode)
	}
	if !strings.Contains(string(body), "hello world") {
		t.Fatalf("view missing content")
	}
	if !strings.Contains(string(body), hs.URL+loc) {
		t.Fatalf("view missing canonical url")
	}

	rawResp, err := client.Get(hs.URL + loc + "/raw")
	if err != nil {
		t.Fatalf("get raw: %v", err)
	}
	rawBody, err := io.ReadAll(rawResp.Body)
	rawResp.Body.Close()
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if rawResp.StatusCode != http.StatusOK {
		t.Fatalf("raw status %d", rawResp.StatusCode)
	}
	if string(rawBody) != "hello world" {
		t.Fatalf("raw body mismatch")
	}
}

func TestEndToEndCompressesPages(t *testing.T) {
	ts := newTestServer(t, nil)
	hs := httptest.NewServer(ts.Handler())
	defer hs.Close()

	req, err := http.NewRequest(http.MethodGet, hs.URL+"/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	// A bare transport does not decompress transparently.
	resp, err := (&http.Transport{DisableCompression: true}).RoundTrip(req)
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", resp.Header.Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if !strings.Contains(string(got), "Create paste") {
		t.Fatalf("decompressed index missing form")
	}
}
