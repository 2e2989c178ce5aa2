package httpserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"golang.org/x/crypto/blake2b"

	"snipbin/internal/id"
	"snipbin/internal/lang"
	"snipbin/internal/paste"
	"snipbin/internal/storage"
)

const notFoundMessage = "Paste not found"

type option struct {
	Value    string
	Label    string
	Selected bool
}

type indexPageData struct {
	LanguageOptions []option
	ExpireOptions   []option
	Content         string
	Language        string
	Expire          string
	Error           string
	Notice          string
	ForkedFrom      string
	MaxBytes        int
}

type viewPageData struct {
	Paste         *storage.Paste
	LanguageLabel string
	Size          int
	Lines         int
	Canonical     string
}

type errorPageData struct {
	Message string
}

type titled interface {
	PageTitle() string
}

func (d indexPageData) PageTitle() string {
	if d.ForkedFrom != "" {
		return "Fork of " + d.ForkedFrom + " · snipbin"
	}
	return "New Paste · snipbin"
}

func (d viewPageData) PageTitle() string {
	if d.Paste != nil && d.Paste.ID != "" {
		return fmt.Sprintf("%s · snipbin", d.Paste.ID)
	}
	return "View Paste · snipbin"
}

func (d errorPageData) PageTitle() string {
	if d.Message == "" {
		return "snipbin"
	}
	return d.Message + " · snipbin"
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	forkID := r.URL.Query().Get("fork")
	if forkID == "" {
		s.render(w, r, http.StatusOK, "index", s.indexData("", "", "", ""))
		return
	}

	draft, err := s.forkDraft(r.Context(), forkID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			data := s.indexData("", "", "", "")
			data.Notice = "The paste you tried to fork no longer exists."
			s.render(w, r, http.StatusOK, "index", data)
			return
		}
		s.serverError(w, r, err)
		return
	}
	data := s.indexData(draft.Language, "", draft.Content, "")
	data.ForkedFrom = forkID
	s.render(w, r, http.StatusOK, "index", data)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(s.maxBytes) + 4096
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "index", s.indexData("", "", "", "Unable to parse form"))
		return
	}

	content := r.FormValue("content")
	language := r.FormValue("language")
	expire := r.FormValue("expire")

	if msg := s.validateContent(content); msg != "" {
		s.render(w, r, http.StatusBadRequest, "index", s.indexData(language, expire, content, msg))
		return
	}

	exp, err := paste.ParseExpiration(expire)
	if err != nil {
		s.render(w, r, http.StatusBadRequest, "index", s.indexData(language, expire, content, "Invalid expiration"))
		return
	}

	p, err := s.pastes.Create(r.Context(), paste.Draft{Content: content, Language: language}, exp)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/p/"+p.ID, http.StatusSeeOther)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	data := viewPageData{
		Paste:         p,
		LanguageLabel: lang.Label(p.Language),
		Size:          len(p.Content),
		Lines:         strings.Count(p.Content, "\n") + 1,
		Canonical:     s.canonicalURL(r, p.ID),
	}
	s.render(w, r, http.StatusOK, "view", data)
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}

	etag := etagFor(p.Content)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Header().Set("ETag", etag)
	_, _ = io.WriteString(w, p.Content)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(p)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, p.Content)
}

func (s *Server) handleFork(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, "/?fork="+p.ID, http.StatusSeeOther)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	png, err := qrcode.Encode(s.canonicalURL(r, p.ID), qrcode.Medium, 256)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// lookup resolves the {id} URL parameter to a live paste, writing the
// uniform not-found page or a server error itself when it cannot.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*storage.Paste, bool) {
	p, err := s.fetchPaste(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.notFound(w, r)
			return nil, false
		}
		s.serverError(w, r, err)
		return nil, false
	}
	return p, true
}

func (s *Server) fetchPaste(ctx context.Context, pasteID string) (*storage.Paste, error) {
	if !id.Valid(pasteID) {
		return nil, storage.ErrNotFound
	}
	return s.pastes.Get(ctx, pasteID)
}

func (s *Server) forkDraft(ctx context.Context, pasteID string) (paste.Draft, error) {
	if !id.Valid(pasteID) {
		return paste.Draft{}, storage.ErrNotFound
	}
	return s.pastes.Fork(ctx, pasteID)
}

func (s *Server) validateContent(content string) string {
	if len(content) == 0 {
		return "Content cannot be empty"
	}
	if len(content) > s.maxBytes {
		return fmt.Sprintf("Content exceeds %d byte limit", s.maxBytes)
	}
	return ""
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	resp := readyResponse{Ready: true, Store: "up"}
	status := http.StatusOK
	if err := s.pastes.Ping(ctx); err != nil {
		s.logger.Error("store health check failed", "error", err)
		resp.Ready = false
		resp.Store = "down"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	title := "snipbin"
	if t, ok := data.(titled); ok {
		if pt := t.PageTitle(); pt != "" {
			title = pt
		}
	}
	body := &bytes.Buffer{}
	bodyTemplate := name + "-body"
	if err := s.templates.ExecuteTemplate(body, bodyTemplate, data); err != nil {
		s.handleTemplateError(w, status, bodyTemplate, err)
		return
	}
	layoutBuf := &bytes.Buffer{}
	layoutData := struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		Body:  template.HTML(body.String()),
	}
	if err := s.templates.ExecuteTemplate(layoutBuf, "layout", layoutData); err != nil {
		s.handleTemplateError(w, status, "layout", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = layoutBuf.WriteTo(w)
}

func (s *Server) handleTemplateError(w http.ResponseWriter, status int, name string, err error) {
	s.logger.Error("render template", "error", err, "template", name)
	http.Error(w, "Template error", status)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal error", "error", err, "path", r.URL.Path, "request_id", requestID(r))
	s.render(w, r, http.StatusInternalServerError, "error", errorPageData{Message: "Internal server error"})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error", errorPageData{Message: notFoundMessage})
}

func (s *Server) indexData(selectedLanguage, selectedExpire, content, errMsg string) indexPageData {
	selectedLanguage = lang.Normalize(selectedLanguage)
	if selectedExpire == "" {
		selectedExpire = string(paste.DefaultExpiration)
	}
	langs := lang.All()
	langOpts := make([]option, 0, len(langs)+1)
	for _, l := range langs {
		langOpts = append(langOpts, option{
			Value:    l.ID,
			Label:    l.Label,
			Selected: l.ID == selectedLanguage,
		})
	}
	if !lang.Known(selectedLanguage) {
		// Keep a forked paste's unrecognised tag selectable.
		langOpts = append(langOpts, option{Value: selectedLanguage, Label: selectedLanguage, Selected: true})
	}
	choices := paste.Expirations()
	expOpts := make([]option, 0, len(choices))
	for _, c := range choices {
		expOpts = append(expOpts, option{
			Value:    string(c.Value),
			Label:    c.Label,
			Selected: string(c.Value) == selectedExpire,
		})
	}
	return indexPageData{
		LanguageOptions: langOpts,
		ExpireOptions:   expOpts,
		Content:         content,
		Language:        selectedLanguage,
		Expire:          selectedExpire,
		Error:           errMsg,
		MaxBytes:        s.maxBytes,
	}
}

func downloadName(p *storage.Paste) string {
	return fmt.Sprintf("paste-%s.%s", p.ID, lang.FileExtension(p.Language))
}

// countdown renders the coarsest whole unit left before expiry.
func countdown(expires, now time.Time) string {
	if expires.IsZero() {
		return "Never expires"
	}
	left := expires.Sub(now)
	if left <= 0 {
		return "Expired"
	}
	hours := int(left / time.Hour)
	if days := hours / 24; days > 0 {
		return fmt.Sprintf("Expires in %dd", days)
	}
	if hours > 0 {
		return fmt.Sprintf("Expires in %dh", hours)
	}
	return fmt.Sprintf("Expires in %dm", int(left/time.Minute))
}

func formatSize(size int) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	const unit = 1024.0
	kb := float64(size)
	for _, suffix := range []string{"KB", "MB", "GB"} {
		kb /= unit
		if kb < unit {
			return fmt.Sprintf("%.1f %s", kb, suffix)
		}
	}
	return fmt.Sprintf("%d B", size)
}

func etagFor(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
