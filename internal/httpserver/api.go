package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"snipbin/internal/lang"
	"snipbin/internal/paste"
	"snipbin/internal/storage"
)

type createRequest struct {
	Content    string `json:"content"`
	Language   string `json:"language,omitempty"`
	Expiration string `json:"expiration,omitempty"`
}

type createResponse struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type pasteResponse struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Language  string     `json:"language"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type languageResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Extension string `json:"extension"`
}

type expirationResponse struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Seconds int64  `json:"seconds"`
	Default bool   `json:"default,omitempty"`
}

type readyResponse struct {
	Ready bool   `json:"ready"`
	Store string `json:"store"`
}

func (s *Server) apiCreate(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		s.writeError(w, r, http.StatusUnsupportedMediaType, "expected Content-Type: application/json")
		return
	}

	// JSON escaping can double the encoded size of the content.
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxBytes)*2+4096)
	var req createRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			s.writeError(w, r, http.StatusBadRequest, "empty request body")
		default:
			s.writeError(w, r, http.StatusBadRequest, "invalid request")
		}
		return
	}
	if msg := s.validateContent(req.Content); msg != "" {
		s.writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	exp, err := paste.ParseExpiration(req.Expiration)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid expiration")
		return
	}

	p, err := s.pastes.Create(r.Context(), paste.Draft{Content: req.Content, Language: req.Language}, exp)
	if err != nil {
		s.logger.Error("create paste failed", "error", err, "request_id", requestID(r))
		s.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	s.logger.Info("paste created", "id", p.ID, "expiration", string(exp), "request_id", requestID(r))

	writeJSON(w, http.StatusCreated, createResponse{
		ID:        p.ID,
		URL:       s.canonicalURL(r, p.ID),
		ExpiresAt: optionalTime(p.ExpiresAt),
	})
}

func (s *Server) apiGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.fetchPaste(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, r, http.StatusNotFound, notFoundMessage)
			return
		}
		s.logger.Error("get paste failed", "error", err, "request_id", requestID(r))
		s.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, pasteResponse{
		ID:        p.ID,
		Content:   p.Content,
		Language:  p.Language,
		CreatedAt: p.CreatedAt,
		ExpiresAt: optionalTime(p.ExpiresAt),
	})
}

func (s *Server) apiLanguages(w http.ResponseWriter, r *http.Request) {
	langs := lang.All()
	out := make([]languageResponse, 0, len(langs))
	for _, l := range langs {
		out = append(out, languageResponse{ID: l.ID, Label: l.Label, Extension: l.Extension})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) apiExpirations(w http.ResponseWriter, r *http.Request) {
	choices := paste.Expirations()
	out := make([]expirationResponse, 0, len(choices))
	for _, c := range choices {
		out = append(out, expirationResponse{
			Value:   string(c.Value),
			Label:   c.Label,
			Seconds: int64(c.Value.TTL() / time.Second),
			Default: c.Value == paste.DefaultExpiration,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error":      msg,
		"request_id": requestID(r),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
