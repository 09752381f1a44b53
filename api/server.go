package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"media-vault/auth"
	"media-vault/domain/event"
	apperrors "media-vault/errors"
	"media-vault/runtime"
	"media-vault/search"
	"media-vault/services"

	"github.com/google/uuid"
)

// Server is the thin controller layer in front of the pipeline. It does
// authentication, request decoding and error mapping; every decision about
// attachments is delegated to the upload service.
type Server struct {
	log      *slog.Logger
	uploads  *services.UploadService
	tokens   *auth.TokenManager
	registry *runtime.Registry
	index    *search.Index
	http     *http.Server
}

func NewServer(
	log *slog.Logger,
	addr string,
	uploads *services.UploadService,
	tokens *auth.TokenManager,
	registry *runtime.Registry,
	index *search.Index,
) *Server {
	s := &Server{
		log:      log,
		uploads:  uploads,
		tokens:   tokens,
		registry: registry,
		index:    index,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/uploads", s.withOwner(s.handleInitiate))
	mux.HandleFunc("POST /v1/uploads/{uploadID}/confirm", s.withOwner(s.handleConfirm))
	mux.HandleFunc("GET /v1/attachments/{id}", s.withOwner(s.handleGet))
	mux.HandleFunc("DELETE /v1/attachments/{id}", s.withOwner(s.handleDelete))
	mux.HandleFunc("GET /v1/attachments", s.withOwner(s.handleSearch))
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// withOwner authenticates the bearer token and passes the proven owner to the
// handler. Ownership checks below this point compare against this value, never
// against anything client-supplied.
func (s *Server) withOwner(next func(w http.ResponseWriter, r *http.Request, ownerID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.Verify(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, claims.OwnerID)
	}
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request, ownerID string) {
	var body struct {
		FileName     string `json:"file_name"`
		DeclaredMime string `json:"declared_mime"`
		SizeBytes    int64  `json:"size_bytes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	resp, err := s.uploads.Initiate(r.Context(), services.InitiateRequest{
		OwnerID:      ownerID,
		FileName:     body.FileName,
		DeclaredMime: body.DeclaredMime,
		SizeBytes:    body.SizeBytes,
	})
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request, ownerID string) {
	att, err := s.uploads.Confirm(r.Context(), r.PathValue("uploadID"), ownerID)
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, ownerID string) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed attachment id")
		return
	}
	att, err := s.uploads.Get(r.Context(), id, ownerID)
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, ownerID string) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed attachment id")
		return
	}
	att, err := s.uploads.Delete(r.Context(), id, ownerID)
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, ownerID string) {
	terms := r.URL.Query().Get("q")
	if terms == "" {
		s.writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	ids, err := s.index.Search(r.Context(), ownerID, terms, 50)
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

// handleEvents streams the caller's lifecycle events as server-sent events.
// The session is registered under the owner the token proves; it never sees
// another user's progress.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		token = r.URL.Query().Get("token")
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if _, err := s.tokens.Verify(token); err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	// Headers go out before the session is registered so a delivery racing
	// the subscription never interleaves with the status line.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sessionID := uuid.NewString()
	ownerID, err := s.registry.Subscribe(token, sessionID, &sseSink{w: w, flusher: flusher})
	if err != nil {
		return
	}
	defer s.registry.Unsubscribe(sessionID, ownerID)

	s.log.Info("Progress session opened", "owner", ownerID, "session", sessionID)
	<-r.Context().Done()
	s.log.Info("Progress session closed", "owner", ownerID, "session", sessionID)
}

type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Consume(ctx context.Context, e event.LifecycleEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Name(), payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) mapError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrForbidden):
		s.writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, apperrors.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperrors.ErrStateConflict):
		s.writeError(w, http.StatusConflict, "attachment is busy")
	default:
		s.log.Error("Request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("Response write failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
