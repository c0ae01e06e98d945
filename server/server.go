// Package server exposes the sync engine over a local JSON API with a
// websocket event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ytfeed/feed"
	"ytfeed/prefs"
	"ytfeed/storage"
	"ytfeed/summary"
)

// ErrSummariesDisabled is returned when no summarization service is configured.
var ErrSummariesDisabled = errors.New("server: summaries are not configured")

// Settings is the part of the preference store the API reads and writes.
type Settings interface {
	LastReload(ctx context.Context) (time.Time, error)
	Language(ctx context.Context) (prefs.Language, error)
	SetLanguage(ctx context.Context, lang prefs.Language) error
}

// Server is the local API.
type Server struct {
	engine    *feed.Engine
	summaries *summary.Service
	settings  Settings
	hub       *Hub
	tokenHash []byte
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithTokenHash requires every request to carry a bearer token matching
// the bcrypt hash. An empty hash leaves the API open.
func WithTokenHash(hash string) Option {
	return func(s *Server) {
		if hash != "" {
			s.tokenHash = []byte(hash)
		}
	}
}

// WithSummaries enables the summary endpoint.
func WithSummaries(svc *summary.Service) Option {
	return func(s *Server) { s.summaries = svc }
}

// WithHub sets the event hub. By default the server creates its own.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// New creates a server.
func New(engine *feed.Engine, settings Settings, opts ...Option) *Server {
	s := &Server{engine: engine, settings: settings}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		if s.tokenHash != nil {
			r.Use(requireToken(s.tokenHash))
		}
		r.Get("/topics", s.handleTopics)
		r.Post("/topics", s.handleCreateTopic)
		r.Get("/topics/manage", s.handleManageTopics)
		r.Post("/topics/order", s.handleOrderTopics)
		r.Put("/topics/{id}", s.handleUpdateTopic)
		r.Delete("/topics/{id}", s.handleDeleteTopic)
		r.Post("/reload", s.handleReload)
		r.Post("/videos/{id}/watched", s.handleWatched)
		r.Get("/videos/{id}/summary", s.handleSummary)
		r.Get("/history", s.handleHistory)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleSaveSettings)
		r.Handle("/events", s.hub)
	})

	s.router = r
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the event hub, for publishing events from outside requests
// such as background reloads.
func (s *Server) Hub() *Hub { return s.hub }

// ListenAndServe serves the API on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.hub.Close()
		return err
	case <-ctx.Done():
	}
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// --- Topic Handlers ---

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.engine.LoadAllTopics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleManageTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.engine.GetAllTopics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Channels string `json:"channels"`
	}
	if !decode(w, r, &req) {
		return
	}
	videos, err := s.engine.CreateTopic(r.Context(), req.Title, req.Channels)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(Event{Type: EventTopicCreated})
	writeJSON(w, http.StatusCreated, map[string]any{"videos": videos})
}

func (s *Server) handleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := topicID(w, r)
	if !ok {
		return
	}
	var req struct {
		Channels string `json:"channels"`
	}
	if !decode(w, r, &req) {
		return
	}
	dropped, err := s.engine.UpdateTopic(r.Context(), id, req.Channels)
	if err != nil {
		writeError(w, err)
		return
	}
	if dropped == nil {
		dropped = []string{}
	}
	s.hub.Publish(Event{Type: EventTopicUpdated, TopicID: id})
	writeJSON(w, http.StatusOK, map[string]any{"dropped": dropped})
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := topicID(w, r)
	if !ok {
		return
	}
	if err := s.engine.DeleteTopics(r.Context(), []storage.Topic{{ID: id}}); err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(Event{Type: EventTopicDeleted, TopicID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOrderTopics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topics []struct {
			ID    int64 `json:"id"`
			Order int   `json:"order"`
		} `json:"topics"`
		Remove []int64 `json:"remove"`
	}
	if !decode(w, r, &req) {
		return
	}
	ranks := make([]storage.Topic, 0, len(req.Topics))
	for _, t := range req.Topics {
		ranks = append(ranks, storage.Topic{ID: t.ID, Order: t.Order})
	}
	remove := make([]storage.Topic, 0, len(req.Remove))
	for _, id := range req.Remove {
		remove = append(remove, storage.Topic{ID: id})
	}
	if err := s.engine.UpdateTopicsOrder(r.Context(), ranks, remove); err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(Event{Type: EventTopicsReordered})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	topics, err := s.engine.ReloadAllTopics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(Event{Type: EventReloaded})
	writeJSON(w, http.StatusOK, topics)
}

// --- Video Handlers ---

func (s *Server) handleWatched(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.MarkVideoWatched(r.Context(), storage.Video{ID: id, Watched: true}); err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(Event{Type: EventVideoWatched, VideoID: id})
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "watched": true})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	videos, err := s.engine.WatchedHistory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summaries == nil {
		writeError(w, ErrSummariesDisabled)
		return
	}
	ctx := r.Context()
	video, err := s.engine.GetVideo(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	lang := r.URL.Query().Get("lang")
	if lang == "" {
		current, err := s.settings.Language(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		lang = string(current)
	}

	sum, err := s.summaries.Summarize(ctx, video, lang)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"video_id": sum.VideoID,
		"language": sum.Language,
		"text":     sum.Text,
	}
	if r.URL.Query().Get("format") == "html" {
		html, err := summary.RenderHTML(sum.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		resp["html"] = html
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Settings Handlers ---

type settingsResponse struct {
	Language   prefs.Language `json:"language"`
	LastReload *time.Time     `json:"last_reload"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.currentSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if !decode(w, r, &req) {
		return
	}
	lang, err := prefs.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.settings.SetLanguage(r.Context(), lang); err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.currentSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) currentSettings(ctx context.Context) (settingsResponse, error) {
	lang, err := s.settings.Language(ctx)
	if err != nil {
		return settingsResponse{}, err
	}
	last, err := s.settings.LastReload(ctx)
	if err != nil {
		return settingsResponse{}, err
	}
	resp := settingsResponse{Language: lang}
	if !last.IsZero() {
		resp.LastReload = &last
	}
	return resp, nil
}

// --- Helpers ---

func topicID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid topic id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

// writeError maps engine errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("server: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, feed.ErrHandleNotResolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, feed.ErrInvalidTopic),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, prefs.ErrUnknownLanguage):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, summary.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, summary.ErrFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrSummariesDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
