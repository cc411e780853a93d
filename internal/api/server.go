package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-atlas/atlas/internal/analyzer"
	"github.com/micro-atlas/atlas/internal/store"
	"github.com/micro-atlas/atlas/internal/themes"
)

// AnalyzeSaver is the synchronous analysis path (pipeline.Processor).
type AnalyzeSaver interface {
	AnalyzeAndSave(ctx context.Context, username, text string) (store.Note, error)
}

// ProfileBuilder recomputes a user's theme profile (themes.Service).
type ProfileBuilder interface {
	BuildProfile(ctx context.Context, username string, k int) (themes.Profile, error)
}

// Recommending produces suggestions for a theme list (recommender.Recommender).
type Recommending interface {
	Recommend(ctx context.Context, themes []string) (string, error)
}

// IngestMounter mounts webhook routes on the root router; nil skips them.
type IngestMounter interface {
	Routes(r chi.Router)
}

type Server struct {
	router       *chi.Mux
	port         int
	storeBackend string

	store       store.Store
	pipeline    AnalyzeSaver
	profiles    ProfileBuilder
	recommender Recommending
}

func NewServer(port int, apiToken, storeBackend string, db store.Store, p AnalyzeSaver, profiles ProfileBuilder, rec Recommending, ingest IngestMounter) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:       router,
		port:         port,
		storeBackend: storeBackend,
		store:        db,
		pipeline:     p,
		profiles:     profiles,
		recommender:  rec,
	}

	router.Get("/health", s.health)

	// Webhooks stay unauthenticated at the root: the upstream senders
	// (Twilio, inbound email, the clipper) cannot attach a bearer token.
	if ingest != nil {
		ingest.Routes(router)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(apiToken))
		r.Get("/atlas/status", s.status)
		r.Post("/analyze", s.analyze)
		r.Get("/inputs", s.listInputs)
		r.Get("/users/{username}/notes", s.listNotes)
		r.Get("/users/{username}/themes", s.getThemes)
		r.Get("/users/{username}/recommendations", s.getRecommendations)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// bearerAuth gates the API routes when a token is configured. An empty
// token disables the check entirely.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "atlas",
		"store":   s.storeBackend,
	})
}

type analyzeRequest struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	if req.Username == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Please enter a username."})
		return
	}

	note, err := s.pipeline.AnalyzeAndSave(r.Context(), req.Username, req.Text)
	if err != nil {
		if errors.Is(err, analyzer.ErrEmptyInput) {
			respondJSON(w, http.StatusBadRequest, map[string]string{"warning": "Please paste some content to analyze!"})
			return
		}
		slog.Error("analysis failed", "username", req.Username, "error", err)
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error": "Error generating analysis: " + err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, note)
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	notes, err := s.store.ListNotes(r.Context(), username)
	if err != nil {
		// Degrade to an empty history with a warning; never abort the page.
		slog.Error("failed to fetch notes", "username", username, "error", err)
		respondJSON(w, http.StatusOK, map[string]any{
			"notes":   []store.Note{},
			"warning": "Error fetching notes from database: " + err.Error(),
		})
		return
	}
	if notes == nil {
		notes = []store.Note{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) getThemes(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	k := themes.DefaultTopK
	if v := r.URL.Query().Get("k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			k = n
		}
	}

	profile, err := s.profiles.BuildProfile(r.Context(), username, k)
	if err != nil {
		slog.Error("failed to build theme profile", "username", username, "error", err)
		respondJSON(w, http.StatusOK, map[string]any{
			"profile": themes.Profile{Username: username, Top: []themes.Theme{}},
			"warning": "Error fetching notes from database: " + err.Error(),
		})
		return
	}
	if profile.Top == nil {
		profile.Top = []themes.Theme{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (s *Server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	profile, err := s.profiles.BuildProfile(r.Context(), username, themes.DefaultTopK)
	if err != nil {
		// A broken history reads as empty; the recommender then returns
		// its fixed not-enough-data message without a model call.
		slog.Error("failed to build theme profile", "username", username, "error", err)
		profile = themes.Profile{Username: username}
	}

	recs, err := s.recommender.Recommend(r.Context(), profile.Concepts())
	if err != nil {
		slog.Error("recommendation failed", "username", username, "error", err)
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error": "Error generating recommendations: " + err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"themes":          profile.Concepts(),
		"recommendations": recs,
	})
}

func (s *Server) listInputs(w http.ResponseWriter, r *http.Request) {
	var opts store.ListInputsOptions
	if v := r.URL.Query().Get("source_type"); v != "" {
		opts.SourceType = store.SourceType(v)
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		opts.Since = since
	}

	inputs, err := s.store.ListRawInputs(r.Context(), opts)
	if err != nil {
		slog.Error("failed to list raw inputs", "error", err)
		respondJSON(w, http.StatusOK, map[string]any{
			"inputs":  []store.RawInput{},
			"warning": "Error fetching inputs from database: " + err.Error(),
		})
		return
	}
	if inputs == nil {
		inputs = []store.RawInput{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"inputs": inputs})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
