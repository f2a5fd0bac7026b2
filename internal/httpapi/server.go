// Package httpapi serves the campaign upload and the text conversation API.
package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tbxark/tripvoice"
	"github.com/tbxark/tripvoice/campaign"
	"github.com/tbxark/tripvoice/internal/logging"
	"github.com/tbxark/tripvoice/session"
)

const (
	maxUploadBytes    = 10 << 20
	maxUtteranceBytes = 64 << 10
)

type Options struct {
	Coordinator    *tripvoice.Coordinator
	Campaign       *campaign.Queue
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

type Server struct {
	coordinator *tripvoice.Coordinator
	campaign    *campaign.Queue
	logger      *slog.Logger
}

type turnResponse struct {
	Prompt string `json:"prompt"`
	Stage  string `json:"stage"`
}

type utteranceRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(opts Options) http.Handler {
	s := &Server{
		coordinator: opts.Coordinator,
		campaign:    opts.Campaign,
		logger:      opts.Logger,
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors(opts.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if s.campaign != nil {
		r.Post("/upload", s.Upload)
		r.Get("/status", s.Status)
	}
	if s.coordinator != nil {
		r.Get("/conversations", s.Conversations)
		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/", s.Conversation)
			r.Delete("/", s.DeleteConversation)
			r.Post("/start", s.Start)
			r.Post("/utterances", s.Utterance)
		})
	}
	return r
}

func cors(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (slices.Contains(origins, "*") || slices.Contains(origins, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Upload handles POST /upload with a multipart "file" field.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "A CSV file is required")
		s.logger.Warn("Upload: missing file", "err", err)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		s.writeError(w, http.StatusBadRequest, "Only .csv files are supported")
		return
	}
	numbers, err := campaign.ExtractPhoneNumbers(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid CSV file")
		s.logger.Warn("Upload: invalid csv", "err", err)
		return
	}
	if len(numbers) == 0 {
		s.writeError(w, http.StatusBadRequest, "No phone numbers found in CSV")
		return
	}

	switch err := s.campaign.Run(r.Context(), numbers); {
	case errors.Is(err, campaign.ErrRunning):
		s.writeError(w, http.StatusConflict, "A campaign is already running")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, "Failed to start campaign")
		s.logger.Error("Upload: campaign failed to start", "err", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"message": "Campaign started",
		"total":   len(numbers),
	})
}

// Status handles GET /status.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.campaign.Snapshot())
}

// Start handles POST /conversations/{id}/start.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turn, err := s.coordinator.Start(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to start conversation")
		s.logger.Error("Start failed", "conversation_id", id, "err", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newTurnResponse(turn))
}

// Utterance handles POST /conversations/{id}/utterances.
func (s *Server) Utterance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUtteranceBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var req utteranceRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		s.logger.Warn("Utterance: invalid request body", "conversation_id", id, "err", err)
		return
	}
	turn, err := s.coordinator.HandleUtterance(r.Context(), id, req.Text)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to handle utterance")
		s.logger.Error("Utterance failed", "conversation_id", id, "err", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newTurnResponse(turn))
}

// Conversation handles GET /conversations/{id}.
func (s *Server) Conversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.coordinator.Record(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to load conversation")
		s.logger.Error("Load conversation failed", "conversation_id", id, "err", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// Conversations handles GET /conversations.
func (s *Server) Conversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.coordinator.Conversations(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list conversations")
		s.logger.Error("List conversations failed", "err", err)
		return
	}
	slices.Sort(ids)
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": ids})
}

// DeleteConversation handles DELETE /conversations/{id}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.coordinator.Delete(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to delete conversation")
		s.logger.Error("Delete conversation failed", "conversation_id", id, "err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newTurnResponse(turn tripvoice.Turn) turnResponse {
	return turnResponse{Prompt: turn.Prompt, Stage: string(turn.Stage)}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("Response encode failed", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
