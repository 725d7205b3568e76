package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tubecritique "tubecritique/agents/tube-critique"
	"tubecritique/agents/tube-critique/youtube"
	"tubecritique/internal/models"
)

const (
	ServiceName = "TubeCritique AI API"
	Version     = "2.0.0"

	maxRequestBody = 64 << 10
)

// Service is the analysis pipeline as seen by the HTTP layer.
type Service interface {
	Analyze(ctx context.Context, rawURL string) (models.AnalysisResult, error)
	Stream(ctx context.Context, rawURL string) (<-chan tubecritique.Event, error)
	Metadata(ctx context.Context, videoID string) models.VideoMetadata
	Transcript(ctx context.Context, videoID string) (*models.Transcript, bool)
}

// Monitor serves the operational endpoints.
type Monitor interface {
	HealthHandler() http.HandlerFunc
	MetricsHandler() http.Handler
}

type Handler struct {
	service Service
	monitor Monitor
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewHandler returns the full HTTP surface, wrapped in request logging and
// CORS. Every analysis route is also served under /api for clients of the
// original deployment.
func NewHandler(service Service, monitor Monitor, allowedOrigins []string, logger *slog.Logger) http.Handler {
	h := &Handler{
		service: service,
		monitor: monitor,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	h.setupRoutes()

	return LoggingMiddleware(logger)(CORS(allowedOrigins)(h.mux))
}

func (h *Handler) setupRoutes() {
	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("GET /health", h.monitor.HealthHandler())
	h.mux.Handle("GET /metrics", h.monitor.MetricsHandler())

	for _, prefix := range []string{"", "/api"} {
		h.mux.HandleFunc("POST "+prefix+"/analyze", h.handleAnalyze)
		h.mux.HandleFunc("POST "+prefix+"/analyze/stream", h.handleAnalyzeStream)
		h.mux.HandleFunc("GET "+prefix+"/metadata/{videoId}", h.handleMetadata)
		h.mux.HandleFunc("GET "+prefix+"/transcript/{videoId}", h.handleTranscript)
	}
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status":  "ok",
		"service": ServiceName,
		"version": Version,
	}, http.StatusOK)
}

type analyzeRequest struct {
	VideoURL string `json:"videoUrl"`
	// LegacyVideoURL is the field name used by older clients.
	LegacyVideoURL string `json:"video_url"`
	Stream         bool   `json:"stream"`
}

func (req analyzeRequest) url() string {
	if strings.TrimSpace(req.VideoURL) != "" {
		return req.VideoURL
	}
	return req.LegacyVideoURL
}

// decodeAnalyzeRequest returns the request, or a message for the client when
// it is unusable.
func decodeAnalyzeRequest(r *http.Request) (analyzeRequest, string) {
	var req analyzeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		return req, "Invalid request body"
	}
	if strings.TrimSpace(req.url()) == "" {
		return req, "Please provide a valid YouTube URL"
	}
	return req, ""
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, problem := decodeAnalyzeRequest(r)
	if problem != "" {
		respondError(w, problem, http.StatusBadRequest)
		return
	}
	if req.Stream {
		h.streamAnalysis(w, r, req.url())
		return
	}

	result, err := h.service.Analyze(r.Context(), req.url())
	if err != nil {
		h.respondAnalysisError(w, r, err)
		return
	}
	respondJSON(w, result, http.StatusOK)
}

func (h *Handler) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	req, problem := decodeAnalyzeRequest(r)
	if problem != "" {
		respondError(w, problem, http.StatusBadRequest)
		return
	}
	h.streamAnalysis(w, r, req.url())
}

// streamAnalysis writes pipeline events as Server-Sent Events. Errors before
// the first event still get a regular status code; afterwards every failure
// is an "error" event.
func (h *Handler) streamAnalysis(w http.ResponseWriter, r *http.Request, rawURL string) {
	rc := http.NewResponseController(w)

	events, err := h.service.Stream(r.Context(), rawURL)
	if err != nil {
		h.respondAnalysisError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		if err := h.writeSSE(w, ev); err != nil {
			h.logger.Debug("client went away during stream", "request_id", RequestID(r.Context()), "error", err)
			return
		}
		if err := rc.Flush(); err != nil {
			h.logger.Debug("failed to flush SSE event", "error", err)
		}
		// Long analyses outlive the server write timeout otherwise.
		if err := rc.SetWriteDeadline(time.Now().Add(2 * time.Minute)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.logger.Debug("failed to reset write deadline", "error", err)
		}
	}
}

func (h *Handler) writeSSE(w io.Writer, ev tubecritique.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal SSE event", "status", ev.Status, "error", err)
		data, _ = json.Marshal(tubecritique.Event{Status: tubecritique.StatusError, Message: "failed to encode event"})
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")
	if !youtube.IsVideoID(videoID) {
		respondError(w, "Invalid video ID", http.StatusBadRequest)
		return
	}
	respondJSON(w, h.service.Metadata(r.Context(), videoID), http.StatusOK)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")
	if !youtube.IsVideoID(videoID) {
		respondError(w, "Invalid video ID", http.StatusBadRequest)
		return
	}

	transcript, ok := h.service.Transcript(r.Context(), videoID)
	if !ok {
		respondError(w, "Transcript not available", http.StatusNotFound)
		return
	}
	respondJSON(w, map[string]any{
		"videoId":    videoID,
		"language":   transcript.Language,
		"generated":  transcript.Generated,
		"transcript": transcript.String(),
	}, http.StatusOK)
}

// respondAnalysisError maps pipeline failures to status codes. Server-side
// failures never leak partial context.
func (h *Handler) respondAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	var analysisErr *tubecritique.AnalysisError
	errors.As(err, &analysisErr)

	switch {
	case errors.Is(err, tubecritique.ErrInvalidURL):
		respondError(w, "Invalid YouTube URL format", http.StatusBadRequest)

	case errors.Is(err, tubecritique.ErrNoContentAvailable):
		body := map[string]string{"error": "Could not analyze video. No transcript available and video processing failed."}
		if analysisErr != nil && analysisErr.Partial != nil {
			body["videoTitle"] = analysisErr.Partial.VideoTitle
			body["videoChannel"] = analysisErr.Partial.VideoChannel
			body["videoUrl"] = analysisErr.Partial.VideoURL
		}
		respondJSON(w, body, http.StatusBadRequest)

	case errors.Is(err, tubecritique.ErrUnparsableResponse):
		respondError(w, "Failed to parse AI response", http.StatusInternalServerError)

	case analysisErr != nil && analysisErr.Quota():
		respondError(w, "API rate limit reached. Please wait and try again.", http.StatusTooManyRequests)

	case errors.Is(err, tubecritique.ErrModelInvocation):
		respondError(w, "AI analysis failed. Please try again.", http.StatusInternalServerError)

	case errors.Is(err, context.Canceled):
		// Client is gone; nothing useful can be written.
		h.logger.Debug("request canceled", "request_id", RequestID(r.Context()))

	default:
		h.logger.Error("unexpected analysis error", "request_id", RequestID(r.Context()), "error", err)
		respondError(w, "An unexpected error occurred", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, map[string]string{"error": message}, statusCode)
}
