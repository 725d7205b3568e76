package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"tubecritique/internal/models"
	"tubecritique/shared/config"

	"google.golang.org/genai"
)

// VideoMIMEType is the MIME type sent with a video reference part.
const VideoMIMEType = "video/*"

// ErrEmptyResponse is returned when the model answers without any text, which
// usually means content filtering or an inaccessible video.
var ErrEmptyResponse = errors.New("empty response from model")

// Request is a single model invocation. When VideoURI is set the model is
// asked to ingest the video directly by reference.
type Request struct {
	VideoURI string
	Prompt   string
}

// Native reports whether the request carries a video reference.
func (r Request) Native() bool {
	return r.VideoURI != ""
}

// Result is the outcome of a blocking invocation. Exactly one of Text or Err
// is meaningful.
type Result struct {
	Text    string
	Sources []models.GroundingSource
	Err     error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// Chunk is one increment of a streamed invocation.
type Chunk struct {
	Text    string
	Sources []models.GroundingSource
}

type Analyzer struct {
	client    *genai.Client
	model     string
	grounding bool
	logger    *slog.Logger
}

func NewAnalyzer(ctx context.Context, cfg *config.AIConfig, logger *slog.Logger) (*Analyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Analyzer{
		client:    client,
		model:     cfg.Model,
		grounding: cfg.SearchGrounding,
		logger:    logger,
	}, nil
}

// Generate runs a blocking invocation and returns its outcome as a value.
func (a *Analyzer) Generate(ctx context.Context, req Request) Result {
	a.logger.Debug("generating content", "model", a.model, "native", req.Native(), "prompt_chars", len(req.Prompt))

	resp, err := a.client.Models.GenerateContent(ctx, a.model, buildContents(req), a.generateConfig())
	if err != nil {
		return Result{Err: fmt.Errorf("generate content: %w", err)}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Result{Err: ErrEmptyResponse}
	}

	a.logger.Debug("model response received", "chars", len(text))
	return Result{Text: text, Sources: groundingSources(resp)}
}

// Stream runs a streamed invocation. Iteration stops after the first error.
func (a *Analyzer) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		a.logger.Debug("streaming content", "model", a.model, "native", req.Native())

		for resp, err := range a.client.Models.GenerateContentStream(ctx, a.model, buildContents(req), a.generateConfig()) {
			if err != nil {
				yield(Chunk{}, fmt.Errorf("stream content: %w", err))
				return
			}
			chunk := Chunk{Text: resp.Text(), Sources: groundingSources(resp)}
			if chunk.Text == "" && len(chunk.Sources) == 0 {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (a *Analyzer) generateConfig() *genai.GenerateContentConfig {
	if !a.grounding {
		return nil
	}
	return &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
}

func buildContents(req Request) []*genai.Content {
	var parts []*genai.Part
	if req.Native() {
		parts = append(parts, genai.NewPartFromURI(req.VideoURI, VideoMIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	return []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
}

func groundingSources(resp *genai.GenerateContentResponse) []models.GroundingSource {
	if resp == nil {
		return nil
	}
	var sources []models.GroundingSource
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			sources = append(sources, models.GroundingSource{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return sources
}

// IsQuotaError reports whether err looks like upstream quota exhaustion or
// rate limiting.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "exhausted")
}
