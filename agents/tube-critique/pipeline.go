package tubecritique

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"tubecritique/agents/tube-critique/youtube"
	"tubecritique/internal/models"
	"tubecritique/shared/ai"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Analysis modes, reported to the observer on success.
const (
	ModeNative     = "native"
	ModeTranscript = "transcript"
)

type MetadataSource interface {
	FetchMetadata(ctx context.Context, videoID string) models.VideoMetadata
}

type TranscriptSource interface {
	FetchTranscript(ctx context.Context, videoID string) (*models.Transcript, bool)
}

// Generator invokes the model, either blocking or incrementally.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) ai.Result
	Stream(ctx context.Context, req ai.Request) iter.Seq2[ai.Chunk, error]
}

// Observer receives pipeline outcomes; monitoring.Monitor implements it.
type Observer interface {
	RecordSuccess(mode string, duration time.Duration)
	RecordFallback(cause error)
	RecordFailure(kind string, err error, duration time.Duration)
}

type Deps struct {
	Metadata    MetadataSource
	Transcripts TranscriptSource
	Model       Generator
	Observer    Observer
	Logger      *slog.Logger
}

type Options struct {
	MaxTranscriptChars int
	// StreamFallback lets the streaming variant retry with the transcript
	// when the native stream fails before emitting any chunk.
	StreamFallback bool
	Now            func() time.Time
}

// Pipeline analyzes a single video per call. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	metadata    MetadataSource
	transcripts TranscriptSource
	model       Generator
	observer    Observer
	logger      *slog.Logger
	tracer      trace.Tracer

	maxTranscriptChars int
	streamFallback     bool
	now                func() time.Time
}

func New(deps Deps, opts Options) *Pipeline {
	p := &Pipeline{
		metadata:           deps.Metadata,
		transcripts:        deps.Transcripts,
		model:              deps.Model,
		observer:           deps.Observer,
		logger:             deps.Logger,
		tracer:             otel.Tracer("tubecritique"),
		maxTranscriptChars: opts.MaxTranscriptChars,
		streamFallback:     opts.StreamFallback,
		now:                opts.Now,
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Analyze runs the blocking pipeline: metadata, native video analysis, and on
// any model failure exactly one transcript-based attempt.
func (p *Pipeline) Analyze(ctx context.Context, rawURL string) (models.AnalysisResult, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "tubecritique.Analyze")
	defer span.End()

	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, p.fail(span, &AnalysisError{Kind: ErrInvalidURL, Err: err}, start)
	}
	videoURL := youtube.CanonicalURL(videoID)
	span.SetAttributes(attribute.String("video.id", videoID))
	p.logger.Info("analysis started", "video_id", videoID)

	meta := p.fetchMetadata(ctx, videoID)
	p.logger.Info("video metadata", "video_id", videoID, "title", meta.Title, "channel", meta.Channel)

	mode := ModeNative
	result := p.generate(ctx, ai.Request{
		VideoURI: videoURL,
		Prompt:   ai.BuildAnalysisPrompt(meta, nil, p.maxTranscriptChars),
	})

	if result.Failed() {
		if err := ctx.Err(); err != nil {
			return nil, p.fail(span, err, start)
		}
		p.logger.Warn("native video analysis failed, trying transcript", "video_id", videoID, "error", result.Err)
		p.observer.RecordFallback(result.Err)

		partial := &Partial{VideoTitle: meta.Title, VideoChannel: meta.Channel, VideoURL: videoURL}
		transcript, ok := p.fetchTranscript(ctx, videoID)
		if !ok {
			if err := ctx.Err(); err != nil {
				return nil, p.fail(span, err, start)
			}
			return nil, p.fail(span, &AnalysisError{Kind: ErrNoContentAvailable, Partial: partial, Err: result.Err}, start)
		}

		mode = ModeTranscript
		result = p.generate(ctx, ai.Request{
			Prompt: ai.BuildAnalysisPrompt(meta, transcript, p.maxTranscriptChars),
		})
		if result.Failed() {
			if err := ctx.Err(); err != nil {
				return nil, p.fail(span, err, start)
			}
			return nil, p.fail(span, &AnalysisError{Kind: ErrModelInvocation, Partial: partial, Err: result.Err}, start)
		}
	}

	analysis, err := ai.ParseAnalysis(result.Text)
	if err != nil {
		return nil, p.fail(span, &AnalysisError{Kind: ErrUnparsableResponse, Err: err}, start)
	}

	out := Assemble(AssembleInput{
		VideoID:  videoID,
		VideoURL: videoURL,
		Metadata: meta,
		Analysis: analysis,
		Sources:  result.Sources,
		Now:      p.now(),
	})

	elapsed := time.Since(start)
	p.observer.RecordSuccess(mode, elapsed)
	p.logger.Info("analysis complete", "video_id", videoID, "mode", mode, "title", out.Title(), "duration", elapsed)
	return out, nil
}

// Metadata exposes the metadata fetch on its own.
func (p *Pipeline) Metadata(ctx context.Context, videoID string) models.VideoMetadata {
	return p.fetchMetadata(ctx, videoID)
}

// Transcript exposes the transcript fetch on its own.
func (p *Pipeline) Transcript(ctx context.Context, videoID string) (*models.Transcript, bool) {
	return p.fetchTranscript(ctx, videoID)
}

func (p *Pipeline) fetchMetadata(ctx context.Context, videoID string) models.VideoMetadata {
	ctx, span := p.tracer.Start(ctx, "youtube.FetchMetadata")
	defer span.End()
	return p.metadata.FetchMetadata(ctx, videoID)
}

func (p *Pipeline) fetchTranscript(ctx context.Context, videoID string) (*models.Transcript, bool) {
	ctx, span := p.tracer.Start(ctx, "youtube.FetchTranscript")
	defer span.End()

	transcript, ok := p.transcripts.FetchTranscript(ctx, videoID)
	span.SetAttributes(attribute.Bool("transcript.available", ok))
	return transcript, ok
}

func (p *Pipeline) generate(ctx context.Context, req ai.Request) ai.Result {
	ctx, span := p.tracer.Start(ctx, "ai.Generate", trace.WithAttributes(attribute.Bool("ai.native", req.Native())))
	defer span.End()

	result := p.model.Generate(ctx, req)
	if result.Failed() {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "model invocation failed")
	}
	return result
}

func (p *Pipeline) fail(span trace.Span, err error, start time.Time) error {
	kind := failureKind(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	p.observer.RecordFailure(kind, err, time.Since(start))
	if kind == "canceled" {
		p.logger.Info("analysis canceled", "error", err)
		return err
	}
	p.logger.Error("analysis failed", "kind", kind, "error", err)
	return err
}

type nopObserver struct{}

func (nopObserver) RecordSuccess(string, time.Duration)        {}
func (nopObserver) RecordFallback(error)                       {}
func (nopObserver) RecordFailure(string, error, time.Duration) {}
