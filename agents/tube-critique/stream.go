package tubecritique

import (
	"context"
	"errors"
	"strings"
	"time"

	"tubecritique/agents/tube-critique/youtube"
	"tubecritique/internal/models"
	"tubecritique/shared/ai"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type EventStatus string

const (
	StatusStarted    EventStatus = "started"
	StatusMetadata   EventStatus = "metadata"
	StatusProcessing EventStatus = "processing"
	StatusStreaming  EventStatus = "streaming"
	StatusComplete   EventStatus = "complete"
	StatusError      EventStatus = "error"
)

// Event is one progress report of a streamed analysis. Data carries the
// metadata for StatusMetadata, the result for StatusComplete and the partial
// video context, if any, for StatusError.
type Event struct {
	Status  EventStatus `json:"status"`
	Message string      `json:"message,omitempty"`
	Chunk   string      `json:"chunk,omitempty"`
	Data    any         `json:"data,omitempty"`
	Err     error       `json:"-"`
}

// Terminal reports whether no further events follow.
func (e Event) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}

var errStopped = errors.New("stream consumer gone")

// Stream runs the pipeline in the background and reports progress on the
// returned channel, which is closed after the terminal event or as soon as ctx
// is canceled. An invalid URL is rejected before anything is started.
func (p *Pipeline) Stream(ctx context.Context, rawURL string) (<-chan Event, error) {
	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, p.fail(trace.SpanFromContext(ctx), &AnalysisError{Kind: ErrInvalidURL, Err: err}, time.Now())
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		r := &streamRun{p: p, ctx: ctx, events: events, videoID: videoID, start: time.Now()}
		r.run()
	}()
	return events, nil
}

type streamRun struct {
	p       *Pipeline
	ctx     context.Context
	events  chan<- Event
	videoID string
	start   time.Time
	emitted int
}

// send delivers ev unless the consumer has gone away.
func (r *streamRun) send(ev Event) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.events <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// sendError records err and reports it as the terminal event. Partial video
// context, when known, goes out as the event data.
func (r *streamRun) sendError(span trace.Span, err error) {
	r.p.fail(span, err, r.start)
	ev := Event{Status: StatusError, Message: err.Error(), Err: err}
	var ae *AnalysisError
	if errors.As(err, &ae) && ae.Partial != nil {
		ev.Data = ae.Partial
	}
	r.send(ev)
}

func (r *streamRun) run() {
	p := r.p
	ctx, span := p.tracer.Start(r.ctx, "tubecritique.Stream", trace.WithAttributes(attribute.String("video.id", r.videoID)))
	defer span.End()
	r.ctx = ctx

	videoURL := youtube.CanonicalURL(r.videoID)
	p.logger.Info("streamed analysis started", "video_id", r.videoID)

	if !r.send(Event{Status: StatusStarted, Message: "Fetching video metadata..."}) {
		return
	}
	meta := p.fetchMetadata(ctx, r.videoID)
	if !r.send(Event{Status: StatusMetadata, Data: meta}) {
		return
	}
	if !r.send(Event{Status: StatusProcessing, Message: "Analyzing video with AI..."}) {
		return
	}

	mode := ModeNative
	text, sources, err := r.streamModel(ai.Request{
		VideoURI: videoURL,
		Prompt:   ai.BuildAnalysisPrompt(meta, nil, p.maxTranscriptChars),
	})
	if ctx.Err() != nil || errors.Is(err, errStopped) {
		return
	}

	if err != nil {
		partial := &Partial{VideoTitle: meta.Title, VideoChannel: meta.Channel, VideoURL: videoURL}
		if !p.streamFallback || r.emitted > 0 {
			r.sendError(span, &AnalysisError{Kind: ErrModelInvocation, Partial: partial, Err: err})
			return
		}

		p.logger.Warn("native video stream failed, trying transcript", "video_id", r.videoID, "error", err)
		p.observer.RecordFallback(err)
		transcript, ok := p.fetchTranscript(ctx, r.videoID)
		if ctx.Err() != nil {
			return
		}
		if !ok {
			r.sendError(span, &AnalysisError{Kind: ErrNoContentAvailable, Partial: partial, Err: err})
			return
		}
		if !r.send(Event{Status: StatusProcessing, Message: "Video processing failed, analyzing transcript..."}) {
			return
		}

		mode = ModeTranscript
		text, sources, err = r.streamModel(ai.Request{
			Prompt: ai.BuildAnalysisPrompt(meta, transcript, p.maxTranscriptChars),
		})
		if ctx.Err() != nil || errors.Is(err, errStopped) {
			return
		}
		if err != nil {
			r.sendError(span, &AnalysisError{Kind: ErrModelInvocation, Partial: partial, Err: err})
			return
		}
	}

	analysis, err := ai.ParseAnalysis(text)
	if err != nil {
		r.sendError(span, &AnalysisError{Kind: ErrUnparsableResponse, Err: err})
		return
	}
	result := Assemble(AssembleInput{
		VideoID:  r.videoID,
		VideoURL: videoURL,
		Metadata: meta,
		Analysis: analysis,
		Sources:  sources,
		Now:      p.now(),
	})

	if r.send(Event{Status: StatusComplete, Data: result}) {
		elapsed := time.Since(r.start)
		p.observer.RecordSuccess(mode, elapsed)
		p.logger.Info("streamed analysis complete", "video_id", r.videoID, "mode", mode, "chunks", r.emitted, "duration", elapsed)
	}
}

// streamModel forwards every text chunk as a streaming event and returns the
// accumulated text. A stream that produced no text fails with
// ai.ErrEmptyResponse.
func (r *streamRun) streamModel(req ai.Request) (string, []models.GroundingSource, error) {
	ctx, span := r.p.tracer.Start(r.ctx, "ai.Stream", trace.WithAttributes(attribute.Bool("ai.native", req.Native())))
	defer span.End()

	var (
		text    strings.Builder
		sources []models.GroundingSource
	)
	for chunk, err := range r.p.model.Stream(ctx, req) {
		if err != nil {
			span.RecordError(err)
			return "", nil, err
		}
		sources = append(sources, chunk.Sources...)
		if chunk.Text == "" {
			continue
		}
		text.WriteString(chunk.Text)
		if !r.send(Event{Status: StatusStreaming, Chunk: chunk.Text}) {
			return "", nil, errStopped
		}
		r.emitted++
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", nil, ai.ErrEmptyResponse
	}
	span.SetAttributes(attribute.Int("ai.chars", text.Len()))
	return text.String(), sources, nil
}
