package tubecritique

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"tubecritique/internal/models"
	"tubecritique/shared/ai"
)

var errNative = errors.New("video processing is not supported for this video")

type fakeMetadata struct {
	meta  models.VideoMetadata
	calls int
}

func (f *fakeMetadata) FetchMetadata(_ context.Context, _ string) models.VideoMetadata {
	f.calls++
	return f.meta
}

type fakeTranscripts struct {
	transcript *models.Transcript
	calls      int
}

func (f *fakeTranscripts) FetchTranscript(_ context.Context, videoID string) (*models.Transcript, bool) {
	f.calls++
	if f.transcript == nil {
		return nil, false
	}
	return f.transcript, true
}

// streamStep is one element yielded by a fake stream.
type streamStep struct {
	text string
	err  error
}

// fakeModel answers native and transcript requests separately and records
// every request it sees.
type fakeModel struct {
	mu sync.Mutex

	native     ai.Result
	transcript ai.Result

	nativeStream     []streamStep
	transcriptStream []streamStep
	// block, when set, is waited on before each streamed chunk.
	block chan struct{}
	// onTranscript, when set, runs before a transcript request is answered.
	onTranscript func()

	requests []ai.Request
}

func (f *fakeModel) record(req ai.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeModel) Requests() []ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.Request(nil), f.requests...)
}

func (f *fakeModel) Generate(_ context.Context, req ai.Request) ai.Result {
	f.record(req)
	if req.Native() {
		return f.native
	}
	if f.onTranscript != nil {
		f.onTranscript()
	}
	return f.transcript
}

func (f *fakeModel) Stream(ctx context.Context, req ai.Request) iter.Seq2[ai.Chunk, error] {
	f.record(req)
	steps := f.transcriptStream
	if req.Native() {
		steps = f.nativeStream
	}
	return func(yield func(ai.Chunk, error) bool) {
		for _, step := range steps {
			if f.block != nil {
				select {
				case <-f.block:
				case <-ctx.Done():
					yield(ai.Chunk{}, ctx.Err())
					return
				}
			}
			if step.err != nil {
				yield(ai.Chunk{}, step.err)
				return
			}
			if !yield(ai.Chunk{Text: step.text}, nil) {
				return
			}
		}
	}
}

type fakeObserver struct {
	mu        sync.Mutex
	successes []string
	fallbacks int
	failures  []string
}

func (f *fakeObserver) RecordSuccess(mode string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, mode)
}

func (f *fakeObserver) RecordFallback(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks++
}

func (f *fakeObserver) RecordFailure(kind string, _ error, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, kind)
}

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type harness struct {
	metadata    *fakeMetadata
	transcripts *fakeTranscripts
	model       *fakeModel
	observer    *fakeObserver
}

func newHarness() *harness {
	return &harness{
		metadata: &fakeMetadata{meta: models.VideoMetadata{
			Title:     "Building AI Products",
			Channel:   "Lenny's Podcast",
			Duration:  "1:02:05",
			ViewCount: 12345,
			Thumbnail: "https://i.ytimg.com/vi/abc12345678/maxresdefault.jpg",
		}},
		transcripts: &fakeTranscripts{},
		model:       &fakeModel{},
		observer:    &fakeObserver{},
	}
}

func (h *harness) pipeline(opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	if opts.MaxTranscriptChars == 0 {
		opts.MaxTranscriptChars = 50000
	}
	return New(Deps{
		Metadata:    h.metadata,
		Transcripts: h.transcripts,
		Model:       h.model,
		Observer:    h.observer,
	}, opts)
}

const validAnalysis = `{
	"title": "How to Build AI Products",
	"speaker": "Jane Doe",
	"summary": "A talk about shipping AI.",
	"scores": {"ai": 5, "pm": 4, "growth": 3},
	"actionItems": [
		{"task": "Write evals", "priority": "high"},
		{"task": "Ship weekly", "priority": "medium"}
	],
	"customField": "kept"
}`

func sampleTranscript() *models.Transcript {
	return &models.Transcript{
		VideoID:  "abc12345678",
		Language: "en",
		Entries: []models.TranscriptEntry{
			{Start: 0, Text: "welcome to the show"},
			{Start: 75, Text: "today we talk about evals"},
		},
	}
}
