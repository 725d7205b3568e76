package tubecritique

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tubecritique/internal/models"
	"tubecritique/shared/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event channel was not closed")
		}
	}
}

func statuses(events []Event) []EventStatus {
	out := make([]EventStatus, len(events))
	for i, ev := range events {
		out[i] = ev.Status
	}
	return out
}

func splitChunks(s string, n int) []streamStep {
	var steps []streamStep
	for len(s) > n {
		steps = append(steps, streamStep{text: s[:n]})
		s = s[n:]
	}
	return append(steps, streamStep{text: s})
}

func TestStreamSuccess(t *testing.T) {
	h := newHarness()
	h.model.nativeStream = []streamStep{{text: "```json\n"}, {text: validAnalysis[:40]}, {text: ""}, {text: validAnalysis[40:]}, {text: "\n```"}}

	events, err := h.pipeline(Options{}).Stream(context.Background(), "https://youtu.be/abc12345678")
	require.NoError(t, err)
	got := collect(t, events)

	assert.Equal(t, []EventStatus{
		StatusStarted, StatusMetadata, StatusProcessing,
		StatusStreaming, StatusStreaming, StatusStreaming, StatusStreaming,
		StatusComplete,
	}, statuses(got))

	assert.Equal(t, "Fetching video metadata...", got[0].Message)
	assert.Equal(t, h.metadata.meta, got[1].Data)
	assert.Equal(t, "```json\n", got[3].Chunk)

	result, ok := got[len(got)-1].Data.(models.AnalysisResult)
	require.True(t, ok, "complete event carries the result")
	assert.Equal(t, "abc12345678_1773500966", result.ID())
	assert.Equal(t, "Jane Doe", result.Speaker())

	items := result.ActionItems()
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, false, item.(map[string]any)["completed"])
	}
	assert.Equal(t, []string{ModeNative}, h.observer.successes)
}

func TestStreamInvalidURL(t *testing.T) {
	h := newHarness()
	events, err := h.pipeline(Options{}).Stream(context.Background(), "https://example.com/video")

	assert.Nil(t, events)
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Zero(t, h.metadata.calls)
	assert.Empty(t, h.model.Requests())
}

func TestStreamModelFailureWithoutFallback(t *testing.T) {
	h := newHarness()
	h.model.nativeStream = []streamStep{{err: errNative}}
	h.transcripts.transcript = sampleTranscript()

	events, err := h.pipeline(Options{}).Stream(context.Background(), "https://youtu.be/abc12345678")
	require.NoError(t, err)
	got := collect(t, events)

	assert.Equal(t, []EventStatus{StatusStarted, StatusMetadata, StatusProcessing, StatusError}, statuses(got))
	last := got[len(got)-1]
	assert.ErrorIs(t, last.Err, ErrModelInvocation)
	assert.Contains(t, last.Message, errNative.Error())
	assert.Zero(t, h.transcripts.calls)
	assert.Len(t, h.model.Requests(), 1)
}

func TestStreamFallback(t *testing.T) {
	h := newHarness()
	h.model.nativeStream = []streamStep{{err: errNative}}
	h.model.transcriptStream = splitChunks(validAnalysis, 64)
	h.transcripts.transcript = sampleTranscript()

	events, err := h.pipeline(Options{StreamFallback: true}).Stream(context.Background(), "https://youtu.be/abc12345678")
	require.NoError(t, err)
	got := collect(t, events)

	require.GreaterOrEqual(t, len(got), 6)
	assert.Equal(t, []EventStatus{StatusStarted, StatusMetadata, StatusProcessing, StatusProcessing}, statuses(got[:4]))
	assert.Equal(t, StatusComplete, got[len(got)-1].Status)
	for _, ev := range got[4 : len(got)-1] {
		assert.Equal(t, StatusStreaming, ev.Status)
	}

	requests := h.model.Requests()
	require.Len(t, requests, 2)
	assert.Contains(t, requests[1].Prompt, "=== TRANSCRIPT ===")
	assert.Equal(t, []string{ModeTranscript}, h.observer.successes)
}

func TestStreamFallbackNoContent(t *testing.T) {
	h := newHarness()
	h.model.nativeStream = []streamStep{{err: errNative}}

	events, err := h.pipeline(Options{StreamFallback: true}).Stream(context.Background(), "https://youtu.be/abc12345678")
	require.NoError(t, err)
	got := collect(t, events)

	last := got[len(got)-1]
	assert.Equal(t, StatusError, last.Status)
	assert.ErrorIs(t, last.Err, ErrNoContentAvailable)

	var analysisErr *AnalysisError
	require.ErrorAs(t, last.Err, &analysisErr)
	assert.Equal(t, "Building AI Products", analysisErr.Partial.VideoTitle)

	partial, ok := last.Data.(*Partial)
	require.True(t, ok, "error event data = %T, want *Partial", last.Data)
	assert.Equal(t, "Lenny's Podcast", partial.VideoChannel)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc12345678", partial.VideoURL)

	data, err := json.Marshal(last)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"videoTitle":"Building AI Products"`)
}

func TestStreamNoFallbackAfterChunks(t *testing.T) {
	h := newHarness()
	h.model.nativeStream = []streamStep{{text: `{"title": "partial`}, {err: errors.New("connection reset")}}
	h.transcripts.transcript = sampleTranscript()

	events, err := h.pipeline(Options{StreamFallback: true}).Stream(context.Background(), "https://youtu.be/abc12345678")
	require.NoError(t, err)
	got := collect(t, events)

	assert.Equal(t, []EventStatus{StatusStarted, StatusMetadata, StatusProcessing, StatusStreaming, StatusError}, statuses(got))
	assert.Zero(t, h.transcripts.calls)
}

func TestStreamEmptyOutput(t *testing.T) {
	h := newHarness()
	h.model.nativeStream = []streamStep{{text: "  "}}

	events, err := h.pipeline(Options{}).Stream(context.Background(), "https://youtu.be/abc12345678")
	require.NoError(t, err)
	got := collect(t, events)

	last := got[len(got)-1]
	assert.Equal(t, StatusError, last.Status)
	assert.ErrorIs(t, last.Err, ai.ErrEmptyResponse)
}

func TestStreamUnparsable(t *testing.T) {
	h := newHarness()
	h.model.nativeStream = []streamStep{{text: "no json "}, {text: "here"}}

	events, err := h.pipeline(Options{}).Stream(context.Background(), "https://youtu.be/abc12345678")
	require.NoError(t, err)
	got := collect(t, events)

	last := got[len(got)-1]
	assert.Equal(t, StatusError, last.Status)
	assert.ErrorIs(t, last.Err, ErrUnparsableResponse)
	assert.Nil(t, last.Data)
	assert.Equal(t, []string{"unparsable_response"}, h.observer.failures)
}

func TestStreamCancellationClosesChannel(t *testing.T) {
	h := newHarness()
	h.model.block = make(chan struct{})
	h.model.nativeStream = splitChunks(validAnalysis, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := h.pipeline(Options{}).Stream(ctx, "https://youtu.be/abc12345678")
	require.NoError(t, err)

	for _, want := range []EventStatus{StatusStarted, StatusMetadata, StatusProcessing} {
		ev := <-events
		require.Equal(t, want, ev.Status)
	}
	h.model.block <- struct{}{}
	ev := <-events
	require.Equal(t, StatusStreaming, ev.Status)

	cancel()
	for _, ev := range collect(t, events) {
		assert.NotEqual(t, StatusComplete, ev.Status)
	}
	assert.Empty(t, h.observer.successes)
}

func TestStreamConsumerStopsReading(t *testing.T) {
	h := newHarness()
	h.model.nativeStream = splitChunks(validAnalysis, 8)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.pipeline(Options{}).Stream(ctx, "https://youtu.be/abc12345678")
	require.NoError(t, err)

	<-events
	cancel()

	// Events after cancellation may be dropped, but the channel must close.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel was not closed after cancellation")
		}
	}
}
