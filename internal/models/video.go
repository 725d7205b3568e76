package models

import (
	"fmt"
	"strings"
)

// Sentinel values substituted when the metadata service has nothing to offer.
const (
	UnknownTitle    = "Unknown Title"
	UnknownChannel  = "Unknown Channel"
	UnknownDuration = "Unknown"
)

// VideoMetadata is the descriptive information fetched once per request.
type VideoMetadata struct {
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Duration  string `json:"duration,omitempty"`
	ViewCount int64  `json:"view_count,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// UnknownMetadata returns the all-sentinel metadata used when the service fails.
func UnknownMetadata() VideoMetadata {
	return VideoMetadata{
		Title:    UnknownTitle,
		Channel:  UnknownChannel,
		Duration: UnknownDuration,
	}
}

// TranscriptEntry is one caption line with its start offset in seconds.
type TranscriptEntry struct {
	Start float64 `json:"start"`
	Text  string  `json:"text"`
}

// Transcript is an ordered list of caption entries for a single track.
type Transcript struct {
	VideoID   string            `json:"video_id"`
	Language  string            `json:"language"`
	Generated bool              `json:"generated"`
	Entries   []TranscriptEntry `json:"entries"`
}

// String renders the transcript as "[M:SS] text" lines joined by newlines.
func (t *Transcript) String() string {
	if t == nil {
		return ""
	}
	lines := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		lines = append(lines, fmt.Sprintf("[%s] %s", FormatOffset(e.Start), e.Text))
	}
	return strings.Join(lines, "\n")
}

// FormatOffset formats a start offset as M:SS. Minutes are not wrapped into hours.
func FormatOffset(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
