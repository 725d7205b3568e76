package youtube

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"tubecritique/internal/models"
)

var (
	ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")
	ErrNoTranscriptFound   = errors.New("no transcript found")
)

type timedText struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

// FetchTranscript returns the best available transcript, or false when none
// can be obtained. Errors never escape; they are only logged.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) (*models.Transcript, bool) {
	transcript, err := c.fetchTranscript(ctx, videoID)
	if err != nil {
		if errors.Is(err, ErrTranscriptsDisabled) || errors.Is(err, ErrNoTranscriptFound) {
			c.logger.Info("transcript not available", "video_id", videoID, "reason", err)
		} else {
			c.logger.Warn("transcript fetch failed", "video_id", videoID, "error", err)
		}
		return nil, false
	}

	c.logger.Info("transcript fetched", "video_id", videoID,
		"language", transcript.Language, "generated", transcript.Generated, "lines", len(transcript.Entries))
	return transcript, true
}

func (c *Client) fetchTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	pr, err := c.fetchPlayerResponse(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if pr.Captions == nil {
		return nil, ErrTranscriptsDisabled
	}

	track, ok := selectTrack(pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, c.languages)
	if !ok {
		return nil, ErrNoTranscriptFound
	}

	entries, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s track is empty", ErrNoTranscriptFound, track.LanguageCode)
	}

	return &models.Transcript{
		VideoID:   videoID,
		Language:  track.LanguageCode,
		Generated: track.generated(),
		Entries:   entries,
	}, nil
}

// selectTrack picks, in order: a manual track in a preferred language, a
// generated track in a preferred language, then any manual track, then any
// generated track. Preferred languages are tried in the order given.
func selectTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" {
			usable = append(usable, t)
		}
	}

	for _, generated := range []bool{false, true} {
		for _, lang := range languages {
			for _, t := range usable {
				if t.generated() == generated && t.LanguageCode == lang {
					return t, true
				}
			}
		}
	}
	for _, generated := range []bool{false, true} {
		for _, t := range usable {
			if t.generated() == generated {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}

func (c *Client) fetchTimedText(ctx context.Context, url string) ([]models.TranscriptEntry, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTimedTextXML))
	if err != nil {
		return nil, fmt.Errorf("read timedtext: %w", err)
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]models.TranscriptEntry, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	entries := make([]models.TranscriptEntry, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		// Caption text arrives entity-encoded a second time (&amp;#39;).
		text := html.UnescapeString(line.Text)
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(line.Start, 64)
		entries = append(entries, models.TranscriptEntry{Start: start, Text: text})
	}
	return entries, nil
}
