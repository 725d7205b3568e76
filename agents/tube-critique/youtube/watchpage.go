package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

const (
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	maxWatchPage    = 6 << 20
	maxTimedTextXML = 4 << 20
)

var playerResponseRE = regexp.MustCompile(`ytInitialPlayerResponse\s*=\s*`)

// playerResponse is the subset of ytInitialPlayerResponse we read.
type playerResponse struct {
	VideoDetails *struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
		ViewCount     string `json:"viewCount"`
		Thumbnail     struct {
			Thumbnails []struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

func (p *playerResponse) playabilityReason() string {
	if p.PlayabilityStatus == nil {
		return "no video details"
	}
	if p.PlayabilityStatus.Reason != "" {
		return p.PlayabilityStatus.Reason
	}
	return p.PlayabilityStatus.Status
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

func (t captionTrack) generated() bool {
	return t.Kind == "asr"
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, req.URL.Host, snippet)
	}
	return resp, nil
}

// fetchPlayerResponse downloads the watch page and decodes the embedded
// ytInitialPlayerResponse object.
func (c *Client) fetchPlayerResponse(ctx context.Context, videoID string) (*playerResponse, error) {
	resp, err := c.get(ctx, c.baseURL+"/watch?v="+videoID)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWatchPage))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}

	loc := playerResponseRE.FindIndex(body)
	if loc == nil {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	raw := extractJSONObject(body[loc[1]:])
	if raw == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &pr, nil
}

// extractJSONObject returns the balanced {...} object at the start of b,
// skipping braces inside string literals.
func extractJSONObject(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
