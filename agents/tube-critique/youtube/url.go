package youtube

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned when no known YouTube URL shape matches.
var ErrInvalidURL = errors.New("invalid YouTube URL format")

// Matchers are tried in order; the first capture wins.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?(?:[^#]*&)?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/live/([a-zA-Z0-9_-]{11})`),
}

var videoIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ExtractVideoID returns the 11-character video id contained in a watch,
// short, embed, shorts or live URL.
func ExtractVideoID(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); len(m) == 2 {
			return m[1], nil
		}
	}
	return "", ErrInvalidURL
}

// IsVideoID reports whether s has the shape of a bare video id.
func IsVideoID(s string) bool {
	return videoIDRE.MatchString(s)
}

// CanonicalURL is the watch URL used internally regardless of input shape.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
