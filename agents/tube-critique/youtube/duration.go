package youtube

import (
	"fmt"
	"regexp"
	"strconv"

	"tubecritique/internal/models"
)

var isoDurationRE = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// parseDurationSeconds parses the ISO 8601 durations returned by the Data API
// (e.g. "PT1M30S", "PT45S", "PT2H15M30S"). Unparseable input yields 0.
func parseDurationSeconds(duration string) int {
	if duration == "" {
		return 0
	}

	matches := isoDurationRE.FindStringSubmatch(duration)
	if len(matches) == 0 {
		return 0
	}

	var totalSeconds int
	for i, unit := range []int{3600, 60, 1} {
		if matches[i+1] == "" {
			continue
		}
		if n, err := strconv.Atoi(matches[i+1]); err == nil {
			totalSeconds += n * unit
		}
	}

	return totalSeconds
}

// FormatDuration renders seconds as H:MM:SS from one hour up, M:SS below,
// and "Unknown" when the duration is missing.
func FormatDuration(totalSeconds int) string {
	if totalSeconds <= 0 {
		return models.UnknownDuration
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
