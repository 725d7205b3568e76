package tubecritique

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"tubecritique/internal/models"
)

type AssembleInput struct {
	VideoID  string
	VideoURL string
	Metadata models.VideoMetadata
	Analysis map[string]any
	Sources  []models.GroundingSource
	Now      time.Time
}

// Assemble merges the parsed analysis with the request context. The analysis
// is spread first, so id, url and timestamp always win; title, speaker and
// duration come from metadata only when the model left them out.
func Assemble(in AssembleInput) models.AnalysisResult {
	result := make(models.AnalysisResult, len(in.Analysis)+8)
	maps.Copy(result, in.Analysis)

	result[models.FieldID] = fmt.Sprintf("%s_%d", in.VideoID, in.Now.Unix())
	result[models.FieldURL] = in.VideoURL
	result[models.FieldTimestamp] = in.Now.UnixMilli()

	if absent(result[models.FieldTitle]) {
		result[models.FieldTitle] = in.Metadata.Title
	}
	if absent(result[models.FieldSpeaker]) {
		result[models.FieldSpeaker] = in.Metadata.Channel
	}
	if absent(result[models.FieldDuration]) {
		result[models.FieldDuration] = in.Metadata.Duration
	}

	result[models.FieldScores] = clampScores(result[models.FieldScores])
	result[models.FieldActionItems] = openActionItems(result[models.FieldActionItems])

	if in.Metadata.Thumbnail != "" {
		result[models.FieldThumbnail] = in.Metadata.Thumbnail
	}
	if in.Metadata.ViewCount > 0 {
		result[models.FieldViewCount] = in.Metadata.ViewCount
	}
	if len(in.Sources) > 0 {
		result[models.FieldGroundingSources] = in.Sources
	}

	return result
}

func absent(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// clampScores rounds each rubric axis to an integer in [MinScore, MaxScore].
// Numeric strings are accepted. Missing or non-numeric axes get MinScore;
// extra keys are kept.
func clampScores(v any) map[string]any {
	scores := make(map[string]any, len(models.ScoreAxes))
	if in, ok := v.(map[string]any); ok {
		maps.Copy(scores, in)
	}
	for _, axis := range models.ScoreAxes {
		score := models.MinScore
		if f, ok := toFloat(scores[axis]); ok {
			score = int(math.Round(max(models.MinScore, min(models.MaxScore, f))))
		}
		scores[axis] = score
	}
	return scores
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsNaN(f)
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

// openActionItems marks every item as not completed, keeping order and count.
// Plain strings become {"task": s}; a missing list becomes empty.
func openActionItems(v any) any {
	switch items := v.(type) {
	case nil:
		return []any{}
	case []any:
		out := make([]any, len(items))
		for i, item := range items {
			switch item := item.(type) {
			case map[string]any:
				entry := make(map[string]any, len(item)+1)
				maps.Copy(entry, item)
				entry["completed"] = false
				out[i] = entry
			case string:
				out[i] = map[string]any{"task": item, "completed": false}
			default:
				out[i] = item
			}
		}
		return out
	default:
		return v
	}
}
