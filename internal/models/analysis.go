package models

// AnalysisResult is the response envelope returned to callers. It is a map so
// that fields the model adds beyond the known schema pass through unchanged.
type AnalysisResult map[string]any

// Known envelope keys.
const (
	FieldID               = "id"
	FieldURL              = "url"
	FieldTimestamp        = "timestamp"
	FieldTitle            = "title"
	FieldDuration         = "duration"
	FieldSpeaker          = "speaker"
	FieldScores           = "scores"
	FieldActionItems      = "actionItems"
	FieldThumbnail        = "thumbnail"
	FieldViewCount        = "viewCount"
	FieldGroundingSources = "groundingSources"
)

// ScoreAxes lists the rubric axes under "scores".
var ScoreAxes = []string{"ai", "pm", "growth"}

const (
	MinScore = 1
	MaxScore = 5
)

func (r AnalysisResult) ID() string      { return r.str(FieldID) }
func (r AnalysisResult) URL() string     { return r.str(FieldURL) }
func (r AnalysisResult) Title() string   { return r.str(FieldTitle) }
func (r AnalysisResult) Speaker() string { return r.str(FieldSpeaker) }

// Timestamp returns the creation time in Unix milliseconds.
func (r AnalysisResult) Timestamp() int64 {
	ts, _ := r[FieldTimestamp].(int64)
	return ts
}

// ActionItems returns the action item list, or nil when absent.
func (r AnalysisResult) ActionItems() []any {
	items, _ := r[FieldActionItems].([]any)
	return items
}

func (r AnalysisResult) str(key string) string {
	s, _ := r[key].(string)
	return s
}

// GroundingSource is a web page the model consulted when search grounding is on.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}
