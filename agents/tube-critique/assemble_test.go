package tubecritique

import (
	"encoding/json"
	"testing"

	"tubecritique/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assembleInput(analysis map[string]any) AssembleInput {
	return AssembleInput{
		VideoID:  "abc12345678",
		VideoURL: "https://www.youtube.com/watch?v=abc12345678",
		Metadata: models.VideoMetadata{Title: "X", Channel: "Some Channel", Duration: "12:34"},
		Analysis: analysis,
		Now:      fixedNow,
	}
}

func TestAssembleMetadataFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		analysis    map[string]any
		wantTitle   string
		wantSpeaker string
	}{
		{"absent", map[string]any{}, "X", "Some Channel"},
		{"null", map[string]any{"title": nil, "speaker": nil}, "X", "Some Channel"},
		{"blank", map[string]any{"title": "  ", "speaker": ""}, "X", "Some Channel"},
		{"present", map[string]any{"title": "Model Title", "speaker": "Guest"}, "Model Title", "Guest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Assemble(assembleInput(tt.analysis))
			assert.Equal(t, tt.wantTitle, result.Title())
			assert.Equal(t, tt.wantSpeaker, result.Speaker())
		})
	}
}

func TestAssembleOverridesIdentity(t *testing.T) {
	result := Assemble(assembleInput(map[string]any{
		"id":        "model-id",
		"url":       "https://evil.example.com",
		"timestamp": 1,
		"duration":  "45:00",
	}))

	assert.Equal(t, "abc12345678_1773500966", result.ID())
	assert.Equal(t, "https://www.youtube.com/watch?v=abc12345678", result.URL())
	assert.Equal(t, int64(1773500966000), result.Timestamp())
	assert.Equal(t, "45:00", result[models.FieldDuration])
}

func TestAssembleActionItems(t *testing.T) {
	analysis := map[string]any{
		"actionItems": []any{
			map[string]any{"task": "first", "priority": "high", "completed": true},
			"second",
			map[string]any{"task": "third"},
			json.Number("4"),
		},
	}

	result := Assemble(assembleInput(analysis))
	items := result.ActionItems()
	require.Len(t, items, 4)

	assert.Equal(t, map[string]any{"task": "first", "priority": "high", "completed": false}, items[0])
	assert.Equal(t, map[string]any{"task": "second", "completed": false}, items[1])
	assert.Equal(t, map[string]any{"task": "third", "completed": false}, items[2])
	assert.Equal(t, json.Number("4"), items[3])

	original := analysis["actionItems"].([]any)[0].(map[string]any)
	assert.Equal(t, true, original["completed"], "input is not mutated")
}

func TestAssembleMissingActionItems(t *testing.T) {
	result := Assemble(assembleInput(map[string]any{}))
	assert.Equal(t, []any{}, result[models.FieldActionItems])
}

func TestAssembleScores(t *testing.T) {
	tests := []struct {
		name   string
		scores any
		want   map[string]any
	}{
		{"in range", map[string]any{"ai": json.Number("5"), "pm": json.Number("3"), "growth": json.Number("1")},
			map[string]any{"ai": 5, "pm": 3, "growth": 1}},
		{"clamped", map[string]any{"ai": json.Number("11"), "pm": json.Number("-2"), "growth": json.Number("0")},
			map[string]any{"ai": 5, "pm": 1, "growth": 1}},
		{"rounded", map[string]any{"ai": json.Number("3.6"), "pm": 2.4, "growth": 4},
			map[string]any{"ai": 4, "pm": 2, "growth": 4}},
		{"missing axes", map[string]any{"ai": json.Number("4"), "note": "extra"},
			map[string]any{"ai": 4, "pm": 1, "growth": 1, "note": "extra"}},
		{"numeric strings", map[string]any{"ai": "4", "pm": " 5 ", "growth": "2.6"},
			map[string]any{"ai": 4, "pm": 5, "growth": 3}},
		{"not numeric", map[string]any{"ai": "high", "pm": nil, "growth": true},
			map[string]any{"ai": 1, "pm": 1, "growth": 1}},
		{"absent", nil, map[string]any{"ai": 1, "pm": 1, "growth": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := map[string]any{}
			if tt.scores != nil {
				analysis["scores"] = tt.scores
			}
			result := Assemble(assembleInput(analysis))
			assert.Equal(t, tt.want, result[models.FieldScores])
		})
	}
}

func TestAssembleOptionalMetadata(t *testing.T) {
	in := assembleInput(map[string]any{})
	result := Assemble(in)
	assert.NotContains(t, result, models.FieldThumbnail)
	assert.NotContains(t, result, models.FieldViewCount)
	assert.NotContains(t, result, models.FieldGroundingSources)

	in.Metadata.Thumbnail = "https://i.ytimg.com/x.jpg"
	in.Metadata.ViewCount = 42
	in.Sources = []models.GroundingSource{{Title: "Docs", URI: "https://example.com"}}
	result = Assemble(in)
	assert.Equal(t, "https://i.ytimg.com/x.jpg", result[models.FieldThumbnail])
	assert.Equal(t, int64(42), result[models.FieldViewCount])
	assert.Equal(t, in.Sources, result[models.FieldGroundingSources])
}

func TestAssemblePassesUnknownFields(t *testing.T) {
	nested := map[string]any{"a": []any{json.Number("1")}}
	result := Assemble(assembleInput(map[string]any{"futureField": nested, "summary": "s"}))
	assert.Equal(t, nested, result["futureField"])
	assert.Equal(t, "s", result["summary"])
}
