package ai

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence on one line", "```json{\"a\":1}```", `{"a":1}`},
		{"no fence", "  {\"a\":1}  ", `{"a":1}`},
		{"only leading fence", "```JSON\n{\"a\":1}", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.input); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	t.Run("FencedJSON", func(t *testing.T) {
		obj, err := ParseAnalysis("```json\n{\"a\":1}\n```")
		if err != nil {
			t.Fatalf("ParseAnalysis() error = %v", err)
		}
		if len(obj) != 1 || obj["a"] != json.Number("1") {
			t.Errorf("ParseAnalysis() = %v, want map[a:1]", obj)
		}
	})

	t.Run("LeadingProse", func(t *testing.T) {
		raw := "Sure! Here is the analysis you asked for:\n{\"title\": \"Talk\", \"scores\": {\"ai\": 4}}\nLet me know if you need more."
		obj, err := ParseAnalysis(raw)
		if err != nil {
			t.Fatalf("ParseAnalysis() error = %v", err)
		}
		if obj["title"] != "Talk" {
			t.Errorf("title = %v, want Talk", obj["title"])
		}
		scores, ok := obj["scores"].(map[string]any)
		if !ok || scores["ai"] != json.Number("4") {
			t.Errorf("scores = %v", obj["scores"])
		}
	})

	t.Run("NestedBracesInStrings", func(t *testing.T) {
		raw := `noise {"tldr": "uses {curly} braces", "notesForLater": ["a}"]} trailing`
		obj, err := ParseAnalysis(raw)
		if err != nil {
			t.Fatalf("ParseAnalysis() error = %v", err)
		}
		if obj["tldr"] != "uses {curly} braces" {
			t.Errorf("tldr = %v", obj["tldr"])
		}
	})

	t.Run("UnknownFieldsKept", func(t *testing.T) {
		obj, err := ParseAnalysis(`{"title":"x","futureField":{"nested":true}}`)
		if err != nil {
			t.Fatalf("ParseAnalysis() error = %v", err)
		}
		if _, ok := obj["futureField"]; !ok {
			t.Error("futureField should pass through")
		}
	})

	t.Run("LargeIntegersPreserved", func(t *testing.T) {
		obj, err := ParseAnalysis(`{"big": 9007199254740993}`)
		if err != nil {
			t.Fatalf("ParseAnalysis() error = %v", err)
		}
		if obj["big"] != json.Number("9007199254740993") {
			t.Errorf("big = %v", obj["big"])
		}
	})
}

func TestParseAnalysisFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no JSON at all", "I could not watch this video."},
		{"empty", ""},
		{"broken object", "{\"title\": \"unterminated"},
		{"braces but invalid", "prefix {not json} suffix"},
		{"null literal", "null"},
		{"array of scalars", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ParseAnalysis(tt.raw)
			if err == nil {
				t.Fatalf("ParseAnalysis(%q) = %v, want error", tt.raw, obj)
			}
			if !errors.Is(err, ErrUnparsableResponse) {
				t.Errorf("error %v should match ErrUnparsableResponse", err)
			}
			var unparsable *UnparsableResponseError
			if !errors.As(err, &unparsable) {
				t.Fatalf("error %T should be *UnparsableResponseError", err)
			}
			if unparsable.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", unparsable.Raw, tt.raw)
			}
		})
	}
}
