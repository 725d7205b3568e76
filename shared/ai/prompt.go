package ai

import (
	"fmt"
	"strings"

	"tubecritique/internal/models"
)

const analysisInstructions = `You are analyzing a YouTube video. Watch and listen to the entire video carefully.

Based on the video content, return a JSON object with this exact structure:
{
  "title": "the video title",
  "duration": "video duration",
  "speaker": "main speaker or channel name",
  "tldr": "2-3 sentence summary of the main point",
  "comprehensiveSummary": "detailed 300-500 word summary covering all major points",
  "scores": { "ai": 1-5, "pm": 1-5, "growth": 1-5 },
  "tags": { "broad": ["category1", "category2"], "specific": ["topic1", "topic2"] },
  "keyMoments": [{ "time": "MM:SS", "topic": "what happens" }],
  "keyInsights": [{ "title": "insight name", "explanation": "why it matters" }],
  "howThisApplies": {
    "productBusiness": "business applications",
    "personal": "personal relevance"
  },
  "critique": {
    "claimsToVerify": [{ "claim": "claim text", "verdict": "true/false/unverified", "sourceUrl": "" }],
    "holesInReasoning": ["gap 1"],
    "whatsMissing": ["missing perspective"],
    "speakerBias": "bias analysis"
  },
  "quotes": [{ "text": "quote", "speaker": "who", "context": "when" }],
  "actionItems": [{ "task": "action", "context": "why" }],
  "notesForLater": ["note 1", "note 2"],
  "craftAnalysis": {
    "openingHook": "how it opens",
    "structurePattern": "organization",
    "pacingNotes": "pacing",
    "stickyMoments": "memorable parts",
    "editingNotes": "editing choices"
  }
}

Scoring guide:
- ai: Relevance to AI/ML (1=none, 5=essential)
- pm: Relevance to product management (1=none, 5=essential)
- growth: Relevance to personal growth (1=none, 5=essential)

IMPORTANT: Return ONLY valid JSON, no markdown code blocks.`

// BuildAnalysisPrompt renders the analysis prompt. Without a transcript it is
// the bare instruction template used alongside a video reference. With one,
// the metadata header and the transcript are appended; the transcript is cut
// to its first maxChars characters (no limit when maxChars <= 0).
func BuildAnalysisPrompt(meta models.VideoMetadata, transcript *models.Transcript, maxChars int) string {
	if transcript == nil || len(transcript.Entries) == 0 {
		return analysisInstructions
	}

	var b strings.Builder
	b.WriteString(analysisInstructions)
	fmt.Fprintf(&b, "\n\nVIDEO TITLE: %s\nCHANNEL: %s\nDURATION: %s\n", meta.Title, meta.Channel, meta.Duration)
	b.WriteString("\n=== TRANSCRIPT ===\n")
	b.WriteString(truncateChars(transcript.String(), maxChars))
	b.WriteString("\n=== END TRANSCRIPT ===\n")
	return b.String()
}

func truncateChars(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
