// Package budget provides character-based size limits for text sent to the
// language model. Because the service supports multiple LLM backends with
// different tokenizers, limits are expressed in characters using the
// conservative heuristic of 1 token ≈ 4 characters, leaving headroom for
// model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose.
	charsPerToken = 4

	// MaxRiskAnalysisChars caps the document text included in a single
	// risk-analysis prompt. Roughly 6k tokens of document plus the
	// checklist prompt fits comfortably in every supported backend.
	MaxRiskAnalysisChars = 25_000

	// MaxSummaryChars is the largest document the single-call summarizer
	// accepts; a safe proxy for a ~100k token context window. Larger
	// documents are rejected with a descriptive message rather than
	// silently truncated.
	MaxSummaryChars = 300_000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// Clamp returns s truncated to at most limit characters. The cut is
// byte-indexed; a clipped multi-byte rune at the boundary is dropped.
func Clamp(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[:limit]
	// Back off any trailing partial UTF-8 sequence.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
