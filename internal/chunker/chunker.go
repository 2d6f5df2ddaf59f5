// Package chunker splits extracted document text into overlapping chunks
// sized for embedding and retrieval. The splitting strategy is tuned for
// legal and insurance documents: page breaks, blank lines, and
// Article/Section/Chapter headings are preferred over arbitrary cuts so
// that a chunk rarely straddles a clause boundary.
//
// Chunking is a pure function of (text, chunk size, overlap); no hidden
// state, safe to call from multiple goroutines.
package chunker

import (
	"log/slog"
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 800

	// DefaultOverlap is the number of characters carried from the tail of
	// one chunk into the head of the next.
	DefaultOverlap = 150

	// minChunkLen is the minimum trimmed length of a chunk worth indexing.
	// Shorter fragments (stray headings, page numbers) are dropped.
	minChunkLen = 100
)

// separators is the ordered list of split points, most semantically
// significant first. The final empty string means "split anywhere".
var separators = []string{
	"\n=== Page", // page break markers inserted by extraction
	"\n\n",       // paragraph breaks
	"\nArticle",  // constitutional / statutory headings
	"\nSection",
	"\nChapter",
	".\n", // sentence-ending line breaks
	"\n",
	" ",
	"",
}

var (
	multiNewlineRe  = regexp.MustCompile(`\n\s*\n\s*\n+`)
	hyphenBreakRe   = regexp.MustCompile(`(\w)-\s*\n\s*(\w)`)
	headingRe       = regexp.MustCompile(`\b(Article|Section|Chapter)\s+(\d+)`)
	pageMarkerHead  = regexp.MustCompile(`^=== Page \d+ ===\s*`)
	pageMarkerTail  = regexp.MustCompile(`\s*=== Page \d+ ===$`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
)

// Chunker produces overlapping text chunks from a document.
type Chunker struct {
	// chunkSize is the target maximum chunk length in characters.
	chunkSize int
	// overlap is the character overlap between consecutive chunks.
	overlap int
	// log receives chunking diagnostics.
	log *slog.Logger
}

// Config holds the tunable chunking parameters.
type Config struct {
	// ChunkSize is the target chunk length in characters. Defaults to 800.
	ChunkSize int
	// Overlap is the overlap between consecutive chunks. Defaults to 150.
	// Set to a negative value for no overlap.
	Overlap int
	// Logger receives chunking diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// New constructs a Chunker, applying defaults for zero-valued config fields.
func New(cfg *Config) *Chunker {
	if cfg == nil {
		cfg = &Config{}
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := cfg.Overlap
	switch {
	case overlap == 0:
		overlap = DefaultOverlap
	case overlap < 0:
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Chunker{chunkSize: size, overlap: overlap, log: log}
}

// Chunk splits text into overlapping chunks. It preprocesses the text,
// splits recursively on the separator hierarchy, cleans each chunk, and
// drops fragments at or below the minimum substantive length.
//
// Chunking never fails: malformed input yields nil and a logged warning
// so the caller can proceed (it will simply index nothing).
func (c *Chunker) Chunk(text string) []string {
	cleaned := preprocess(text)
	if cleaned == "" {
		return nil
	}

	pieces := c.merge(c.split(cleaned, 0))

	chunks := make([]string, 0, len(pieces))
	for _, p := range pieces {
		processed := postprocess(p)
		if len(strings.TrimSpace(processed)) > minChunkLen {
			chunks = append(chunks, processed)
		}
	}

	c.log.Debug("chunked document",
		slog.Int("input_chars", len(text)),
		slog.Int("chunks", len(chunks)),
	)
	return chunks
}

// preprocess cleans raw extracted text before splitting: NUL bytes are
// stripped, runs of 3+ newlines collapse to a paragraph break, words
// hyphenated across line breaks (an OCR artifact) are rejoined, and
// Article/Section/Chapter headings are forced onto their own line so the
// heading separators can find them.
func preprocess(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	text = hyphenBreakRe.ReplaceAllString(text, "$1$2")
	text = headingRe.ReplaceAllString(text, "\n$1 $2")
	return strings.TrimSpace(text)
}

// postprocess cleans an individual chunk: page markers at either boundary
// are removed and internal whitespace runs collapse to single spaces.
// Idempotent; running it twice yields the same chunk.
func postprocess(chunk string) string {
	chunk = strings.TrimSpace(chunk)
	chunk = pageMarkerHead.ReplaceAllString(chunk, "")
	chunk = pageMarkerTail.ReplaceAllString(chunk, "")
	chunk = whitespaceRunRe.ReplaceAllString(chunk, " ")
	return strings.TrimSpace(chunk)
}

// split recursively partitions text into atomic pieces no longer than the
// chunk size, trying the separator at depth first and descending to less
// significant separators for any piece that is still too long. The pieces
// are merged back up to chunk size by merge, in a single pass, so overlap
// is applied exactly once.
func (c *Chunker) split(text string, depth int) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}
	if depth >= len(separators) || separators[depth] == "" {
		return c.hardSplit(text)
	}

	var pieces []string
	for _, part := range splitKeepingSeparator(text, separators[depth]) {
		if len(part) <= c.chunkSize {
			pieces = append(pieces, part)
			continue
		}
		pieces = append(pieces, c.split(part, depth+1)...)
	}
	return pieces
}

// splitKeepingSeparator splits text on sep, re-attaching the separator to
// the start of each following piece so no characters are lost. Empty
// pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	raw := strings.Split(text, sep)
	parts := make([]string, 0, len(raw))
	for i, r := range raw {
		if i > 0 {
			r = sep + r
		}
		if strings.TrimSpace(r) == "" {
			continue
		}
		parts = append(parts, r)
	}
	return parts
}

// merge greedily joins adjacent pieces up to the chunk size. When a chunk
// is emitted, the last overlap characters are carried into the start of
// the next chunk so retrieval context never cuts off mid-clause.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() string {
		s := cur.String()
		cur.Reset()
		if strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
		return s
	}

	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(p) > c.chunkSize {
			emitted := flush()
			if c.overlap > 0 && len(emitted) > c.overlap {
				cur.WriteString(emitted[len(emitted)-c.overlap:])
			}
		}
		cur.WriteString(p)
	}
	flush()

	return chunks
}

// hardSplit cuts text at fixed character offsets. This is the last resort
// when no separator produces pieces under the target size. Pieces are sized
// to chunkSize minus overlap so that merge, which prepends the overlap
// carry, fills each emitted chunk to exactly the target size.
func (c *Chunker) hardSplit(text string) []string {
	step := c.chunkSize - c.overlap
	if step <= 0 {
		step = c.chunkSize
	}

	var pieces []string
	for start := 0; start < len(text); start += step {
		end := start + step
		if end > len(text) {
			end = len(text)
		}
		pieces = append(pieces, text[start:end])
	}
	return pieces
}
