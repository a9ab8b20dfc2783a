package chunk

import (
	"context"
	"sort"
	"strings"
)

// defaultSeparators is the split hierarchy, coarsest first: paragraph,
// line, sentence, word, then a hard character cut as the floor.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveSplitter splits text along a separator hierarchy, preferring the
// coarsest separator that keeps pieces under the chunk size, and assembles
// pieces into overlapping chunks. Form feeds ('\f'), the page delimiter most
// PDF text extractors emit, are tracked so each chunk knows its page.
type RecursiveSplitter struct {
	size       int
	overlap    int
	separators []string
}

// SplitterOption configures a RecursiveSplitter.
type SplitterOption func(*RecursiveSplitter)

// WithSize sets the target chunk size in characters.
func WithSize(n int) SplitterOption {
	return func(s *RecursiveSplitter) {
		if n >= MinChunkSize {
			s.size = n
		}
	}
}

// WithOverlap sets the neighbor overlap in characters.
func WithOverlap(n int) SplitterOption {
	return func(s *RecursiveSplitter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

// NewRecursiveSplitter creates a splitter with the default 1200/150 geometry.
func NewRecursiveSplitter(opts ...SplitterOption) *RecursiveSplitter {
	s := &RecursiveSplitter{
		size:       DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: defaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}
	return s
}

// Size returns the configured chunk size.
func (s *RecursiveSplitter) Size() int { return s.size }

// Overlap returns the configured chunk overlap.
func (s *RecursiveSplitter) Overlap() int { return s.overlap }

// fragment is a span of the source text no longer than the chunk size.
type fragment struct {
	text  string
	start int // byte offset into the original text
}

// Chunk splits the input into overlapping chunks with source, page, and
// ordinal metadata attached.
func (s *RecursiveSplitter) Chunk(ctx context.Context, in Input) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, nil
	}

	pageBreaks := pageBreakOffsets(text)
	fragments := s.fragment(text, 0, s.separators)
	assembled := s.assemble(fragments)

	chunks := make([]Chunk, 0, len(assembled))
	for _, frag := range assembled {
		content := strings.TrimSpace(frag.text)
		if content == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content: content,
			Source:  in.Source,
			Page:    pageAt(pageBreaks, frag.start),
			Ordinal: len(chunks),
		})
	}
	return chunks, nil
}

// fragment recursively splits text into pieces no longer than the chunk
// size. Pieces cover the text exactly, in order, so offsets stay accurate.
func (s *RecursiveSplitter) fragment(text string, offset int, seps []string) []fragment {
	if len(text) <= s.size {
		return []fragment{{text: text, start: offset}}
	}

	sep := ""
	rest := []string{}
	for i, candidate := range seps {
		if candidate == "" {
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	if sep == "" {
		// Hard cut: no separator fits, slice at the size boundary.
		var out []fragment
		for start := 0; start < len(text); start += s.size {
			end := start + s.size
			if end > len(text) {
				end = len(text)
			}
			out = append(out, fragment{text: text[start:end], start: offset + start})
		}
		return out
	}

	var out []fragment
	pos := 0
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if len(part) > s.size {
			out = append(out, s.fragment(part, offset+pos, rest)...)
		} else {
			out = append(out, fragment{text: part, start: offset + pos})
		}
		pos += len(part)
	}
	return out
}

// assemble merges consecutive fragments into chunks of at most the target
// size, carrying an overlap tail from each emitted chunk into the next.
func (s *RecursiveSplitter) assemble(fragments []fragment) []fragment {
	var out []fragment
	var window []fragment
	windowLen := 0

	flush := func() {
		if windowLen == 0 {
			return
		}
		var b strings.Builder
		b.Grow(windowLen)
		for _, f := range window {
			b.WriteString(f.text)
		}
		out = append(out, fragment{text: b.String(), start: window[0].start})
	}

	for _, f := range fragments {
		if windowLen > 0 && windowLen+len(f.text) > s.size {
			flush()
			// Retain a tail of trailing fragments as the overlap seed.
			var tail []fragment
			tailLen := 0
			for i := len(window) - 1; i >= 0 && tailLen < s.overlap; i-- {
				tail = append([]fragment{window[i]}, tail...)
				tailLen += len(window[i].text)
			}
			if tailLen+len(f.text) > s.size {
				tail, tailLen = nil, 0
			}
			window, windowLen = tail, tailLen
		}
		window = append(window, f)
		windowLen += len(f.text)
	}
	flush()

	return out
}

// pageBreakOffsets returns the byte offsets of form-feed page delimiters.
func pageBreakOffsets(text string) []int {
	var offsets []int
	for i, r := range text {
		if r == '\f' {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// pageAt maps a byte offset to its 1-indexed page, or 0 when the text has
// no page delimiters at all.
func pageAt(breaks []int, offset int) int {
	if len(breaks) == 0 {
		return 0
	}
	return 1 + sort.SearchInts(breaks, offset)
}
