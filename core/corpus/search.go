package corpus

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// DefaultSearchLimit is the number of matches after which Search stops scanning.
const DefaultSearchLimit = 60

// SplitQuery trims a raw query and splits it on runs of whitespace.
// Empty tokens are dropped; case is preserved.
func SplitQuery(query string) []string {
	return strings.Fields(query)
}

// Terms splits a raw query and case-folds each token.
func Terms(query string) []string {
	caser := cases.Fold()
	tokens := SplitQuery(query)
	for i, t := range tokens {
		tokens[i] = fold(caser, t, nil, nil)
	}
	return tokens
}

// fold applies full Unicode case folding one rune at a time, so "ß" becomes
// "ss". When starts and ends are non-nil they receive, for every byte of the
// result, the byte range in text of the rune that produced it.
func fold(caser cases.Caser, text string, starts, ends *[]int) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, w := utf8.DecodeRuneInString(text[i:])
		n := b.Len()
		if r < utf8.RuneSelf {
			if 'A' <= r && r <= 'Z' {
				r += 'a' - 'A'
			}
			b.WriteByte(byte(r))
		} else {
			b.WriteString(caser.String(text[i : i+w]))
		}
		if starts != nil {
			for j := n; j < b.Len(); j++ {
				*starts = append(*starts, i)
				*ends = append(*ends, i+w)
			}
		}
		i += w
	}
	return b.String()
}

// Search returns verses whose text contains every whitespace-separated term
// of query, case-insensitively, in corpus order. Matching is plain substring
// containment. Scanning stops once limit verses matched; limit <= 0 means
// DefaultSearchLimit. A query without terms matches nothing.
func (c *Corpus) Search(query string, limit int) []Verse {
	return c.SearchTerms(Terms(query), limit)
}

// SearchTerms is Search over terms that are already folded (see Terms).
func (c *Corpus) SearchTerms(terms []string, limit int) []Verse {
	out := []Verse{}
	if len(terms) == 0 {
		return out
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	for i, text := range c.folded {
		if containsAll(text, terms) {
			out = append(out, c.verses[i])
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

func containsAll(text string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

// Span is a half-open byte range [Start, End) of a verse text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Highlighter finds term occurrences in verse texts for result rendering.
// Texts are folded the same way Search folds them; spans are mapped back to
// byte offsets of the original text and always cover whole runes.
type Highlighter struct {
	terms []string
}

// NewHighlighter takes terms as returned by Terms.
func NewHighlighter(terms []string) *Highlighter {
	h := &Highlighter{}
	for _, t := range terms {
		if t != "" {
			h.terms = append(h.terms, t)
		}
	}
	return h
}

// Spans returns the merged spans of every term occurrence in text.
func (h *Highlighter) Spans(text string) []Span {
	if len(h.terms) == 0 {
		return nil
	}
	var starts, ends []int
	folded := fold(cases.Fold(), text, &starts, &ends)

	var spans []Span
	for _, t := range h.terms {
		for off := 0; off < len(folded); {
			i := strings.Index(folded[off:], t)
			if i < 0 {
				break
			}
			i += off
			spans = append(spans, Span{Start: starts[i], End: ends[i+len(t)-1]})
			off = i + 1
		}
	}
	return MergeSpans(spans)
}

// HighlightSpans is a one-shot NewHighlighter(terms).Spans(text).
func HighlightSpans(text string, terms []string) []Span {
	return NewHighlighter(terms).Spans(text)
}

// MergeSpans sorts spans by start, then end, and unions overlapping or
// adjacent ones into maximal spans. The input slice is reordered.
func MergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	merged := []Span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// Segment is a piece of verse text, either plain or marked as a match.
type Segment struct {
	Text   string `json:"text"`
	Marked bool   `json:"marked,omitempty"`
}

// Mark cuts text into plain and marked segments along merged spans.
// Spans outside the text are clamped.
func Mark(text string, spans []Span) []Segment {
	var out []Segment
	pos := 0
	for _, s := range spans {
		start, end := clamp(s.Start, pos, len(text)), clamp(s.End, pos, len(text))
		if start >= end {
			continue
		}
		if start > pos {
			out = append(out, Segment{Text: text[pos:start]})
		}
		out = append(out, Segment{Text: text[start:end], Marked: true})
		pos = end
	}
	if pos < len(text) {
		out = append(out, Segment{Text: text[pos:]})
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
