package annotate

import (
	"context"
	"fmt"
	"sort"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// WordRange colors the runes [Start, End) of a verse text.
type WordRange struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Color Color `json:"color"`
}

// Intersects reports whether the two half-open ranges share a rune.
func (r WordRange) Intersects(o WordRange) bool {
	return !(o.End <= r.Start || o.Start >= r.End)
}

// WordHighlights stores colored rune ranges per verse. Stored ranges of one
// verse never intersect.
type WordHighlights struct {
	*blobStore[[]WordRange]
}

// OpenWordHighlights loads the word highlight store.
func OpenWordHighlights(ctx context.Context, backend Backend) *WordHighlights {
	return &WordHighlights{openBlob[[]WordRange](ctx, backend, WordsStore)}
}

// Add stores r for key after removing every stored range that intersects it,
// whole, not trimmed. textLen is the rune length of the verse text.
func (w *WordHighlights) Add(ctx context.Context, key corpus.Key, textLen int, r WordRange) error {
	if r.Start < 0 || r.Start >= r.End || r.End > textLen {
		return errors.NewValidation("range", fmt.Sprintf("[%d,%d) outside text of length %d", r.Start, r.End, textLen))
	}
	if !r.Color.Valid() {
		return errors.NewValidation("color", fmt.Sprintf("unknown color %q", string(r.Color)))
	}

	k := key.String()
	w.update(ctx, func(m map[string][]WordRange) {
		kept := make([]WordRange, 0, len(m[k])+1)
		for _, e := range m[k] {
			if !e.Intersects(r) {
				kept = append(kept, e)
			}
		}
		m[k] = append(kept, r)
	})
	return nil
}

// Ranges returns the ranges of a verse sorted by start.
func (w *WordHighlights) Ranges(key corpus.Key) []WordRange {
	stored, _ := w.get(key.String())
	out := append([]WordRange(nil), stored...)
	sortRanges(out)
	return out
}

// Clear removes all ranges of a verse.
func (w *WordHighlights) Clear(ctx context.Context, key corpus.Key) {
	k := key.String()
	w.update(ctx, func(m map[string][]WordRange) { delete(m, k) })
}

// Keys returns every verse key with at least one range.
func (w *WordHighlights) Keys() []string {
	m := w.snapshot()
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if len(v) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func sortRanges(rs []WordRange) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
}

// ColoredSegment is a piece of verse text. Color is None for plain text.
type ColoredSegment struct {
	Text  string `json:"text"`
	Color Color  `json:"color,omitempty"`
}

// Render splits text into plain and colored segments. Ranges past the end of
// the text are clipped. A range overlapping an earlier one is trimmed to
// start where that one ends, and dropped if nothing is left.
func Render(text string, ranges []WordRange) []ColoredSegment {
	runes := []rune(text)
	sorted := append([]WordRange(nil), ranges...)
	sortRanges(sorted)

	var segs []ColoredSegment
	pos := 0
	for _, r := range sorted {
		start, end := max(r.Start, pos), min(r.End, len(runes))
		if start >= end {
			continue
		}
		if start > pos {
			segs = append(segs, ColoredSegment{Text: string(runes[pos:start])})
		}
		segs = append(segs, ColoredSegment{Text: string(runes[start:end]), Color: r.Color})
		pos = end
	}
	if pos < len(runes) {
		segs = append(segs, ColoredSegment{Text: string(runes[pos:])})
	}
	return segs
}
