package annotate

import (
	"context"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Color is a highlight color. The zero value means no highlight.
type Color string

const (
	None   Color = ""
	Green  Color = "green"
	Yellow Color = "yellow"
	Red    Color = "red"
)

// Colors lists the selectable colors in palette order.
var Colors = []Color{Green, Yellow, Red}

// ParseColor accepts a color name; "none" and "" map to None.
func ParseColor(s string) (Color, error) {
	switch c := Color(strings.ToLower(strings.TrimSpace(s))); c {
	case "none", None:
		return None, nil
	case Green, Yellow, Red:
		return c, nil
	default:
		return None, errors.NewValidation("color", fmt.Sprintf("unknown color %q (want green, yellow, red or none)", s))
	}
}

// Valid reports whether c is one of the palette colors.
func (c Color) Valid() bool {
	return c == Green || c == Yellow || c == Red
}

func (c Color) String() string {
	if c == None {
		return "none"
	}
	return string(c)
}

// Highlights stores one color per verse.
type Highlights struct {
	*blobStore[Color]
}

// OpenHighlights loads the verse highlight store.
func OpenHighlights(ctx context.Context, backend Backend) *Highlights {
	return &Highlights{openBlob[Color](ctx, backend, HighlightsStore)}
}

// Set colors a verse. Setting None removes the highlight.
func (h *Highlights) Set(ctx context.Context, key corpus.Key, c Color) error {
	if c != None && !c.Valid() {
		return errors.NewValidation("color", fmt.Sprintf("unknown color %q", string(c)))
	}
	k := key.String()
	h.update(ctx, func(m map[string]Color) {
		if c == None {
			delete(m, k)
			return
		}
		m[k] = c
	})
	return nil
}

// Get returns the verse color, or None.
func (h *Highlights) Get(key corpus.Key) Color {
	c, _ := h.get(key.String())
	return c
}

// Clear removes the highlight of a verse.
func (h *Highlights) Clear(ctx context.Context, key corpus.Key) {
	k := key.String()
	h.update(ctx, func(m map[string]Color) { delete(m, k) })
}

// All returns a copy of every highlight keyed by verse key.
func (h *Highlights) All() map[string]Color {
	return h.snapshot()
}
