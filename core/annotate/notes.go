package annotate

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Notes stores free text per passage id.
type Notes struct {
	*blobStore[string]
}

// OpenNotes loads the passage note store.
func OpenNotes(ctx context.Context, backend Backend) *Notes {
	return &Notes{openBlob[string](ctx, backend, NotesStore)}
}

// Save stores the note of a passage. Text that is empty after trimming
// deletes the note instead.
func (n *Notes) Save(ctx context.Context, passageID int, text string) {
	k := strconv.Itoa(passageID)
	n.update(ctx, func(m map[string]string) {
		if strings.TrimSpace(text) == "" {
			delete(m, k)
			return
		}
		m[k] = text
	})
}

// Get returns the note of a passage.
func (n *Notes) Get(passageID int) (string, bool) {
	return n.get(strconv.Itoa(passageID))
}

// Delete removes the note of a passage.
func (n *Notes) Delete(ctx context.Context, passageID int) {
	k := strconv.Itoa(passageID)
	n.update(ctx, func(m map[string]string) { delete(m, k) })
}

// IDs lists the passages that have a note, ascending.
func (n *Notes) IDs() []int {
	var ids []int
	for k := range n.snapshot() {
		if id, err := strconv.Atoi(k); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// All returns every note keyed by passage id.
func (n *Notes) All() map[int]string {
	out := make(map[int]string)
	for k, v := range n.snapshot() {
		if id, err := strconv.Atoi(k); err == nil {
			out[id] = v
		}
	}
	return out
}
