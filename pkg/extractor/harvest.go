package extractor

import "gmapsimages/pkg/models"

// Recorder persists newly discovered references. *ledger.Ledger satisfies it.
type Recorder interface {
	Append(url string, index int) error
}

// Harvest is the per-run extraction context: the dedup set, the discovery
// order and the next ledger index. It is owned by a single goroutine.
type Harvest struct {
	seen map[string]int
	refs []models.ImageReference
}

// NewHarvest returns an empty harvest whose first index is 1
func NewHarvest() *Harvest {
	return &Harvest{seen: make(map[string]int)}
}

// Add inserts ref if its dedup key is new and returns the 1-based index the
// key holds in discovery order.
func (h *Harvest) Add(ref models.ImageReference) (int, bool) {
	if idx, ok := h.seen[ref.DedupKey]; ok {
		return idx, false
	}
	h.refs = append(h.refs, ref)
	idx := len(h.refs)
	h.seen[ref.DedupKey] = idx
	return idx, true
}

// Contains reports whether the dedup key has been seen
func (h *Harvest) Contains(key string) bool {
	_, ok := h.seen[key]
	return ok
}

// Len returns the number of unique references
func (h *Harvest) Len() int {
	return len(h.refs)
}

// References returns a copy of the references in discovery order
func (h *Harvest) References() []models.ImageReference {
	out := make([]models.ImageReference, len(h.refs))
	copy(out, h.refs)
	return out
}

// URLs returns the canonical URLs in discovery order
func (h *Harvest) URLs() []string {
	out := make([]string, len(h.refs))
	for i, ref := range h.refs {
		out[i] = ref.CanonicalURL
	}
	return out
}
