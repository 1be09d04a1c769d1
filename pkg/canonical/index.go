package canonical

import "strings"

// Index is the deduplication table. The dedup key is the normalized string
// itself with a trailing FQDN dot folded away; the stored representative for
// a key is the shortest normalized spelling seen so far, ties broken
// lexicographically. One Index lives per scan run.
type Index struct {
	reps map[string]string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{reps: make(map[string]string)}
}

// Key folds cosmetic spelling differences out of a canonical host.
func Key(canonical string) string {
	return strings.TrimSuffix(canonical, ".")
}

// Observe records a canonical host and returns the representative spelling
// stored for its key.
func (ix *Index) Observe(canonical string) string {
	key := Key(canonical)
	existing, ok := ix.reps[key]
	if !ok {
		ix.reps[key] = canonical
		return canonical
	}
	if len(canonical) < len(existing) || (len(canonical) == len(existing) && canonical < existing) {
		ix.reps[key] = canonical
		return canonical
	}
	return existing
}

// IsDuplicate normalizes raw and reports whether its key has been observed,
// along with the canonical representative. ok is false when raw does not
// normalize to a valid host.
func (ix *Index) IsDuplicate(raw string) (dup bool, canonical string, ok bool) {
	c, ok := Normalize(raw)
	if !ok {
		return false, "", false
	}
	rep, seen := ix.reps[Key(c)]
	if seen {
		return true, rep, true
	}
	return false, c, true
}

// Len returns the number of distinct keys observed.
func (ix *Index) Len() int {
	return len(ix.reps)
}
