// Package rangeset implements the compact integer-index set described in
// spec.md §4.1 (component C1): a sorted, non-overlapping list of
// (low, high, step) stripes supporting the "a-b:s,c,d-e" wire grammar used
// by array_indices_submitted/array_indices_remaining (spec.md §6). The
// representation mirrors the CompletedIndexes compaction used by
// Kubernetes' indexed Jobs (oistein-kubernetes/pkg/apis/batch/types.go),
// generalized here to carry a step and to support add/remove as well as
// parse/serialize.
package rangeset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// stripe is a single inclusive range low..high stepping by step. step is
// always >= 1; a bare index is represented as low==high, step==1.
type stripe struct {
	low, high, step int
}

func (s stripe) count() int {
	if s.high < s.low {
		return 0
	}
	return (s.high-s.low)/s.step + 1
}

func (s stripe) contains(i int) bool {
	if i < s.low || i > s.high {
		return false
	}
	return (i-s.low)%s.step == 0
}

func (s stripe) String() string {
	if s.low == s.high {
		return strconv.Itoa(s.low)
	}
	if s.step == 1 {
		return fmt.Sprintf("%d-%d", s.low, s.high)
	}
	return fmt.Sprintf("%d-%d:%d", s.low, s.high, s.step)
}

// Set is a sorted, non-overlapping collection of stripes. The zero value is
// an empty set. Set is not safe for concurrent use; callers mutate it only
// from the single-threaded context described in spec.md §5.
type Set struct {
	stripes []stripe
}

// New constructs a single-stripe set from start, end, step — the parameters
// spec.md §3 stores on ArrayInfo. step of 0 or start > end is invalid.
func New(start, end, step int) (*Set, error) {
	if step <= 0 {
		return nil, fmt.Errorf("rangeset: step must be positive, got %d", step)
	}
	if start > end {
		return nil, fmt.Errorf("rangeset: start %d is greater than end %d", start, end)
	}
	return &Set{stripes: []stripe{{low: start, high: end, step: step}}}, nil
}

// Parse parses the grammar from spec.md §6:
//
//	indices := item ("," item)*
//	item    := N | N "-" N [":" N]
//
// The empty-set literal "-" parses to an empty Set.
func Parse(text string) (*Set, error) {
	text = strings.TrimSpace(text)
	s := &Set{}
	if text == "" || text == "-" {
		return s, nil
	}

	for _, item := range strings.Split(text, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, fmt.Errorf("rangeset: empty item in %q", text)
		}

		st, err := parseItem(item)
		if err != nil {
			return nil, err
		}
		s.addStripe(st)
	}
	return s, nil
}

func parseItem(item string) (stripe, error) {
	if !strings.Contains(item, "-") {
		n, err := strconv.Atoi(item)
		if err != nil {
			return stripe{}, fmt.Errorf("rangeset: invalid index %q: %w", item, err)
		}
		if n < 0 {
			return stripe{}, fmt.Errorf("rangeset: negative index %q", item)
		}
		return stripe{low: n, high: n, step: 1}, nil
	}

	rangePart := item
	step := 1
	if idx := strings.Index(item, ":"); idx >= 0 {
		rangePart = item[:idx]
		s, err := strconv.Atoi(item[idx+1:])
		if err != nil {
			return stripe{}, fmt.Errorf("rangeset: invalid step in %q: %w", item, err)
		}
		step = s
	}

	parts := strings.SplitN(rangePart, "-", 2)
	if len(parts) != 2 {
		return stripe{}, fmt.Errorf("rangeset: malformed range %q", item)
	}
	low, err := strconv.Atoi(parts[0])
	if err != nil {
		return stripe{}, fmt.Errorf("rangeset: invalid low bound in %q: %w", item, err)
	}
	high, err := strconv.Atoi(parts[1])
	if err != nil {
		return stripe{}, fmt.Errorf("rangeset: invalid high bound in %q: %w", item, err)
	}
	if low < 0 || high < 0 {
		return stripe{}, fmt.Errorf("rangeset: negative bound in %q", item)
	}
	if step <= 0 {
		return stripe{}, fmt.Errorf("rangeset: step must be positive in %q", item)
	}
	if low > high {
		return stripe{}, fmt.Errorf("rangeset: low bound greater than high bound in %q", item)
	}
	return stripe{low: low, high: high, step: step}, nil
}

// Serialize renders the set back into the spec.md §6 grammar, canonical:
// stripes sorted by low, adjacent compatible stripes merged. An empty set
// serializes as "-".
func (s *Set) Serialize() string {
	if s.IsEmpty() {
		return "-"
	}
	parts := make([]string, len(s.stripes))
	for i, st := range s.stripes {
		parts[i] = st.String()
	}
	return strings.Join(parts, ",")
}

// Contains reports whether i is a member of the set.
func (s *Set) Contains(i int) bool {
	for _, st := range s.stripes {
		if st.contains(i) {
			return true
		}
	}
	return false
}

// Count returns the total number of indices represented by the set.
func (s *Set) Count() int {
	total := 0
	for _, st := range s.stripes {
		total += st.count()
	}
	return total
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool {
	return len(s.stripes) == 0
}

// First returns the lowest index in the set. ok is false for an empty set.
func (s *Set) First() (idx int, ok bool) {
	if s.IsEmpty() {
		return 0, false
	}
	return s.stripes[0].low, true
}

// Iter calls fn for every index in the set in ascending order. Iteration
// stops early if fn returns false.
func (s *Set) Iter(fn func(i int) bool) {
	for _, st := range s.stripes {
		for i := st.low; i <= st.high; i += st.step {
			if !fn(i) {
				return
			}
		}
	}
}

// Remove removes i from the set, splitting or shrinking a stripe as
// needed. Removing an absent index is a no-op (spec.md §4.1).
func (s *Set) Remove(i int) {
	for idx, st := range s.stripes {
		if !st.contains(i) {
			continue
		}

		var replacement []stripe
		switch {
		case st.low == i && st.high == i:
			// stripe fully consumed; drop it.
		case st.low == i:
			replacement = []stripe{{low: i + st.step, high: st.high, step: st.step}}
		case st.high == i:
			replacement = []stripe{{low: st.low, high: i - st.step, step: st.step}}
		default:
			replacement = []stripe{
				{low: st.low, high: i - st.step, step: st.step},
				{low: i + st.step, high: st.high, step: st.step},
			}
		}

		s.stripes = append(append(append([]stripe{}, s.stripes[:idx]...), replacement...), s.stripes[idx+1:]...)
		return
	}
}

// Add inserts i into the set with the given step, merging into or
// splitting adjacent stripes as needed. Adding an index already present is
// a no-op (spec.md §4.1).
func (s *Set) Add(i, step int) {
	if step <= 0 {
		step = 1
	}
	if s.Contains(i) {
		return
	}
	s.addStripe(stripe{low: i, high: i, step: step})
}

// addStripe inserts st into the set in sorted order and merges it with any
// adjacent, step-compatible neighbors.
func (s *Set) addStripe(st stripe) {
	s.stripes = append(s.stripes, st)
	sort.Slice(s.stripes, func(a, b int) bool { return s.stripes[a].low < s.stripes[b].low })
	s.stripes = mergeAdjacent(s.stripes)
}

// mergeAdjacent merges stripes that share a step and abut exactly (the
// next low immediately follows the previous high by one step).
func mergeAdjacent(stripes []stripe) []stripe {
	if len(stripes) == 0 {
		return stripes
	}
	merged := []stripe{stripes[0]}
	for _, st := range stripes[1:] {
		last := &merged[len(merged)-1]
		if st.low <= last.high {
			// overlap: extend if it grows the range, otherwise drop the duplicate.
			if st.high > last.high && st.step == last.step {
				last.high = st.high
			}
			continue
		}
		if last.step == st.step && st.low == last.high+last.step {
			last.high = st.high
			continue
		}
		merged = append(merged, st)
	}
	return merged
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	out := &Set{stripes: make([]stripe, len(s.stripes))}
	copy(out.stripes, s.stripes)
	return out
}
