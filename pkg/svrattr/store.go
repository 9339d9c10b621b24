package svrattr

import "sync"

// entry is one attribute slot: its current value, flags, and a cached
// encoded form shared with any svrattrl node built from it (spec.md §4.2's
// "sister" chain). encoded is invalidated (set to nil) whenever Value or
// Flags change, and rebuilt lazily by Encoded().
type entry struct {
	value   any
	flags   Flag
	encoded *string
	refs    int
}

// Store is the typed attribute map carried by every job record (spec.md
// §3's "attribute store"): attribute id -> tagged value, with dirty
// tracking and a cached encoded form invalidated on every mutation.
type Store struct {
	mu      sync.Mutex
	table   *Table
	entries map[ID]*entry
	dirty   map[ID]bool
	owner   Owner
}

// NewStore creates an attribute store bound to owner and backed by table.
func NewStore(table *Table, owner Owner) *Store {
	return &Store{
		table:   table,
		entries: make(map[ID]*entry),
		dirty:   make(map[ID]bool),
		owner:   owner,
	}
}

// Get returns the current value of id and whether it is set.
func (s *Store) Get(id ID) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !e.flags.Has(FlagSet) {
		return nil, false
	}
	return e.value, true
}

// Flags returns the flag bits currently set on id.
func (s *Store) Flags(id ID) Flag {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return 0
	}
	return e.flags
}

// Set stores value under id, marks it dirty, invalidates its cached
// encoded form, and — unless mode is ModeInternal, per spec.md §4.3 — runs
// the definition's action callback. def.Action errors propagate to the
// caller without mutating the dirty/encoded bookkeeping that already ran;
// per spec.md §7 the caller decides whether that's fatal.
func (s *Store) Set(id ID, value any, mode Mode) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	e.value = value
	e.flags |= FlagSet
	e.flags &^= FlagDefault
	e.encoded = nil
	s.dirty[id] = true
	def := s.table.Def(id)
	s.mu.Unlock()

	if def == nil || mode == ModeInternal {
		return nil
	}
	return def.Action(s.owner, mode, value)
}

// SetDefault stores value under id tagged with FlagDefault, without
// running the action callback or marking the store dirty — used when
// cloning a subjob's Default flag bit per spec.md §4.5 step 2.
func (s *Store) SetDefault(id ID, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{value: value, flags: FlagSet | FlagDefault}
}

// Encoded returns the cached wire-encoded form of id, computing and
// caching it via the definition's Encode function if necessary.
func (s *Store) Encoded(id ID) (string, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || !e.flags.Has(FlagSet) {
		s.mu.Unlock()
		return "", nil
	}
	if e.encoded != nil {
		cached := *e.encoded
		s.mu.Unlock()
		return cached, nil
	}
	def := s.table.Def(id)
	value := e.value
	s.mu.Unlock()

	if def == nil {
		return "", &UnknownAttribute{}
	}
	encoded, err := def.Encode(value)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		e.encoded = &encoded
	}
	s.mu.Unlock()
	return encoded, nil
}

// IsDirty reports whether id has been modified since the last ClearDirty.
func (s *Store) IsDirty(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[id]
}

// DirtyIDs returns every attribute id currently marked dirty.
func (s *Store) DirtyIDs() []ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ID, 0, len(s.dirty))
	for id, d := range s.dirty {
		if d {
			out = append(out, id)
		}
	}
	return out
}

// ClearDirty resets the dirty set. internal/store's Put does not call it.
func (s *Store) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = make(map[ID]bool)
}

// Snapshot entry pairs a value with the flags it was tagged with at
// capture time.
type SnapshotEntry struct {
	Value any
	Flags Flag
}

// Snapshot returns every currently-set attribute, for bulk-copy callers
// like pkg/subjob's create_subjob — spec.md §4.5 step 2's "for each
// attribute id in the copied-attribute set" is implemented generically
// here rather than by naming each PBS-era attribute this server doesn't
// model.
func (s *Store) Snapshot() map[ID]SnapshotEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ID]SnapshotEntry, len(s.entries))
	for id, e := range s.entries {
		if !e.flags.Has(FlagSet) {
			continue
		}
		out[id] = SnapshotEntry{Value: e.value, Flags: e.flags}
	}
	return out
}
