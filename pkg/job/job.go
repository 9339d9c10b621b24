package job

import (
	"time"

	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// Header is the immutable portion of a Job record, per spec.md §3.
type Header struct {
	ID                 string
	FilePrefix         string
	Owner              string
	Created            time.Time
	QueueHandle        string
	ReservationHandle  string
}

// Job is the in-memory job record: a fixed header, lifecycle state, flags,
// and an attribute store, plus ParentID, the non-owning reference design
// note §9 calls for from a subjob to its parent, and Array, a parent's
// exclusively-owned tracker.
type Job struct {
	Header

	State    State
	Substate int
	Flags    Flag

	ExitStatus     int
	StageoutStatus int

	Attrs *svrattr.Store

	// ParentID is the subjob's non-owning reference to its array parent's
	// id (spec.md §9): "a subjob holds a non-owning reference to its
	// parent; the parent does not hold explicit references to subjobs —
	// it discovers them by job-id lookup against the global job table."
	ParentID string

	// Index is this job's array index, valid only when ParentID != "".
	Index int

	// Array is the tracker a parent job owns exclusively (spec.md §3,
	// §4.4). nil unless Flags.Has(FlagIsArrayParent).
	Array *ArrayInfo

	// MomAddr and MomPort are the job's exec-host binding, reset by
	// pkg/array's doneness check once no subjob is left active (spec.md
	// §4.6 step 3).
	MomAddr string
	MomPort int

	// EverBegun records whether this job has ever entered the Beginning
	// state, per spec.md §4.6 step 5: the end-of-job accounting and mail
	// sequence only fires for jobs that actually began execution.
	EverBegun bool

	// QRank orders jobs within a queue by creation time. Spec.md §4.5 step
	// 6 only asks for "current wallclock in milliseconds" with uniqueness
	// desirable but not required for correctness.
	QRank int64
}

// MarkBegun records that j has entered the Beginning state at least once.
func (j *Job) MarkBegun() { j.EverBegun = true }

// New constructs a Job with the given header and an empty attribute store
// bound to table.
func New(header Header, table *svrattr.Table) *Job {
	j := &Job{Header: header, State: Transit}
	j.Attrs = svrattr.NewStore(table, j)
	return j
}

// GetKey satisfies svrattr.Owner.
func (j *Job) GetKey() string { return j.ID }

// Table is the global job lookup service (spec.md §9's svr_alljobs /
// find_job): the server's process-wide map of live jobs, keyed by id.
// Subjobs reach their parent, and parents discover their subjobs, only
// through this table — never through an owned pointer, avoiding the
// reference cycle design note §9 warns against.
type Table interface {
	Find(id string) (*Job, bool)
	Put(j *Job)
	Delete(id string)
	All() []*Job
}

// MemTable is an in-memory Table. Mutation is expected to happen only
// from the single-threaded event loop described in spec.md §5, so no
// internal locking is used — the same assumption the rest of this package
// makes about ArrayInfo mutation.
type MemTable struct {
	jobs map[string]*Job
}

// NewMemTable constructs an empty in-memory job table.
func NewMemTable() *MemTable {
	return &MemTable{jobs: make(map[string]*Job)}
}

func (t *MemTable) Find(id string) (*Job, bool) {
	j, ok := t.jobs[id]
	return j, ok
}

func (t *MemTable) Put(j *Job) {
	t.jobs[j.ID] = j
}

func (t *MemTable) Delete(id string) {
	delete(t.jobs, id)
}

func (t *MemTable) All() []*Job {
	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	return out
}

// GetLong returns an integer-valued attribute, per spec.md §4.3's
// get_jattr_long.
func (j *Job) GetLong(id svrattr.ID) (int64, bool) {
	v, ok := j.Attrs.Get(id)
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// SetLong sets an integer-valued attribute, updating the stored value,
// marking it dirty, invalidating the cached encoded form, and running the
// action callback in the given mode unless mode is ModeInternal —
// spec.md §4.3.
func (j *Job) SetLong(id svrattr.ID, v int64, mode svrattr.Mode) error {
	return j.Attrs.Set(id, v, mode)
}

// GetString returns a string-valued attribute.
func (j *Job) GetString(id svrattr.ID) (string, bool) {
	v, ok := j.Attrs.Get(id)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetStringSlim sets a string-valued attribute without re-deriving any
// dependent attributes — the Slim variant spec.md §4.3 names alongside
// set_jattr_str_slim.
func (j *Job) SetStringSlim(id svrattr.ID, v string, mode svrattr.Mode) error {
	return j.Attrs.Set(id, v, mode)
}

// GetBool returns a boolean-valued attribute.
func (j *Job) GetBool(id svrattr.ID) (bool, bool) {
	v, ok := j.Attrs.Get(id)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// SetBool sets a boolean-valued attribute.
func (j *Job) SetBool(id svrattr.ID, v bool, mode svrattr.Mode) error {
	return j.Attrs.Set(id, v, mode)
}
