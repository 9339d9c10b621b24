package job

import (
	"fmt"

	"github.com/hpcflow/jobcore/pkg/rangeset"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// DefaultMaxArraySize is the server tunable from spec.md §4.4, default
// 10,000 subjobs per array parent.
const DefaultMaxArraySize = 10000

// ArrayInfo is the tracker a parent job owns exclusively (component C4,
// spec.md §3): totals, per-state counts, the queued-index range, and the
// reentrancy/delete-in-progress flags consumed by pkg/array's doneness
// check.
type ArrayInfo struct {
	Total      int
	Start      int
	End        int
	Step       int
	Dispatched int

	StateCounts [numStates]int

	QueuedList *rangeset.Set

	NoDelete bool // delete-in-progress; suppresses doneness re-entry
	ChkArray bool // doneness-check in progress; reentrancy guard
}

// parseSubmitted parses the spec.md §6 grammar and additionally recovers
// the (start, end, step) triple a single contiguous stripe encodes, which
// ArrayInfo needs for create_subjob's "(index-start) mod step == 0"
// membership check (spec.md §4.5).
func parseSubmitted(text string) (set *rangeset.Set, start, end, step int, err error) {
	set, err = rangeset.Parse(text)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if set.IsEmpty() {
		return set, 0, -1, 1, nil
	}
	// spec.md's submission grammar for array_indices_submitted is always a
	// single item in practice ("0-9999:2"); start/end/step describe that
	// one stripe. Multi-item submissions use the overall min/max, and fall
	// back to step 1 unless every index lies on the progression the first
	// two indices set, which keeps the membership check create_subjob
	// performs a superset of the submitted indices.
	start, _ = set.First()
	end = start
	step = 1

	var indices []int
	set.Iter(func(i int) bool {
		indices = append(indices, i)
		if i > end {
			end = i
		}
		return true
	})
	if len(indices) >= 2 {
		step = indices[1] - indices[0]
		for _, i := range indices {
			if (i-start)%step != 0 {
				step = 1
				break
			}
		}
	}
	return set, start, end, step, nil
}

// Install implements the installation procedure of spec.md §4.4, run as
// the action callback for setting array_indices_submitted under
// mode in {NEW, RECOV, ALTER}.
func Install(j *Job, submitted string, mode svrattr.Mode, maxArraySize int) error {
	if mode == svrattr.ModeAlter && j.State != Queued {
		return Newf(KindModifyWhileRunning, "array parent %q is past Queued", j.ID)
	}

	set, start, end, step, err := parseSubmitted(submitted)
	if err != nil {
		return Wrap(KindBadAttrValue, err, "invalid array_indices_submitted %q", submitted)
	}
	count := set.Count()

	if (mode == svrattr.ModeNew || mode == svrattr.ModeAlter) && count > maxArraySize {
		return Newf(KindMaxArraySize, "array of %d subjobs exceeds max_array_size %d", count, maxArraySize)
	}

	// Step 1: release any previous tracker.
	j.Array = nil

	info := &ArrayInfo{Total: count, Start: start, End: end, Step: step}
	if mode == svrattr.ModeNew {
		info.QueuedList = set
		info.StateCounts[stateIndex(Queued)] = count
	}
	// RECOV/ALTER: QueuedList stays nil, rebuilt by RecoveryFixup.

	j.Array = info
	j.Flags |= FlagIsArrayParent

	// Step 5: force the boolean attribute array=true (array_func.c's
	// set_jattr_b_slim(pjob, JOB_ATR_array, 1, SET)).
	if err := j.Attrs.Set(svrattr.ArrayFlag, true, svrattr.ModeInternal); err != nil {
		return err
	}

	if mode != svrattr.ModeRecov {
		if err := info.rebuildRemaining(j); err != nil {
			return err
		}
		info.rebuildStateCount(j)
	}
	return nil
}

// RecoveryFixup implements spec.md §4.4's recovery fixup: rebuilding
// QueuedList from a persisted array_indices_remaining value when a
// tracker already exists but its QueuedList is nil.
func RecoveryFixup(j *Job, remaining string) error {
	info := j.Array
	if info == nil || info.QueuedList != nil {
		return nil
	}

	if remaining == "-" || remaining == "" {
		info.QueuedList = &rangeset.Set{}
		info.StateCounts[stateIndex(Queued)] = 0
		info.StateCounts[stateIndex(Expired)] = info.Total
		return nil
	}

	set, err := rangeset.Parse(remaining)
	if err != nil {
		return Wrap(KindBadAttrValue, err, "invalid array_indices_remaining %q", remaining)
	}
	q := set.Count()
	info.QueuedList = set
	info.StateCounts[stateIndex(Queued)] = q
	info.StateCounts[stateIndex(Expired)] = info.Total - q
	return nil
}

// Contains reports whether i is a valid member of the submitted range:
// i ∈ [start..end] and (i-start) mod step == 0, per spec.md §4.5's
// create_subjob precondition.
func (a *ArrayInfo) Contains(i int) bool {
	if i < a.Start || i > a.End {
		return false
	}
	return (i-a.Start)%a.Step == 0
}

// rebuildRemaining serializes QueuedList into the job's
// array_indices_remaining attribute — spec.md §4.4's
// update_array_indices_remaining_attr, exposed here because callers (the
// parent aggregator) may need to rebuild it for other reasons too.
func (a *ArrayInfo) rebuildRemaining(j *Job) error {
	if a.QueuedList == nil {
		return j.Attrs.Set(svrattr.ArrayIndicesRemaining, "-", svrattr.ModeInternal)
	}
	return j.Attrs.Set(svrattr.ArrayIndicesRemaining, a.QueuedList.Serialize(), svrattr.ModeInternal)
}

// RebuildRemaining is the exported form of rebuildRemaining, callable from
// pkg/array after update_sj_parent mutates the tracker.
func (a *ArrayInfo) RebuildRemaining(j *Job) error {
	return a.rebuildRemaining(j)
}

// rebuildStateCount formats array_state_count exactly as spec.md §6
// requires: "Queued:<q> Running:<r> Exiting:<e> Expired:<x>".
func (a *ArrayInfo) rebuildStateCount(j *Job) {
	value := fmt.Sprintf("Queued:%d Running:%d Exiting:%d Expired:%d",
		a.StateCounts[stateIndex(Queued)],
		a.StateCounts[stateIndex(Running)],
		a.StateCounts[stateIndex(Exiting)],
		a.StateCounts[stateIndex(Expired)],
	)
	_ = j.Attrs.Set(svrattr.ArrayStateCount, value, svrattr.ModeInternal)
}

// RebuildStateCount is the exported form, callable from pkg/array.
func (a *ArrayInfo) RebuildStateCount(j *Job) {
	a.rebuildStateCount(j)
}
