// Package array implements the parent aggregator (component C6, spec.md
// §4.4/§4.6): the sole mutator of an array parent's tracker, and the
// idempotent, reentrancy-safe doneness check that closes the parent out
// once every subjob has left the active states.
package array

import (
	"log/slog"

	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// exitClass maps a raw exit code to the three-way dominance class spec.md
// §8's monotonicity invariant is stated over: 0 succeeded, 1 a positive
// (script-level) exit, 2 a negative (signal/system) exit. 2 dominates 1
// dominates 0, and a parent's exit_status attribute stores the class, not
// the raw code, once any subjob has joined into it.
func exitClass(raw int64) int {
	switch {
	case raw < 0:
		return 2
	case raw > 0:
		return 1
	default:
		return 0
	}
}

// joinExitStatus folds a subjob's raw exit code into the parent's current
// class, keeping the larger of the two — spec.md §8's monotonicity
// invariant: exit_status never transitions 2→{0,1} nor 1→0.
func joinExitStatus(parentClass int, childRaw int64) int {
	cc := exitClass(childRaw)
	if cc > parentClass {
		return cc
	}
	return parentClass
}

// UpdateSjParent is update_sj_parent from spec.md §4.4: the sole mutator
// of a parent's tracker, invoked on every subjob state transition.
func UpdateSjParent(parent *job.Job, sj *job.Job, sjid string, oldState, newState job.State) error {
	if oldState == newState {
		return nil
	}

	id, err := job.ParseID(sjid)
	if err != nil {
		return nil
	}
	index, err := id.Index()
	if err != nil {
		return nil
	}

	info := parent.Array
	if info == nil {
		return job.Newf(job.KindInternal, "update_sj_parent: %q is not an array parent", parent.ID)
	}

	// spec.md §9: a redelivered state change for an index already moved out
	// of Queued must not be allowed to underflow state_counts[Queued] — detect
	// and log rather than mutate the tracker a second time.
	if oldState == job.Queued && (info.QueuedList == nil || !info.QueuedList.Contains(index)) {
		slog.Default().Warn("update_sj_parent: duplicate delivery ignored",
			"parent", parent.ID, "subjob", sjid, "old_state", string(oldState), "new_state", string(newState))
		return nil
	}

	info.StateCounts[job.StateIndex(oldState)]--
	info.StateCounts[job.StateIndex(newState)]++

	if oldState == job.Queued {
		info.QueuedList.Remove(index)
	}
	if newState == job.Queued {
		info.QueuedList.Add(index, info.Step)
	}

	if err := info.RebuildRemaining(parent); err != nil {
		return err
	}
	info.RebuildStateCount(parent)

	if sj != nil && newState != job.Queued {
		if raw, ok := sj.GetLong(svrattr.ExitStatus); ok {
			cur, _ := parent.GetLong(svrattr.ExitStatus)
			joined := joinExitStatus(int(cur), raw)
			if err := parent.SetLong(svrattr.ExitStatus, int64(joined), svrattr.ModeInternal); err != nil {
				return err
			}
		}
		if rawStageout, ok := sj.GetLong(svrattr.StageoutStatus); ok {
			curStageout, _ := parent.GetLong(svrattr.StageoutStatus)
			if rawStageout > curStageout {
				if err := parent.SetLong(svrattr.StageoutStatus, rawStageout, svrattr.ModeInternal); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// LookupSubjob is get_subjob_and_state from spec.md §4.6: returns the live
// subjob at index i if one has been materialized, otherwise synthesizes
// the pseudo-state a status query should report without allocating one.
func LookupSubjob(parent *job.Job, table job.Table, i int) (sj *job.Job, state, substate job.State, err error) {
	sjid, err := job.SubjobID(parent.ID, i)
	if err != nil {
		return nil, 0, 0, err
	}

	if found, ok := table.Find(sjid); ok {
		return found, found.State, found.State, nil
	}

	if parent.Array != nil && parent.Array.QueuedList != nil && parent.Array.QueuedList.Contains(i) {
		return nil, job.Queued, job.Queued, nil
	}
	if parent.State == job.Finished {
		return nil, job.Finished, job.Finished, nil
	}
	return nil, job.Expired, job.Finished, nil
}
