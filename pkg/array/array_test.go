package array

import (
	"testing"
	"time"

	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

func newParent(t *testing.T, submitted string) *job.Job {
	t.Helper()
	table := svrattr.NewTable()
	parent := job.New(job.Header{ID: "1[].host", Created: time.Unix(0, 0)}, table)
	if err := job.Install(parent, submitted, svrattr.ModeNew, job.DefaultMaxArraySize); err != nil {
		t.Fatalf("install: %v", err)
	}
	return parent
}

func newSubjob(t *testing.T, parent *job.Job, index int) *job.Job {
	t.Helper()
	table := svrattr.NewTable()
	sjid, err := job.SubjobID(parent.ID, index)
	if err != nil {
		t.Fatal(err)
	}
	sj := job.New(job.Header{ID: sjid, Created: time.Unix(0, 0)}, table)
	sj.ParentID = parent.ID
	sj.Index = index
	sj.State = job.Queued
	return sj
}

func TestUpdateSjParent_QueuedToRunningToFinished(t *testing.T) {
	parent := newParent(t, "0-3")
	sj := newSubjob(t, parent, 0)

	if err := UpdateSjParent(parent, sj, sj.ID, job.Queued, job.Running); err != nil {
		t.Fatal(err)
	}
	sj.State = job.Running
	if parent.Array.StateCounts[job.StateIndex(job.Queued)] != 3 {
		t.Errorf("Queued count = %d, want 3", parent.Array.StateCounts[job.StateIndex(job.Queued)])
	}
	if parent.Array.StateCounts[job.StateIndex(job.Running)] != 1 {
		t.Errorf("Running count = %d, want 1", parent.Array.StateCounts[job.StateIndex(job.Running)])
	}
	if parent.Array.QueuedList.Contains(0) {
		t.Error("index 0 should have been removed from queued_list")
	}

	if err := sj.SetLong(svrattr.ExitStatus, 0, svrattr.ModeInternal); err != nil {
		t.Fatal(err)
	}
	if err := UpdateSjParent(parent, sj, sj.ID, job.Running, job.Exiting); err != nil {
		t.Fatal(err)
	}
	sj.State = job.Exiting
	if err := UpdateSjParent(parent, sj, sj.ID, job.Exiting, job.Finished); err != nil {
		t.Fatal(err)
	}

	remaining, _ := parent.GetString(svrattr.ArrayIndicesRemaining)
	if remaining != "1-3" {
		t.Errorf("array_indices_remaining = %q, want %q", remaining, "1-3")
	}
	exitStatus, ok := parent.GetLong(svrattr.ExitStatus)
	if !ok || exitStatus != 0 {
		t.Errorf("parent exit_status = (%d, %v), want (0, true)", exitStatus, ok)
	}
}

func TestUpdateSjParent_NoopWhenStatesEqual(t *testing.T) {
	parent := newParent(t, "0-3")
	sj := newSubjob(t, parent, 0)
	before := parent.Array.StateCounts
	if err := UpdateSjParent(parent, sj, sj.ID, job.Queued, job.Queued); err != nil {
		t.Fatal(err)
	}
	if parent.Array.StateCounts != before {
		t.Error("UpdateSjParent with oldState==newState must be a no-op")
	}
}

func TestUpdateSjParent_MixedExitStatuses(t *testing.T) {
	parent := newParent(t, "0-2")
	for idx, raw := range map[int]int64{0: 1, 1: -5, 2: 0} {
		sj := newSubjob(t, parent, idx)
		if err := sj.SetLong(svrattr.ExitStatus, raw, svrattr.ModeInternal); err != nil {
			t.Fatal(err)
		}
		if err := UpdateSjParent(parent, sj, sj.ID, job.Queued, job.Exiting); err != nil {
			t.Fatal(err)
		}
		if err := UpdateSjParent(parent, sj, sj.ID, job.Exiting, job.Finished); err != nil {
			t.Fatal(err)
		}
	}

	got, ok := parent.GetLong(svrattr.ExitStatus)
	if !ok || got != 2 {
		t.Errorf("parent exit_status = (%d, %v), want (2, true): -5 (class 2) should dominate", got, ok)
	}
}

func TestUpdateSjParent_RequeueAddsBackToQueuedList(t *testing.T) {
	parent := newParent(t, "0-3")
	sj := newSubjob(t, parent, 0)
	if err := UpdateSjParent(parent, sj, sj.ID, job.Queued, job.Running); err != nil {
		t.Fatal(err)
	}
	if err := UpdateSjParent(parent, sj, sj.ID, job.Running, job.Queued); err != nil {
		t.Fatal(err)
	}
	if !parent.Array.QueuedList.Contains(0) {
		t.Error("requeued index 0 should be back in queued_list")
	}
	if parent.Array.StateCounts[job.StateIndex(job.Queued)] != 4 {
		t.Errorf("Queued count = %d, want 4", parent.Array.StateCounts[job.StateIndex(job.Queued)])
	}
}

func TestUpdateSjParent_DuplicateDeliveryDoesNotUnderflow(t *testing.T) {
	parent := newParent(t, "0-3")
	sj := newSubjob(t, parent, 0)

	if err := UpdateSjParent(parent, sj, sj.ID, job.Queued, job.Running); err != nil {
		t.Fatal(err)
	}
	sj.State = job.Running

	// A redelivered Queued->Running transition for the same index: index 0
	// is no longer in QueuedList, so this must be a no-op, not a second
	// decrement of state_counts[Queued].
	if err := UpdateSjParent(parent, sj, sj.ID, job.Queued, job.Running); err != nil {
		t.Fatal(err)
	}
	if got := parent.Array.StateCounts[job.StateIndex(job.Queued)]; got != 3 {
		t.Errorf("Queued count after duplicate delivery = %d, want 3 (no underflow)", got)
	}
	if got := parent.Array.StateCounts[job.StateIndex(job.Running)]; got != 1 {
		t.Errorf("Running count after duplicate delivery = %d, want 1 (no double-increment)", got)
	}
}

func TestLookupSubjob_PseudoStates(t *testing.T) {
	parent := newParent(t, "0-3")
	table := job.NewMemTable()
	table.Put(parent)

	_, state, _, err := LookupSubjob(parent, table, 0)
	if err != nil {
		t.Fatal(err)
	}
	if state != job.Queued {
		t.Errorf("state for queued, unmaterialized index = %q, want Queued", state)
	}

	sj := newSubjob(t, parent, 1)
	sj.State = job.Running
	table.Put(sj)
	found, state, _, err := LookupSubjob(parent, table, 1)
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || state != job.Running {
		t.Errorf("expected live subjob in Running, got found=%v state=%q", found, state)
	}

	if err := UpdateSjParent(parent, nil, "1[2].host", job.Queued, job.Finished); err != nil {
		t.Fatal(err)
	}
	parent.State = job.Finished
	_, state, _, err = LookupSubjob(parent, table, 2)
	if err != nil {
		t.Fatal(err)
	}
	if state != job.Finished {
		t.Errorf("state for unmaterialized index once parent is Finished = %q, want Finished", state)
	}
}
