package job

import (
	"testing"
	"time"

	"github.com/hpcflow/jobcore/pkg/svrattr"
)

func newTestJob(id string) *Job {
	table := svrattr.NewTable()
	return New(Header{ID: id, Created: time.Unix(0, 0)}, table)
}

func TestNew_InitialState(t *testing.T) {
	j := newTestJob("1.host")
	if j.State != Transit {
		t.Errorf("new job state = %q, want Transit", j.State)
	}
	if j.GetKey() != "1.host" {
		t.Errorf("GetKey() = %q, want %q", j.GetKey(), "1.host")
	}
}

func TestJob_TypedAccessors(t *testing.T) {
	j := newTestJob("1.host")

	if err := j.SetLong(svrattr.ExitStatus, 42, svrattr.ModeInternal); err != nil {
		t.Fatal(err)
	}
	n, ok := j.GetLong(svrattr.ExitStatus)
	if !ok || n != 42 {
		t.Errorf("GetLong(ExitStatus) = (%d, %v), want (42, true)", n, ok)
	}

	if err := j.SetStringSlim(svrattr.JobName, "myjob", svrattr.ModeInternal); err != nil {
		t.Fatal(err)
	}
	s, ok := j.GetString(svrattr.JobName)
	if !ok || s != "myjob" {
		t.Errorf("GetString(JobName) = (%q, %v), want (%q, true)", s, ok, "myjob")
	}

	if err := j.SetBool(svrattr.ArrayFlag, true, svrattr.ModeInternal); err != nil {
		t.Fatal(err)
	}
	b, ok := j.GetBool(svrattr.ArrayFlag)
	if !ok || !b {
		t.Errorf("GetBool(ArrayFlag) = (%v, %v), want (true, true)", b, ok)
	}

	if _, ok := j.GetLong(svrattr.Endtime); ok {
		t.Error("GetLong on an unset attribute should report ok=false")
	}
}

func TestMemTable(t *testing.T) {
	table := NewMemTable()
	parent := newTestJob("1[].host")
	sub := newTestJob("1[0].host")

	table.Put(parent)
	table.Put(sub)

	if _, ok := table.Find("1[].host"); !ok {
		t.Fatal("expected to find parent")
	}
	if len(table.All()) != 2 {
		t.Fatalf("All() len = %d, want 2", len(table.All()))
	}

	table.Delete("1[0].host")
	if _, ok := table.Find("1[0].host"); ok {
		t.Error("expected subjob to be gone after Delete")
	}
	if len(table.All()) != 1 {
		t.Errorf("All() len after delete = %d, want 1", len(table.All()))
	}
}

func TestStateIndex_Unique(t *testing.T) {
	seen := make(map[int]State)
	for _, s := range stateOrder {
		idx := stateIndex(s)
		if idx < 0 || idx >= numStates {
			t.Fatalf("stateIndex(%q) = %d, out of range", s, idx)
		}
		if other, ok := seen[idx]; ok {
			t.Fatalf("states %q and %q collide at index %d", s, other, idx)
		}
		seen[idx] = s
	}
}
