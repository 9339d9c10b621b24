package cred

import (
	"errors"
	"testing"
	"time"

	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

func TestTunables_Validate_RejectsBelowFloor(t *testing.T) {
	tun := Tunables{Enable: true, RenewPeriod: 100 * time.Second, CacheRenewPeriod: 7200 * time.Second}
	if _, err := tun.Validate(); err == nil {
		t.Fatal("expected error when cred_renew_period is below SVRRenewCredsInterval")
	}

	tun2 := Tunables{Enable: true, RenewPeriod: 3600 * time.Second, CacheRenewPeriod: 100 * time.Second}
	if _, err := tun2.Validate(); err == nil {
		t.Fatal("expected error when cred_renew_cache_period is below SVRRenewCredsInterval")
	}
}

func TestTunables_Validate_WarnsOnCrossCondition(t *testing.T) {
	tun := DefaultTunables()
	tun.Enable = true
	tun.RenewPeriod = 8000 * time.Second
	tun.CacheRenewPeriod = 7200 * time.Second

	warnings, err := tun.Validate()
	if err != nil {
		t.Fatalf("expected no hard error, got %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestTunables_Validate_DefaultsAreClean(t *testing.T) {
	warnings, err := DefaultTunables().Validate()
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("default tunables produced warnings: %v", warnings)
	}
}

func newRunningJob(t *testing.T, id string, credValidity int64) *job.Job {
	t.Helper()
	table := svrattr.NewTable()
	j := job.New(job.Header{ID: id, Created: time.Unix(0, 0)}, table)
	j.State = job.Running
	if err := j.Attrs.Set(svrattr.CredID, "cred-1", svrattr.ModeInternal); err != nil {
		t.Fatal(err)
	}
	if err := j.SetLong(svrattr.CredValidity, credValidity, svrattr.ModeInternal); err != nil {
		t.Fatal(err)
	}
	return j
}

func TestCandidatesForRenewal_WithinHorizon(t *testing.T) {
	now := time.Unix(10_000, 0)
	table := job.NewMemTable()

	dueSoon := newRunningJob(t, "1.host", now.Add(1800*time.Second).Unix())
	notDue := newRunningJob(t, "2.host", now.Add(7200*time.Second).Unix())
	table.Put(dueSoon)
	table.Put(notDue)

	tun := Tunables{Enable: true, RenewPeriod: 3600 * time.Second, CacheRenewPeriod: 7200 * time.Second}
	r := New(tun, table, nil, nil, func() time.Time { return now })

	ids := r.candidatesForRenewal(now)
	if len(ids) != 1 || ids[0] != "1.host" {
		t.Errorf("candidatesForRenewal = %v, want [\"1.host\"]", ids)
	}
}

func TestCandidatesForRenewal_SkipsNonRunningAndNoCred(t *testing.T) {
	now := time.Unix(10_000, 0)
	table := job.NewMemTable()

	queued := newRunningJob(t, "1.host", now.Add(100*time.Second).Unix())
	queued.State = job.Queued
	table.Put(queued)

	attrTable := svrattr.NewTable()
	noCred := job.New(job.Header{ID: "2.host"}, attrTable)
	noCred.State = job.Running
	table.Put(noCred)

	tun := Tunables{Enable: true, RenewPeriod: 3600 * time.Second, CacheRenewPeriod: 7200 * time.Second}
	r := New(tun, table, nil, nil, func() time.Time { return now })

	if ids := r.candidatesForRenewal(now); len(ids) != 0 {
		t.Errorf("candidatesForRenewal = %v, want none", ids)
	}
}

type fakeSender struct {
	calls []string
	err   error
}

func (f *fakeSender) SendCred(j *job.Job) error {
	f.calls = append(f.calls, j.ID)
	return f.err
}

func TestRenewOne_VanishedJobIsNotAnError(t *testing.T) {
	table := job.NewMemTable()
	sender := &fakeSender{}
	r := New(DefaultTunables(), table, sender, nil, nil)

	r.renewOne("gone.host")
	if len(sender.calls) != 0 {
		t.Error("renewOne should no-op silently when the job is gone")
	}
}

func TestRenewOne_CallsSenderForRunningJobWithCred(t *testing.T) {
	table := job.NewMemTable()
	j := newRunningJob(t, "1.host", time.Now().Unix())
	table.Put(j)

	sender := &fakeSender{}
	r := New(DefaultTunables(), table, sender, nil, nil)
	r.renewOne("1.host")

	if len(sender.calls) != 1 || sender.calls[0] != "1.host" {
		t.Errorf("sender.calls = %v, want [\"1.host\"]", sender.calls)
	}
}

func TestRenewOne_SenderFailureIsLoggedNotFatal(t *testing.T) {
	table := job.NewMemTable()
	j := newRunningJob(t, "1.host", time.Now().Unix())
	table.Put(j)

	sender := &fakeSender{err: errors.New("transient")}
	r := New(DefaultTunables(), table, sender, nil, nil)

	r.renewOne("1.host") // must not panic
}
