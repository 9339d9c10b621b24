// Package cred implements the credential renewer (component C7, spec.md
// §4.7): a recurring sweep over the all-jobs table that schedules a
// jittered one-shot renewal for any running job whose credential is
// close to expiry, plus per-job renewal tasks that are idempotent and
// cancellation-safe by construction — they carry only a job id and
// silently no-op if the job is gone when they fire (spec.md §5).
package cred

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// SVRRenewCredsInterval is SVR_RENEW_CREDS_TM from spec.md §4.7: the
// fixed period of the recurring sweep, and the floor every tunable below
// is validated against.
const SVRRenewCredsInterval = 300 * time.Second

// RetryBackoff is the named retry interval after a failed renewal,
// mirroring the legacy server's lastcredstime=now+120 convention. Nothing
// in this package schedules a retry with it: renewOne logs a failure and
// returns, and the job is picked up again by a later Sweep if still due.
const RetryBackoff = 120 * time.Second

// Tunables holds the three server knobs spec.md §4.7 names.
type Tunables struct {
	Enable           bool
	RenewPeriod      time.Duration // default 3600s
	CacheRenewPeriod time.Duration // default 7200s
}

// DefaultTunables matches spec.md §4.7's stated defaults.
func DefaultTunables() Tunables {
	return Tunables{
		Enable:           false,
		RenewPeriod:      3600 * time.Second,
		CacheRenewPeriod: 7200 * time.Second,
	}
}

// Validate enforces the hard floors spec.md §4.7 states (each tunable
// must be ≥ SVRRenewCredsInterval) and returns non-fatal warnings for the
// cross-tunable conditions the spec says to warn, not reject, on.
func (t Tunables) Validate() (warnings []string, err error) {
	if t.RenewPeriod < SVRRenewCredsInterval {
		return nil, fmt.Errorf("cred: cred_renew_period %s is below the %s floor", t.RenewPeriod, SVRRenewCredsInterval)
	}
	if t.CacheRenewPeriod < SVRRenewCredsInterval {
		return nil, fmt.Errorf("cred: cred_renew_cache_period %s is below the %s floor", t.CacheRenewPeriod, SVRRenewCredsInterval)
	}
	if t.RenewPeriod > t.CacheRenewPeriod {
		warnings = append(warnings, fmt.Sprintf("cred_renew_period %s exceeds cred_renew_cache_period %s", t.RenewPeriod, t.CacheRenewPeriod))
	}
	return warnings, nil
}

// Sender is the narrow surface the per-job renewal task needs to actually
// renew a credential — kept separate so this package has no transport
// dependency.
type Sender interface {
	SendCred(j *job.Job) error
}

// Renewer drives the sweep and per-job renewal tasks.
type Renewer struct {
	tunables Tunables
	table    job.Table
	sender   Sender
	cron     *cron.Cron
	logger   *slog.Logger
	rng      *rand.Rand
	now      func() time.Time
}

// New constructs a Renewer. now defaults to time.Now if nil — tests pass
// a fixed clock instead.
func New(tunables Tunables, table job.Table, sender Sender, logger *slog.Logger, now func() time.Time) *Renewer {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Renewer{
		tunables: tunables,
		table:    table,
		sender:   sender,
		cron:     cron.New(),
		logger:   logger,
		rng:      rand.New(rand.NewSource(now().UnixNano())),
		now:      now,
	}
}

// Start registers the recurring sweep and starts the cron scheduler. It
// is a no-op if tunables.Enable is false.
func (r *Renewer) Start() error {
	if !r.tunables.Enable {
		return nil
	}
	spec := fmt.Sprintf("@every %s", SVRRenewCredsInterval)
	if _, err := r.cron.AddFunc(spec, r.Sweep); err != nil {
		return fmt.Errorf("cred: registering sweep: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (r *Renewer) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Sweep is the recurring task from spec.md §4.7: for every running job
// whose cred_validity falls within cred_renew_period seconds of now, it
// schedules one per-job renewal task at a random offset in
// [0, SVRRenewCredsInterval).
func (r *Renewer) Sweep() {
	for _, jobID := range r.candidatesForRenewal(r.now()) {
		delay := time.Duration(r.rng.Int63n(int64(SVRRenewCredsInterval)))
		id := jobID
		time.AfterFunc(delay, func() { r.renewOne(id) })
	}
}

// candidatesForRenewal returns the ids of running jobs whose credential
// is due within cred_renew_period seconds of now — the selection logic
// of Sweep, split out so it can be asserted on without relying on real
// timers firing.
func (r *Renewer) candidatesForRenewal(now time.Time) []string {
	horizon := now.Add(r.tunables.RenewPeriod).Unix()

	var ids []string
	for _, j := range r.table.All() {
		if j.State != job.Running {
			continue
		}
		credID, ok := j.GetString(svrattr.CredID)
		if !ok || credID == "" {
			continue
		}
		validity, ok := j.GetLong(svrattr.CredValidity)
		if !ok || validity > horizon {
			continue
		}
		ids = append(ids, j.ID)
	}
	return ids
}

// renewOne is the per-job renewal task. It re-resolves the job by id —
// the cancellation model spec.md §5 describes: if the job vanished in
// the meantime, that is not an error, just a silent no-op.
func (r *Renewer) renewOne(jobID string) {
	j, ok := r.table.Find(jobID)
	if !ok {
		return
	}
	if j.State != job.Running {
		return
	}
	credID, ok := j.GetString(svrattr.CredID)
	if !ok || credID == "" {
		return
	}

	if err := r.sender.SendCred(j); err != nil {
		r.logger.Warn("credential renewal failed", "job_id", jobID, "error", err)
		return
	}
	r.logger.Debug("credential renewed", "job_id", jobID)
}
