package array

import (
	"time"

	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// Hooks bundles the side-effecting callbacks ChkArrayDoneness invokes,
// injected so this package stays free of transport, mail, and persistence
// concerns — the same indirection the teacher's registry.Hook gives its
// model lifecycle.
type Hooks struct {
	CheckBlock      func(parent *job.Job)
	RunEndHooks     func(parent *job.Job) error
	MailEnd         func(parent *job.Job)
	DependTerminate func(parent *job.Job)
	Accounting      Accounting
}

// ChkArrayDoneness is chk_array_doneness from spec.md §4.6: idempotent and
// reentrancy-safe. Two consecutive calls against the same parent produce
// the same observable state (spec.md §8's idempotence property) because
// step 7's ChkArray flag short-circuits any re-entry triggered by the
// hooks this call itself invokes.
func ChkArrayDoneness(parent *job.Job, hooks Hooks, now time.Time) error {
	info := parent.Array
	if info == nil {
		return job.Newf(job.KindInternal, "chk_array_doneness: %q is not an array parent", parent.ID)
	}

	if info.NoDelete || info.ChkArray {
		return nil
	}

	active := info.StateCounts[job.StateIndex(job.Queued)] +
		info.StateCounts[job.StateIndex(job.Running)] +
		info.StateCounts[job.StateIndex(job.Held)] +
		info.StateCounts[job.StateIndex(job.Exiting)]
	if active > 0 {
		return nil
	}

	// Step 7's guard goes up before any hook runs, so a re-entrant call
	// triggered by one of the hooks below returns at the check above.
	info.ChkArray = true

	parent.MomAddr, parent.MomPort = "", 0
	if cur, ok := parent.GetLong(svrattr.ExitStatus); ok {
		parent.ExitStatus = int(cur)
	}

	if hooks.CheckBlock != nil {
		hooks.CheckBlock(parent)
	}

	if parent.EverBegun {
		if err := parent.SetLong(svrattr.Endtime, now.Unix(), svrattr.ModeInternal); err != nil {
			info.ChkArray = false
			return err
		}
		if hooks.RunEndHooks != nil {
			if err := hooks.RunEndHooks(parent); err != nil {
				info.ChkArray = false
				return job.Wrap(job.KindSystem, err, "end hooks for %q", parent.ID)
			}
		}
		parent.State = job.Finished
		parent.Substate = int(job.Finished)

		if hooks.Accounting != nil {
			hooks.Accounting.RecordLast(parent, now)
			hooks.Accounting.RecordEnd(parent, now)
		}
		if hooks.MailEnd != nil {
			hooks.MailEnd(parent)
		}
	}

	if _, ok := parent.GetString(svrattr.Depend); ok && hooks.DependTerminate != nil {
		hooks.DependTerminate(parent)
	}

	return nil
}
