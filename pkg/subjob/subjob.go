// Package subjob implements the subjob factory (component C5, spec.md
// §4.5): materializing one array index into a live job record, copying
// the parent's attribute set, and expanding path templates.
package subjob

import (
	"strconv"
	"strings"
	"time"

	"github.com/hpcflow/jobcore/pkg/array"
	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// pathToken is the template token spec.md §4.5 expands in outpath/errpath.
const pathToken = "^array_index^"

// neverCopied are attribute ids the factory handles explicitly (or that
// are parent-only bookkeeping) rather than copying verbatim from the
// parent's store.
var neverCopied = map[svrattr.ID]bool{
	svrattr.ArrayIndicesSubmitted: true,
	svrattr.ArrayIndicesRemaining: true,
	svrattr.ArrayStateCount:       true,
	svrattr.ArrayFlag:             true,
	svrattr.ArrayID:               true,
	svrattr.ArrayIndex:            true,
}

// Queue is the minimal surface create_subjob needs from the queue
// manager: enqueue the new subjob, or report refusal.
type Queue interface {
	Enqueue(j *job.Job) error
}

// Options carries the ambient state spec.md §4.5 steps 5–6 depend on:
// the current wallclock and whether eligible-time accounting is enabled.
type Options struct {
	Now                   time.Time
	EligibleTimeAccruing   bool
	EligibleTimeAccounting bool
}

// CreateSubjob is create_subjob(parent, newJid) from spec.md §4.5.
func CreateSubjob(parent *job.Job, index int, table job.Table, attrTable *svrattr.Table, q Queue, opts Options) (*job.Job, error) {
	if !parent.Flags.Has(job.FlagIsArrayParent) || parent.Array == nil {
		return nil, job.Newf(job.KindIvalreq, "%q is not an array parent", parent.ID)
	}
	if !parent.Array.Contains(index) {
		return nil, job.Newf(job.KindIvalreq, "index %d is not a member of %q's submitted range", index, parent.ID)
	}

	newJid, err := job.SubjobID(parent.ID, index)
	if err != nil {
		return nil, job.Wrap(job.KindIvalreq, err, "building subjob id for %q index %d", parent.ID, index)
	}

	// Step 1: copy the fixed header verbatim, then overwrite id and
	// file prefix.
	header := parent.Header
	header.ID = newJid
	header.FilePrefix = ""

	sj := job.New(header, attrTable)
	sj.ParentID = parent.ID
	sj.Index = index

	// Step 2: copy the attribute set, carrying forward only the Default
	// flag bit.
	for id, entry := range parent.Attrs.Snapshot() {
		if neverCopied[id] {
			continue
		}
		if entry.Flags.Has(svrattr.FlagDefault) {
			sj.Attrs.SetDefault(id, entry.Value)
			continue
		}
		if err := sj.Attrs.Set(id, entry.Value, svrattr.ModeInternal); err != nil {
			return nil, job.Wrap(job.KindInternal, err, "copying attribute to subjob %q", newJid)
		}
	}

	// Step 3: array_id / array_index via the internal path, no action.
	if err := sj.Attrs.Set(svrattr.ArrayID, parent.ID, svrattr.ModeInternal); err != nil {
		return nil, err
	}
	if err := sj.Attrs.Set(svrattr.ArrayIndex, int64(index), svrattr.ModeInternal); err != nil {
		return nil, err
	}

	// Step 4: subjob flags/substate, then the (Queued, Queued) transition.
	// The tracker already counted this index as Queued when the parent's
	// range was installed, so this "transition" is the no-op
	// UpdateSjParent's own oldState==newState guard produces — it exists
	// here only to mirror the normal transition path every later subjob
	// state change also goes through.
	sj.Flags &^= job.FlagIsArrayParent
	sj.Flags |= job.FlagIsSubjob
	sj.State = job.Queued
	sj.Substate = int(job.Queued)
	if err := array.UpdateSjParent(parent, sj, newJid, job.Queued, job.Queued); err != nil {
		return nil, err
	}

	// Step 6: qrank for queue ordering.
	sj.QRank = opts.Now.UnixMilli()

	// Step 5: eligible_time accrual.
	if opts.EligibleTimeAccounting {
		parentEligible, _ := parent.GetLong(svrattr.EligibleTime)
		if opts.EligibleTimeAccruing {
			parentSample, _ := parent.GetLong(svrattr.SampleStartTime)
			sjSample, _ := sj.GetLong(svrattr.SampleStartTime)
			if err := sj.SetLong(svrattr.EligibleTime, parentEligible+(sjSample-parentSample), svrattr.ModeInternal); err != nil {
				return nil, err
			}
		} else if err := sj.SetLong(svrattr.EligibleTime, parentEligible, svrattr.ModeInternal); err != nil {
			return nil, err
		}
	}

	// Step 8: path template expansion, before enqueue so the queue
	// manager sees final paths.
	if outPath, ok := sj.GetString(svrattr.OutPath); ok {
		if err := sj.Attrs.Set(svrattr.OutPath, expandPathTemplate(outPath, index), svrattr.ModeInternal); err != nil {
			return nil, err
		}
	}
	if errPath, ok := sj.GetString(svrattr.ErrPath); ok {
		if err := sj.Attrs.Set(svrattr.ErrPath, expandPathTemplate(errPath, index), svrattr.ModeInternal); err != nil {
			return nil, err
		}
	}

	// Step 7: enqueue; on failure purge the new job.
	if q != nil {
		if err := q.Enqueue(sj); err != nil {
			return nil, job.Wrap(job.KindIvalreq, err, "enqueue refused for subjob %q", newJid)
		}
	}
	table.Put(sj)

	return sj, nil
}

// expandPathTemplate implements spec.md §4.5's path template expansion:
// a single occurrence of ^array_index^ is replaced with index; anything
// else is returned unchanged.
func expandPathTemplate(path string, index int) string {
	if !strings.Contains(path, pathToken) {
		return path
	}
	return strings.Replace(path, pathToken, strconv.Itoa(index), 1)
}
