package array

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/hpcflow/jobcore/pkg/job"
)

// Accounting emits the LAST and END records spec.md §4.6 step 5c requires
// when an array parent that ever began execution finishes. Timestamps use
// protobuf's well-known Timestamp type so records share a wire format
// with anything else in the server that already speaks protobuf.
type Accounting interface {
	RecordLast(parent *job.Job, at time.Time)
	RecordEnd(parent *job.Job, at time.Time)
}

// Record is a single accounting line.
type Record struct {
	Kind      string // "LAST" or "END"
	JobID     string
	ExitClass int
	At        *timestamppb.Timestamp
}

// LogAccounting is an in-memory Accounting sink, the default before a
// durable one is wired in, and what tests assert against.
type LogAccounting struct {
	Records []Record
}

func (a *LogAccounting) RecordLast(parent *job.Job, at time.Time) {
	a.Records = append(a.Records, Record{
		Kind:      "LAST",
		JobID:     parent.ID,
		ExitClass: parent.ExitStatus,
		At:        timestamppb.New(at),
	})
}

func (a *LogAccounting) RecordEnd(parent *job.Job, at time.Time) {
	a.Records = append(a.Records, Record{
		Kind:      "END",
		JobID:     parent.ID,
		ExitClass: parent.ExitStatus,
		At:        timestamppb.New(at),
	})
}
