package subjob

import (
	"time"

	"github.com/hpcflow/jobcore/pkg/job"
)

// RequestKind is the subset of batch request types spec.md §4.5's request
// duplication applies to: operations a caller issued against an array
// parent that must fan out to one request per materialized subjob.
type RequestKind int

const (
	RequestUnknown RequestKind = iota
	RequestDeleteJobList
	RequestDeleteJob
	RequestSignalJob
	RequestRerun
	RequestRunJob
)

// BatchRequest is the identity/permission envelope a caller-issued request
// carries, grounded on the original's struct batch_request
// (original_source/src/server/array_func.c's dup_br_for_subjob): the
// fields dup_br_for_subjob copies verbatim (permissions, connection,
// submitter identity, timestamp, extension data) plus the target object
// name each request kind addresses.
type BatchRequest struct {
	Kind       RequestKind
	Perm       uint32
	FromServer bool
	Conn       int
	OrgConn    int
	Time       time.Time
	User       string
	Host       string
	Extend     string
	ObjectName string // rq_objname / rq_jid: the job or subjob this request targets
	Signal     string // only meaningful for RequestSignalJob

	parent   *BatchRequest
	refCount int
}

// RefCount reports how many subjob-scoped requests have been spawned from
// req and not yet released — the parent reply withholds completion until
// this reaches zero, the same fan-out-then-join a batch delete/signal/
// rerun/run against an array parent performs.
func (req *BatchRequest) RefCount() int { return req.refCount }

// Release drops one reference a cloned request held against its parent,
// called once the cloned request's operation against its subjob has
// completed (rq_parentbr's refct decrement in the original).
func (req *BatchRequest) Release() {
	if req.parent != nil {
		req.parent.refCount--
	}
}

// DupBrForSubjob is dup_br_for_subjob from spec.md §4.5: clone opreq — a
// delete/signal/rerun/run request issued against an array parent — into a
// request scoped to a single subjob, carrying forward the original's
// identity and permissions unchanged and retargeting the object name to
// subjobID. The parent request's reference count is incremented so its
// reply waits for every spawned child request to complete.
func DupBrForSubjob(opreq *BatchRequest, subjobID string) (*BatchRequest, error) {
	switch opreq.Kind {
	case RequestDeleteJobList, RequestDeleteJob, RequestSignalJob, RequestRerun, RequestRunJob:
	default:
		return nil, job.Newf(job.KindIvalreq, "request kind %d cannot be duplicated for a subjob", opreq.Kind)
	}

	npreq := &BatchRequest{
		Kind:       opreq.Kind,
		Perm:       opreq.Perm,
		FromServer: opreq.FromServer,
		Conn:       opreq.Conn,
		OrgConn:    opreq.OrgConn,
		Time:       opreq.Time,
		User:       opreq.User,
		Host:       opreq.Host,
		Extend:     opreq.Extend,
		ObjectName: subjobID,
		Signal:     opreq.Signal,
		parent:     opreq,
	}
	opreq.refCount++
	return npreq, nil
}
