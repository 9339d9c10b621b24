// Package store persists Job and ArrayInfo rows to DynamoDB, realizing
// the "pbs.queue"-style row schema spec.md §6 describes for the jobs
// table: a primary key plus a handful of typed columns, and an opaque
// attribute blob the core treats as a map modulo column names. The
// attribute blob plays the role spec.md's hstore column plays — persisted
// via attributevalue the same way the teacher persists its model structs
// (pkg/model/beta, pkg/model/model/target.go).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// Client is the narrow DynamoDB surface Store needs, satisfied by
// *dynamodb.Client.
type Client interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// jobRow is the row shape written to DynamoDB: a job's fixed header and
// lifecycle state as typed columns, array-tracker fields flattened
// alongside (present only on array parents), and the attribute store as
// an opaque string-keyed blob — column names are a persistence detail the
// rest of the core never inspects, per spec.md §6.
type jobRow struct {
	JobID          string            `dynamodbav:"job_id"`
	FilePrefix     string            `dynamodbav:"file_prefix"`
	Owner          string            `dynamodbav:"owner"`
	CreatedUnix    int64             `dynamodbav:"created_unix"`
	QueueHandle    string            `dynamodbav:"queue_handle"`
	ReservationID  string            `dynamodbav:"reservation_handle"`
	State          string            `dynamodbav:"state"`
	Substate       int               `dynamodbav:"substate"`
	Flags          uint8             `dynamodbav:"flags"`
	ExitStatus     int               `dynamodbav:"exit_status"`
	StageoutStatus int               `dynamodbav:"stageout_status"`
	ParentID       string            `dynamodbav:"parent_id,omitempty"`
	Index          int               `dynamodbav:"array_index,omitempty"`
	EverBegun      bool              `dynamodbav:"ever_begun"`
	QRank          int64             `dynamodbav:"qrank"`
	Attributes     map[string]string `dynamodbav:"attributes"` // opaque blob, spec.md §6

	// Array tracker columns, present only when Flags has IS_ARRAY_PARENT.
	ArrayTotal      int    `dynamodbav:"array_total,omitempty"`
	ArrayStart      int    `dynamodbav:"array_start,omitempty"`
	ArrayEnd        int    `dynamodbav:"array_end,omitempty"`
	ArrayStep       int    `dynamodbav:"array_step,omitempty"`
	ArrayDispatched int    `dynamodbav:"array_dispatched,omitempty"`
	ArrayRemaining  string `dynamodbav:"array_remaining,omitempty"`

	// RevisionID is a correlation id stamped on every write, the same
	// pattern job_event.go uses for EventID/TraceID — useful for
	// deduplicating a row re-delivered by the streams migration tailer.
	RevisionID string `dynamodbav:"revision_id"`
}

// Store is a DynamoDB-backed job.Table.
type Store struct {
	client Client
	table  string
	attrs  *svrattr.Table
}

// New constructs a Store against tableName using client.
func New(client Client, tableName string, attrs *svrattr.Table) *Store {
	return &Store{client: client, table: tableName, attrs: attrs}
}

// Put persists j, encoding its attribute store's snapshot into the
// opaque blob and flattening tracker fields when j is an array parent.
func (s *Store) Put(ctx context.Context, j *job.Job) error {
	row := jobRow{
		JobID:          j.ID,
		FilePrefix:     j.FilePrefix,
		Owner:          j.Owner,
		CreatedUnix:    j.Created.Unix(),
		QueueHandle:    j.QueueHandle,
		ReservationID:  j.ReservationHandle,
		State:          string(j.State),
		Substate:       j.Substate,
		Flags:          uint8(j.Flags),
		ExitStatus:     j.ExitStatus,
		StageoutStatus: j.StageoutStatus,
		ParentID:       j.ParentID,
		Index:          j.Index,
		EverBegun:      j.EverBegun,
		QRank:          j.QRank,
		Attributes:     encodeAttrs(j, s.attrs),
		RevisionID:     uuid.New().String(),
	}
	if j.Array != nil {
		row.ArrayTotal = j.Array.Total
		row.ArrayStart = j.Array.Start
		row.ArrayEnd = j.Array.End
		row.ArrayStep = j.Array.Step
		row.ArrayDispatched = j.Array.Dispatched
		if j.Array.QueuedList != nil {
			row.ArrayRemaining = j.Array.QueuedList.Serialize()
		} else {
			row.ArrayRemaining = "-"
		}
	}

	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return job.Wrap(job.KindSystem, err, "marshaling job row %q", j.ID)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	if err != nil {
		return job.Wrap(job.KindSystem, err, "putting job row %q", j.ID)
	}
	return nil
}

// Get loads a job by id, rebuilding its attribute store from the
// persisted blob. Array-parent rows come back with ArrayInfo.QueuedList
// already rebuilt: decodeRow runs job.RecoveryFixup against the persisted
// array_remaining column.
func (s *Store) Get(ctx context.Context, id string) (*job.Job, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, false, job.Wrap(job.KindSystem, err, "getting job row %q", id)
	}
	if out.Item == nil {
		return nil, false, nil
	}

	var row jobRow
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, false, job.Wrap(job.KindSystem, err, "unmarshaling job row %q", id)
	}
	j, err := decodeRow(row, s.attrs)
	if err != nil {
		return nil, false, err
	}
	return j, true, nil
}

// Delete removes a job row.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return job.Wrap(job.KindSystem, err, "deleting job row %q", id)
	}
	return nil
}

// All scans the full table. Fine at the size this server's job table
// reaches; a production deployment would page a GSI by state instead.
func (s *Store) All(ctx context.Context) ([]*job.Job, error) {
	var jobs []*job.Job
	var start map[string]types.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &s.table,
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, job.Wrap(job.KindSystem, err, "scanning %q", s.table)
		}
		for _, item := range out.Items {
			var row jobRow
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, job.Wrap(job.KindSystem, err, "unmarshaling job row")
			}
			j, err := decodeRow(row, s.attrs)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, j)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		start = out.LastEvaluatedKey
	}
	return jobs, nil
}

// arrayTrackerIDs are reconstructed from the flattened ArrayTotal/Start/
// End/Step/ArrayRemaining columns via job.RecoveryFixup rather than
// replayed through the normal attribute Set path, so they are excluded
// from the opaque blob — replaying array_indices_submitted through Set
// would run its install action a second time, building a tracker that
// decodeRow then replaces with the one it rebuilds from those columns.
var arrayTrackerIDs = map[svrattr.ID]bool{
	svrattr.ArrayIndicesSubmitted: true,
	svrattr.ArrayIndicesRemaining: true,
	svrattr.ArrayStateCount:       true,
}

func encodeAttrs(j *job.Job, attrs *svrattr.Table) map[string]string {
	out := make(map[string]string)
	for id, entry := range j.Attrs.Snapshot() {
		if arrayTrackerIDs[id] {
			continue
		}
		def := attrs.Def(id)
		if def == nil {
			continue
		}
		encoded, err := def.Encode(entry.Value)
		if err != nil {
			continue
		}
		out[def.Name()] = encoded
	}
	return out
}

func decodeRow(row jobRow, attrs *svrattr.Table) (*job.Job, error) {
	header := job.Header{
		ID:                row.JobID,
		FilePrefix:        row.FilePrefix,
		Owner:             row.Owner,
		Created:           time.Unix(row.CreatedUnix, 0).UTC(),
		QueueHandle:       row.QueueHandle,
		ReservationHandle: row.ReservationID,
	}
	j := job.New(header, attrs)
	j.State = job.State(row.State[0])
	j.Substate = row.Substate
	j.Flags = job.Flag(row.Flags)
	j.ExitStatus = row.ExitStatus
	j.StageoutStatus = row.StageoutStatus
	j.ParentID = row.ParentID
	j.Index = row.Index
	j.EverBegun = row.EverBegun
	j.QRank = row.QRank

	for name, raw := range row.Attributes {
		id, def, err := attrs.Lookup(name)
		if err != nil || arrayTrackerIDs[id] {
			continue // unknown column: forward-compatible skip, not a load failure
		}
		val, err := def.Decode(raw)
		if err != nil {
			return nil, job.Wrap(job.KindSystem, err, "decoding attribute %q on %q", name, row.JobID)
		}
		if err := j.Attrs.Set(id, val, svrattr.ModeRecov); err != nil {
			return nil, fmt.Errorf("store: replaying attribute %q on %q: %w", name, row.JobID, err)
		}
	}

	if row.Flags&uint8(job.FlagIsArrayParent) != 0 {
		j.Array = &job.ArrayInfo{
			Total:      row.ArrayTotal,
			Start:      row.ArrayStart,
			End:        row.ArrayEnd,
			Step:       row.ArrayStep,
			Dispatched: row.ArrayDispatched,
		}
		if err := job.RecoveryFixup(j, row.ArrayRemaining); err != nil {
			return nil, err
		}
	}
	return j, nil
}
