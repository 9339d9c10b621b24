// Job migration: when another server process writes a subjob row this
// process has never seen (e.g. the subjob migrated in from a peer), the
// in-memory array tracker on the parent needs reconciling. Tailer follows
// the jobs table's DynamoDB stream and raises that case to a
// caller-supplied reconciler.
package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// StreamsClient is the narrow DynamoDB Streams surface Tailer needs.
type StreamsClient interface {
	DescribeStream(ctx context.Context, in *dynamodbstreams.DescribeStreamInput, opts ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, in *dynamodbstreams.GetShardIteratorInput, opts ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, in *dynamodbstreams.GetRecordsInput, opts ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// Reconciler is invoked once per stream record for a job id this
// process's in-memory table does not already hold — the job-migration
// case spec.md §1 calls out.
type Reconciler func(ctx context.Context, migrated *job.Job)

// Tailer polls a DynamoDB stream shard for INSERT/MODIFY records and
// raises ones the local job.Table doesn't already know about.
type Tailer struct {
	client     StreamsClient
	streamARN  string
	table      job.Table
	attrs      *svrattr.Table
	reconcile  Reconciler
	pollPeriod time.Duration
}

// NewTailer constructs a Tailer. pollPeriod is the interval between
// GetRecords calls once a shard iterator runs dry — DynamoDB Streams has
// no long-poll, so a fixed-interval retry is the standard pattern.
func NewTailer(client StreamsClient, streamARN string, table job.Table, attrs *svrattr.Table, reconcile Reconciler, pollPeriod time.Duration) *Tailer {
	if pollPeriod <= 0 {
		pollPeriod = time.Second
	}
	return &Tailer{client: client, streamARN: streamARN, table: table, attrs: attrs, reconcile: reconcile, pollPeriod: pollPeriod}
}

// Run tails every open shard of the stream until ctx is canceled,
// returning once the shard list has been dispatched (each shard tails on
// its own goroutine).
func (t *Tailer) Run(ctx context.Context) error {
	desc, err := t.client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{StreamArn: &t.streamARN})
	if err != nil {
		return job.Wrap(job.KindSystem, err, "describing stream %q", t.streamARN)
	}
	if desc.StreamDescription == nil {
		return nil
	}

	for _, shard := range desc.StreamDescription.Shards {
		shard := shard
		go t.tailShard(ctx, shard)
	}
	return nil
}

func (t *Tailer) tailShard(ctx context.Context, shard types.Shard) {
	iter, err := t.client.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         &t.streamARN,
		ShardId:           shard.ShardId,
		ShardIteratorType: types.ShardIteratorTypeLatest,
	})
	if err != nil || iter.ShardIterator == nil {
		return
	}

	next := iter.ShardIterator
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		out, err := t.client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: next})
		if err != nil {
			time.Sleep(t.pollPeriod)
			continue
		}

		for _, rec := range out.Records {
			t.handleRecord(ctx, rec)
		}

		if out.NextShardIterator == nil {
			return // shard closed
		}
		next = out.NextShardIterator
		if len(out.Records) == 0 {
			time.Sleep(t.pollPeriod)
		}
	}
}

func (t *Tailer) handleRecord(ctx context.Context, rec types.Record) {
	if rec.EventName != types.OperationTypeInsert && rec.EventName != types.OperationTypeModify {
		return
	}
	if rec.Dynamodb == nil || rec.Dynamodb.NewImage == nil {
		return
	}

	var row jobRow
	if err := attributevalue.UnmarshalMap(rec.Dynamodb.NewImage, &row); err != nil {
		return
	}
	if row.JobID == "" {
		return
	}
	if _, ok := t.table.Find(row.JobID); ok {
		return // already known locally, not a migration
	}

	decoded, err := decodeRow(row, t.attrs)
	if err != nil {
		return
	}
	t.table.Put(decoded)
	if t.reconcile != nil {
		t.reconcile(ctx, decoded)
	}
}
