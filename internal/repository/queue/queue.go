// Package queue hands ingestion jobs from the upload handler to the worker
// pool through a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/docchat/internal/db"
	"github.com/kailas-cloud/docchat/internal/domain"
)

// QueueKey is the Redis list holding pending ingestion jobs.
const QueueKey = domain.KeyPrefix + "ingest:queue"

// ErrNoJob is returned by Pop when no job arrived within the poll timeout.
var ErrNoJob = errors.New("no job available")

// Job is one unit of ingestion work.
type Job struct {
	DocumentID string `json:"document_id"`
}

// store is the consumer interface for the job queue (ISP).
type store interface {
	Push(ctx context.Context, queue string, payload []byte) error
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	QueueLen(ctx context.Context, queue string) (int, error)
}

// Queue is the ingestion job queue.
type Queue struct {
	store store
}

// New creates an ingestion job queue.
func New(s store) *Queue {
	return &Queue{store: s}
}

// Enqueue pushes an ingestion job for a document.
func (q *Queue) Enqueue(ctx context.Context, documentID string) error {
	payload, err := json.Marshal(Job{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.store.Push(ctx, QueueKey, payload); err != nil {
		return fmt.Errorf("enqueue %s: %w", documentID, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. Returns ErrNoJob when the
// timeout expires with the queue empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	payload, err := q.store.Pop(ctx, QueueKey, timeout)
	if err != nil {
		if errors.Is(err, db.ErrQueueEmpty) {
			return Job{}, ErrNoJob
		}
		return Job{}, fmt.Errorf("dequeue: %w", err)
	}

	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, fmt.Errorf("unmarshal job %q: %w", payload, err)
	}
	if job.DocumentID == "" {
		return Job{}, fmt.Errorf("job without document_id: %q", payload)
	}
	return job, nil
}

// Depth returns the number of pending jobs.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	n, err := q.store.QueueLen(ctx, QueueKey)
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
