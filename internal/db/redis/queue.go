package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docchat/internal/db"
)

// Push appends a job payload to the left of the queue list.
func (s *Store) Push(ctx context.Context, queue string, payload []byte) error {
	cmd := s.b().Lpush().Key(queue).Element(string(payload)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpLPush, Err: err}
	}
	return nil
}

// Pop blocks up to timeout for the next job from the right of the queue list.
// Returns db.ErrQueueEmpty when the timeout expires with no job available.
func (s *Store) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	cmd := s.b().Brpop().Key(queue).Timeout(timeout.Seconds()).Build()
	arr, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrQueueEmpty
		}
		return nil, &db.Error{Op: db.OpBRPop, Err: err}
	}
	// BRPOP returns [key, value].
	if len(arr) < 2 {
		return nil, db.ErrQueueEmpty
	}
	payload, err := arr[1].AsBytes()
	if err != nil {
		return nil, &db.Error{Op: db.OpBRPop, Err: err}
	}
	return payload, nil
}

// QueueLen returns the number of pending jobs in the queue.
func (s *Store) QueueLen(ctx context.Context, queue string) (int, error) {
	cmd := s.b().Llen().Key(queue).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpLLen, Err: err}
	}
	return int(n), nil
}
