// Package worker runs the background ingestion workers that drain the job
// queue and drive the pipeline.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/metrics"
	"github.com/kailas-cloud/docchat/internal/repository/queue"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
)

// JobSource supplies pending ingestion jobs.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (queue.Job, error)
	Depth(ctx context.Context) (int, error)
}

// Pipeline processes one document.
type Pipeline interface {
	Ingest(ctx context.Context, documentID string) (ingest.Report, error)
}

// Pool runs a fixed number of ingestion workers. Stop waits for in-flight
// documents; jobs still queued stay queued for the next start.
type Pool struct {
	jobs        JobSource
	pipeline    Pipeline
	workers     int
	pollTimeout time.Duration
	logger      *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a worker pool.
func New(jobs JobSource, pipeline Pipeline, workers int, pollTimeout time.Duration, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Pool{
		jobs:        jobs,
		pipeline:    pipeline,
		workers:     workers,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Start launches the workers. The given context carries the logger; Stop
// cancels the derived context.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}

	p.logger.Info("Ingestion workers started", zap.Int("workers", p.workers))
}

// Stop cancels job polling and blocks until in-flight documents finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("Ingestion workers stopped")
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.With(zap.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx, p.pollTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrNoJob) || ctx.Err() != nil {
				continue
			}
			log.Error("Dequeue failed", zap.Error(err))
			continue
		}

		p.observeDepth(ctx)

		// the in-flight document finishes even during shutdown
		report, err := p.pipeline.Ingest(context.WithoutCancel(ctx), job.DocumentID)
		if err != nil {
			log.Warn("Document ingestion failed",
				zap.String("document_id", job.DocumentID),
				zap.Error(err))
			continue
		}
		log.Debug("Document ingested",
			zap.String("document_id", job.DocumentID),
			zap.Int("chunk_count", report.ChunkCount))
	}
}

func (p *Pool) observeDepth(ctx context.Context) {
	if depth, err := p.jobs.Depth(ctx); err == nil {
		metrics.IngestQueueDepth.Set(float64(depth))
	}
}
