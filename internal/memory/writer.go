package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/storage"
)

// writeTimeout bounds a single backend write performed by the writer.
const writeTimeout = 30 * time.Second

// writeJob is one unit of work for the writer. A job with a non-nil barrier
// carries no data; the writer closes the barrier when it reaches it, which
// tells Flush that every earlier job has been processed.
type writeJob struct {
	namespace string
	key       string
	data      []byte
	barrier   chan struct{}
}

// writer is the single goroutine that persists snapshots. Jobs are processed
// strictly in enqueue order, so the last snapshot enqueued is the last one
// written and the document on disk always matches some prefix of mutations.
type writer struct {
	blobs   storage.BlobStore
	logger  *zap.Logger
	onError func(error)

	mu     sync.Mutex
	queue  []writeJob
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newWriter(blobs storage.BlobStore, logger *zap.Logger, onError func(error)) *writer {
	w := &writer{
		blobs:   blobs,
		logger:  logger,
		onError: onError,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue appends a job without blocking. It returns false once the writer
// has been closed.
func (w *writer) enqueue(job writeJob) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, job)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// pending returns the number of queued jobs, barriers included.
func (w *writer) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// flush waits until every job enqueued before the call has been written.
func (w *writer) flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !w.enqueue(writeJob{barrier: barrier}) {
		// Closed: run drains the queue before exiting.
		select {
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting jobs and waits for the queue to drain.
func (w *writer) close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) run() {
	defer close(w.done)

	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			<-w.wake
			continue
		}
		job := w.queue[0]
		w.queue[0] = writeJob{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.process(job)
	}
}

func (w *writer) process(job writeJob) {
	if job.barrier != nil {
		close(job.barrier)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := w.blobs.Put(ctx, job.namespace, job.key, job.data); err != nil {
		w.logger.Error("memory: failed to persist snapshot",
			zap.String("namespace", job.namespace),
			zap.String("key", job.key),
			zap.Error(err))
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.logger.Debug("memory: snapshot persisted",
		zap.String("key", job.key),
		zap.Int("bytes", len(job.data)))
}
