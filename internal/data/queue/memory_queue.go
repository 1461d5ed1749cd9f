package queue

import (
	"context"
	"io"
	"sync"
	"time"

	"cobolscan/internal/core/ports"
)

var _ ports.WriteQueuePort = (*MemoryQueue)(nil)

// MemoryQueue is a bounded FIFO of symbol store writes. Enqueue never
// blocks; a full queue drops the request and the caller spools it.
type MemoryQueue struct {
	ch     chan ports.WriteRequest
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{ch: make(chan ports.WriteRequest, capacity)}
}

func (q *MemoryQueue) Enqueue(req ports.WriteRequest) ports.EnqueueResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ports.EnqueueDropped
	}
	select {
	case q.ch <- req:
		return ports.EnqueueAccepted
	default:
		return ports.EnqueueDropped
	}
}

// DequeueBatch waits up to wait for the first request, then drains what is
// already queued up to maxItems. Writes for the same file inside a batch
// are coalesced to the latest one. io.EOF is returned once the queue is
// closed and empty, possibly together with the final batch.
func (q *MemoryQueue) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]ports.WriteRequest, error) {
	if maxItems <= 0 {
		maxItems = 1
	}
	batch := make([]ports.WriteRequest, 0, maxItems)

	first, err := q.first(ctx, wait)
	if err != nil || first == nil {
		return nil, err
	}
	batch = append(batch, *first)

	for len(batch) < maxItems {
		select {
		case req, ok := <-q.ch:
			if !ok {
				return Coalesce(batch), io.EOF
			}
			batch = append(batch, req)
		default:
			return Coalesce(batch), nil
		}
	}
	return Coalesce(batch), nil
}

func (q *MemoryQueue) first(ctx context.Context, wait time.Duration) (*ports.WriteRequest, error) {
	select {
	case req, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		return &req, nil
	default:
	}
	if wait <= 0 {
		return nil, nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case req, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		return &req, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, nil
	}
}

// Coalesce keeps only the last upsert or delete per file, in the position
// of that last write. A prune acts as a barrier: writes before it are
// never merged with writes after it.
func Coalesce(batch []ports.WriteRequest) []ports.WriteRequest {
	if len(batch) < 2 {
		return batch
	}
	out := make([]ports.WriteRequest, 0, len(batch))
	start := 0
	for i, req := range batch {
		if req.Operation == ports.WriteOperationPruneToPaths {
			out = append(out, coalesceSegment(batch[start:i])...)
			out = append(out, req)
			start = i + 1
		}
	}
	return append(out, coalesceSegment(batch[start:])...)
}

func coalesceSegment(seg []ports.WriteRequest) []ports.WriteRequest {
	last := make(map[string]int, len(seg))
	for i, req := range seg {
		last[req.FilePath] = i
	}
	out := make([]ports.WriteRequest, 0, len(last))
	for i, req := range seg {
		if last[req.FilePath] == i {
			out = append(out, req)
		}
	}
	return out
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}
