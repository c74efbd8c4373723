package deletion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"phototriage/internal/library"
	"phototriage/internal/logging"
)

// Queue is the in-memory ordered set of identifiers pending deletion.
// Membership hides an identifier from every category view immediately upon
// enqueue, even though the asset still exists until flush. The queue is
// deliberately not persisted: after a crash the queued assets re-surface in
// their categories on relaunch instead of being silently lost.
type Queue struct {
	mu      sync.Mutex
	order   []string
	members map[string]struct{}
	logger  *slog.Logger
}

// FlushResult reports a batch flush outcome. Failed identifiers remain
// queued (and hidden) so the caller may retry or surface an error; they are
// never re-queued automatically.
type FlushResult struct {
	Removed []string
	Failed  []string
}

// NewQueue constructs an empty deletion queue.
func NewQueue(logger *slog.Logger) *Queue {
	return &Queue{
		members: make(map[string]struct{}),
		logger:  logging.NewComponentLogger(logger, "deletion"),
	}
}

// Enqueue appends an identifier if absent. Duplicate enqueues are a no-op.
func (q *Queue) Enqueue(id string) {
	if id == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.members[id]; ok {
		return
	}
	q.members[id] = struct{}{}
	q.order = append(q.order, id)
}

// Contains reports queue membership.
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.members[id]
	return ok
}

// IDs returns queued identifiers in enqueue order.
func (q *Queue) IDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.order...)
}

// IDSet returns queue membership as a set for exclusion filtering.
func (q *Queue) IDSet() map[string]struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	set := make(map[string]struct{}, len(q.members))
	for id := range q.members {
		set[id] = struct{}{}
	}
	return set
}

// Len returns the number of queued identifiers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Clear discards the queue without deleting anything, restoring hidden
// assets to their categories on the next fetch.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	cleared := len(q.order)
	q.order = nil
	q.members = make(map[string]struct{})
	return cleared
}

// Flush performs the irreversible external deletion for all queued
// identifiers as one batch. Successfully removed identifiers leave the
// queue; failures stay queued and are reported. Partial failure does not
// roll back successful siblings.
func (q *Queue) Flush(ctx context.Context, lib library.Library) (FlushResult, error) {
	q.mu.Lock()
	batch := append([]string{}, q.order...)
	q.mu.Unlock()

	if len(batch) == 0 {
		return FlushResult{}, nil
	}

	deleted, err := lib.Delete(ctx, batch)
	if err != nil {
		return FlushResult{}, fmt.Errorf("delete batch: %w", err)
	}

	removed := make(map[string]struct{}, len(deleted.Removed))
	for _, id := range deleted.Removed {
		removed[id] = struct{}{}
	}

	q.mu.Lock()
	var remaining []string
	for _, id := range q.order {
		if _, ok := removed[id]; ok {
			delete(q.members, id)
			continue
		}
		remaining = append(remaining, id)
	}
	q.order = remaining
	q.mu.Unlock()

	result := FlushResult{
		Removed: deleted.Removed,
		Failed:  append([]string{}, deleted.Failed...),
	}
	if len(result.Failed) > 0 {
		q.logger.Warn("batch deletion partially failed",
			logging.Int("removed", len(result.Removed)),
			logging.Int("failed", len(result.Failed)),
		)
	}
	return result, nil
}
