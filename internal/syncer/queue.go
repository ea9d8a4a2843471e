package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
)

const defaultQueueSize = 64

var (
	// ErrQueueFull is returned when the sync queue has no free slot.
	ErrQueueFull = errors.New("sync queue is full")
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("sync queue is closed")
)

// queue is a buffered set of user IDs awaiting a sync. A user already
// waiting is not queued twice.
type queue struct {
	mu      sync.Mutex
	ch      chan string
	pending map[string]bool
	closed  bool
}

func newQueue(size int) *queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &queue{ch: make(chan string, size), pending: make(map[string]bool)}
}

func (q *queue) push(userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.pending[userID] {
		return nil
	}
	select {
	case q.ch <- userID:
		q.pending[userID] = true
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *queue) done(userID string) {
	q.mu.Lock()
	delete(q.pending, userID)
	q.mu.Unlock()
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Enqueue schedules a background SyncUser for userID without blocking.
func (s *Syncer) Enqueue(userID string) error {
	if err := s.queue.push(userID); err != nil {
		return err
	}
	s.logger.Debug("Queued user sync.", "userID", userID)
	return nil
}

// Close stops accepting new work. Run drains what is queued and returns.
func (s *Syncer) Close() {
	s.queue.close()
}

// Run processes queued users with Options.Concurrency workers until ctx is
// done or the queue is closed and drained.
func (s *Syncer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for range s.opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case userID, ok := <-s.queue.ch:
					if !ok {
						return
					}
					s.queue.done(userID)
					if _, err := s.SyncUser(ctx, userID); err != nil {
						s.logger.Error("Queued sync failed", "userID", userID, "error", err)
					}
				}
			}
		}()
	}
	wg.Wait()
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
