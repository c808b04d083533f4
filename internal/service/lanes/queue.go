// Package lanes runs jobs one at a time per session while bounding how many
// sessions make progress at once.
package lanes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"BotFlow/internal/lib/sl"
)

var (
	ErrLaneFull = errors.New("session lane full")
	ErrStopped  = errors.New("queue stopped")
)

const laneIdleTimeout = time.Minute

// Job is one unit of work for a session.
type Job struct {
	SessionID string
	Run       func(ctx context.Context) error
}

// Queue gives each session its own FIFO lane (a buffered channel drained by
// one goroutine) and shares a weighted semaphore across lanes.
type Queue struct {
	lanes     map[string]chan Job
	laneSize  int
	semaphore *semaphore.Weighted
	active    atomic.Int64
	idle      time.Duration
	log       *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func NewQueue(maxConcurrent int64, laneSize int, log *slog.Logger) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if laneSize < 1 {
		laneSize = 1
	}
	return &Queue{
		lanes:     make(map[string]chan Job),
		laneSize:  laneSize,
		semaphore: semaphore.NewWeighted(maxConcurrent),
		idle:      laneIdleTimeout,
		log:       log.With(sl.Module("lanes")),
	}
}

// Start must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels running jobs, closes all lanes and waits for their
// goroutines.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	if q.cancel != nil {
		q.cancel()
	}
	for id, lane := range q.lanes {
		close(lane)
		delete(q.lanes, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue appends the job to its session lane, starting the lane on first
// use. It never blocks; a full lane is rejected.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || q.ctx == nil {
		return ErrStopped
	}
	lane, exists := q.lanes[job.SessionID]
	if !exists {
		lane = make(chan Job, q.laneSize)
		q.lanes[job.SessionID] = lane
		q.wg.Add(1)
		go q.processLane(job.SessionID, lane)
	}

	select {
	case lane <- job:
		return nil
	default:
		return fmt.Errorf("session %s: %w", job.SessionID, ErrLaneFull)
	}
}

// processLane drains one lane in order. The lane is dropped after it stays
// empty for the idle timeout.
func (q *Queue) processLane(sessionID string, lane chan Job) {
	defer q.wg.Done()
	timer := time.NewTimer(q.idle)
	defer timer.Stop()

	for {
		select {
		case job, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			q.active.Add(1)
			q.run(sessionID, job)
			q.active.Add(-1)
			q.semaphore.Release(1)

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(q.idle)

		case <-timer.C:
			q.mu.Lock()
			if len(lane) == 0 && q.lanes[sessionID] == lane {
				delete(q.lanes, sessionID)
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			timer.Reset(q.idle)

		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) run(sessionID string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.log.With(slog.Any("panic", r), slog.String("session_id", sessionID)).Error("job panicked")
		}
	}()
	if err := job.Run(q.ctx); err != nil {
		q.log.With(sl.Err(err), slog.String("session_id", sessionID)).Error("job failed")
	}
}

// Active is the number of jobs currently running.
func (q *Queue) Active() int64 {
	return q.active.Load()
}

// WaitIdle blocks until no job is running or the timeout expires.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
