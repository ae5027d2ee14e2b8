package jobqueue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
)

var ErrInvalidConcurrency = errors.New("max concurrent jobs must be at least 1")
var ErrJobPanicked = errors.New("job panicked")

type Job func() error

type pendingJob struct {
	run  Job
	done chan<- error
}

// Queue runs jobs in submission order with at most maxConcurrent jobs running at once
type Queue struct {
	maxConcurrent int

	pending deque.Deque[pendingJob]
	active  int
	lock    sync.Mutex
}

func New(maxConcurrent int) (*Queue, error) {
	if maxConcurrent < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, maxConcurrent)
	}

	return &Queue{
		maxConcurrent: maxConcurrent,
	}, nil
}

// Submit enqueues the job and returns a channel that receives its result exactly once
func (q *Queue) Submit(job Job) <-chan error {
	done := make(chan error, 1)

	q.lock.Lock()
	q.pending.PushBack(pendingJob{run: job, done: done})
	q.lock.Unlock()

	q.drain()

	return done
}

// Depth is the number of jobs waiting to start
func (q *Queue) Depth() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.pending.Len()
}

// Active is the number of jobs currently running
func (q *Queue) Active() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.active
}

func (q *Queue) drain() {
	q.lock.Lock()
	defer q.lock.Unlock()

	for q.active < q.maxConcurrent && q.pending.Len() > 0 {
		job := q.pending.PopFront()
		q.active++
		go q.run(job)
	}
}

func (q *Queue) run(job pendingJob) {
	err := runRecovered(job.run)

	q.lock.Lock()
	q.active--
	q.lock.Unlock()

	job.done <- err

	q.drain()
}

func runRecovered(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	return job()
}
