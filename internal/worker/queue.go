package worker

// provides a simple in-memory job queue used by the pool.

type Queue struct {
	ch chan Job
}

// NewQueue returns a queue that holds size jobs without blocking.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Job, size)}
}

// Push never blocks while fewer than size jobs are pending.
func (q *Queue) Push(j Job) {
	q.ch <- j
}

// Close marks the end of submissions; Pop keeps returning queued jobs
// until the queue is drained.
func (q *Queue) Close() {
	close(q.ch)
}

func (q *Queue) Pop() (Job, bool) {
	j, ok := <-q.ch
	return j, ok
}
