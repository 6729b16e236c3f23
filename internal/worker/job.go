package worker

import "context"

// Job is one unit of work submitted to a Batch. Run must record its own
// outcome; the pool only guarantees it is called exactly once.
type Job struct {
	Name string
	Run  func(ctx context.Context)
}
