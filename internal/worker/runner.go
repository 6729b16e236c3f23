package worker

import (
	"context"
	"time"

	"github.com/raoulx24/wandering-echo/internal/logging"
)

// RunLoop pulls jobs until the queue is closed and drained. Jobs are run even
// after ctx is cancelled so each one can record the cancellation itself.
func RunLoop(ctx context.Context, log logging.Logger, q *Queue) {
	for {
		job, ok := q.Pop()
		if !ok {
			return
		}

		start := time.Now()
		log.Debug("job started", "job", job.Name)
		job.Run(ctx)
		log.Debug("job finished", "job", job.Name, "elapsed", time.Since(start))
	}
}
