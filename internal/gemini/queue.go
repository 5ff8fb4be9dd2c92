package gemini

import (
	"context"
	"sync"
	"time"
)

type callResult struct {
	text string
	err  error
}

type call struct {
	ctx   context.Context
	fn    func() (string, error)
	reply chan callResult
}

// Queue serializes outbound calls to the text-generation service. Calls
// start strictly in enqueue order and at least minInterval apart; the
// upstream enforces a request-rate ceiling, so throttling is centralized
// here instead of at each call site.
type Queue struct {
	calls       chan call
	minInterval time.Duration
	start       sync.Once
}

func NewQueue(minInterval time.Duration) *Queue {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &Queue{
		calls:       make(chan call, 64),
		minInterval: minInterval,
	}
}

// Do enqueues fn and blocks until it has run or ctx is done. A failure in
// one call is delivered only to its caller; the queue keeps draining.
func (q *Queue) Do(ctx context.Context, fn func() (string, error)) (string, error) {
	q.start.Do(func() { go q.drain() })

	c := call{ctx: ctx, fn: fn, reply: make(chan callResult, 1)}
	select {
	case q.calls <- c:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-c.reply:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *Queue) drain() {
	var lastStart time.Time
	for c := range q.calls {
		if !lastStart.IsZero() {
			if wait := q.minInterval - time.Since(lastStart); wait > 0 {
				time.Sleep(wait)
			}
		}

		// A caller that gave up while queued does not consume a rate slot.
		if c.ctx.Err() != nil {
			c.reply <- callResult{err: c.ctx.Err()}
			continue
		}

		lastStart = time.Now()
		text, err := c.fn()
		c.reply <- callResult{text: text, err: err}
	}
}
