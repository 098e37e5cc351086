// Package task provides a progress-reporting handle for background work such as
// parsing a stacked image dataset.
package task

import (
	"context"
	"sync"
)

// Reporter is what background work uses to report progress.
type Reporter interface {
	// SetUnitCount sets the total number of units of work.
	SetUnitCount(n int)

	// Advance records n more units of work as done.
	Advance(n int)

	// PushMessage records a human-readable status message.
	PushMessage(msg string)

	// End marks the work as finished.  A nil error is success.  Only the first call
	// has an effect.
	End(err error)

	IsEnded() bool
	UnitCount() int
}

// Task is a Reporter that can be polled or waited upon.
type Task struct {
	mu       sync.Mutex
	units    int
	done     int
	messages []string
	err      error
	ended    bool
	doneCh   chan struct{}
	unitsCh  chan struct{}
}

// New returns a task with no units of work.
func New() *Task {
	return &Task{
		doneCh:  make(chan struct{}),
		unitsCh: make(chan struct{}),
	}
}

func (t *Task) SetUnitCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.units = n
	if n > 0 {
		select {
		case <-t.unitsCh:
		default:
			close(t.unitsCh)
		}
	}
}

func (t *Task) Advance(n int) {
	t.mu.Lock()
	t.done += n
	t.mu.Unlock()
}

func (t *Task) PushMessage(msg string) {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
}

func (t *Task) End(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return
	}
	t.ended = true
	t.err = err
	close(t.doneCh)
}

func (t *Task) IsEnded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

func (t *Task) UnitCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.units
}

// Progress returns the units done and the total unit count.
func (t *Task) Progress() (done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done, t.units
}

// Messages returns a copy of all pushed messages.
func (t *Task) Messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.messages...)
}

// Err returns the error the task ended with, or nil if it has not ended or
// succeeded.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done returns a channel closed when the task ends.
func (t *Task) Done() <-chan struct{} {
	return t.doneCh
}

// Counted returns a channel closed once a non-zero unit count has been set.
func (t *Task) Counted() <-chan struct{} {
	return t.unitsCh
}

// Wait blocks until the task ends or ctx is done.  It returns the task's error,
// or the context's error if waiting was abandoned.  The work itself is not
// cancelled.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.doneCh:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
