package engine

import (
	"context"
	"sync"

	pverrors "github.com/grovetools/pkgview/errors"
)

// mailbox is a single-consumer job queue. Every job runs with exec held, so
// jobs never overlap whether they run on the consumer goroutine or are
// drained during shutdown.
type mailbox struct {
	ch      chan func()
	done    chan struct{}
	stopped chan struct{}

	mu     sync.RWMutex // guards closed against concurrent posts
	closed bool
	once   sync.Once

	consumer sync.Mutex // guards looping and shut
	looping  bool
	shut     bool

	exec sync.Mutex
}

func newMailbox(size int) *mailbox {
	if size <= 0 {
		size = 256
	}
	return &mailbox{
		ch:      make(chan func(), size),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// post enqueues fn. It returns false once the mailbox is closed.
func (m *mailbox) post(fn func()) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}
	select {
	case m.ch <- fn:
		return true
	case <-m.done:
		return false
	}
}

// call posts fn and waits for it to run.
func (m *mailbox) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !m.post(func() {
		defer close(ran)
		fn()
	}) {
		return pverrors.EngineClosed()
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return pverrors.Wrap(ctx.Err(), pverrors.ErrCodeCancelled, "waiting for engine")
	case <-m.done:
		// The job may still run during the drain.
		select {
		case <-ran:
			return nil
		default:
			return pverrors.EngineClosed()
		}
	}
}

func (m *mailbox) run(fn func()) {
	m.exec.Lock()
	defer m.exec.Unlock()
	fn()
}

// loop consumes jobs until ctx is done or the mailbox closes. Only one loop
// may run per mailbox.
func (m *mailbox) loop(ctx context.Context) error {
	m.consumer.Lock()
	switch {
	case m.shut:
		m.consumer.Unlock()
		return nil
	case m.looping:
		m.consumer.Unlock()
		return pverrors.New(pverrors.ErrCodeInternal, "mailbox already has a consumer")
	}
	m.looping = true
	m.consumer.Unlock()
	defer close(m.stopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case fn := <-m.ch:
			m.run(fn)
			// A job picked after close began is the last one the loop runs;
			// close drains the rest once the loop has stopped.
			select {
			case <-m.done:
				return nil
			default:
			}
		}
	}
}

// close stops accepting jobs, waits for the consumer to finish the job it
// is running, and then runs whatever is still queued, so every queued
// trigger still gets its outcome. close must not be called from a job.
func (m *mailbox) close() {
	m.once.Do(func() {
		close(m.done)
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		m.consumer.Lock()
		m.shut = true
		looping := m.looping
		m.consumer.Unlock()
		if looping {
			<-m.stopped
		}
		for {
			select {
			case fn := <-m.ch:
				m.run(fn)
			default:
				return
			}
		}
	})
}
