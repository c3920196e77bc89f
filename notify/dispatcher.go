package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	users "github.com/ogehub/go-users"
)

var (
	// ErrQueueFull is returned when a message is dropped because the queue is full
	ErrQueueFull = errors.New("notification queue is full")
	// ErrDispatcherClosed is returned for messages enqueued after Close
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

const (
	DefaultQueueSize   = 64
	DefaultWorkers     = 2
	DefaultSendTimeout = 30 * time.Second
)

type kind string

const (
	kindVerification kind = "verification"
	kindReset        kind = "password_reset"
)

type job struct {
	kind        kind
	email       string
	link        string
	displayName string
}

func (j job) deliver(ctx context.Context, next users.Notifier) error {
	switch j.kind {
	case kindVerification:
		return next.SendVerificationLink(ctx, j.email, j.link, j.displayName)
	case kindReset:
		return next.SendResetLink(ctx, j.email, j.link)
	}
	return nil
}

// Dispatcher hands notifications to a bounded queue drained by a fixed set
// of workers. Enqueueing never blocks the caller.
type Dispatcher struct {
	next        users.Notifier
	queue       chan job
	logger      users.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ users.Notifier = (*Dispatcher)(nil)

// NewDispatcher starts workers delivering through next.
func NewDispatcher(next users.Notifier, queueSize, workers int, logger users.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = users.NopLogger()
	}

	d := &Dispatcher{
		next:        next,
		queue:       make(chan job, queueSize),
		logger:      logger,
		sendTimeout: DefaultSendTimeout,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// WithSendTimeout bounds every delivery attempt.
func (d *Dispatcher) WithSendTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.sendTimeout = timeout
	}
	return d
}

// SendVerificationLink queues a verification mail.
func (d *Dispatcher) SendVerificationLink(_ context.Context, email, link, displayName string) error {
	return d.enqueue(job{kind: kindVerification, email: email, link: link, displayName: displayName})
}

// SendResetLink queues a password reset mail.
func (d *Dispatcher) SendResetLink(_ context.Context, email, link string) error {
	return d.enqueue(job{kind: kindReset, email: email, link: link})
}

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- j:
		return nil
	default:
		d.logger.Error("notification dropped", "kind", string(j.kind), "reason", ErrQueueFull)
		return ErrQueueFull
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		if err := j.deliver(ctx, d.next); err != nil {
			d.logger.Error("notification delivery failed", "kind", string(j.kind), "error", err)
		}
		cancel()
	}
}

// Close stops accepting messages and waits for queued ones to be delivered
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
