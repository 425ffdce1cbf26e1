package mailer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justestif/muse/internal/logger"
	"github.com/justestif/muse/internal/waitlist"
)

// Dispatcher defaults.
const (
	DefaultWorkers     = 2
	DefaultQueueSize   = 64
	DefaultSendTimeout = 10 * time.Second
)

var (
	// ErrQueueFull is returned when a message is dropped for lack of room.
	ErrQueueFull = errors.New("mail queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mail dispatcher closed")
)

// Dispatcher sends messages on a fixed pool of workers. Enqueue never
// blocks; send failures are logged.
type Dispatcher struct {
	mailer      Mailer
	log         *logger.Logger
	workers     int
	queueSize   int
	sendTimeout time.Duration

	queue chan Message
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets the number of concurrent senders.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets how many messages may wait for a worker.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.queueSize = n
		}
	}
}

// WithSendTimeout bounds each send.
func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

// NewDispatcher starts the workers.
func NewDispatcher(m Mailer, log *logger.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	d := &Dispatcher{
		mailer:      m,
		log:         log,
		workers:     DefaultWorkers,
		queueSize:   DefaultQueueSize,
		sendTimeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.queue = make(chan Message, d.queueSize)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := d.mailer.Send(ctx, msg)
		cancel()
		if err != nil {
			d.log.Error("sending email failed", "email", msg.To.Email, "subject", msg.Subject, "error", err)
			continue
		}
		d.log.Debug("email sent", "email", msg.To.Email, "subject", msg.Subject)
	}
}

// Enqueue queues msg for delivery.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Notify queues the welcome email for a new waitlist entry.
func (d *Dispatcher) Notify(_ context.Context, e waitlist.Entry) error {
	msg, err := WelcomeMessage(e)
	if err != nil {
		return err
	}
	return d.Enqueue(msg)
}

// Close stops accepting messages, sends what is queued and waits for the
// workers to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

var _ waitlist.Notifier = (*Dispatcher)(nil)
