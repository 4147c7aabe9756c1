package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Dispatcher queues messages and delivers them from a fixed set of workers.
// Enqueue waits at most enqueueTimeout for queue space, so a stalled
// transport shows up to callers as common.ErrMailUnavailable instead of a
// hung request.
type Dispatcher struct {
	sender         Sender
	logger         logging.Logger
	queue          chan Message
	workers        int
	enqueueTimeout time.Duration
	sendTimeout    time.Duration

	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
}

type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	EnqueueTimeout time.Duration
	SendTimeout    time.Duration
}

func NewDispatcher(s Sender, l logging.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		sender:         s,
		logger:         l.With("module", "mail_dispatcher"),
		queue:          make(chan Message, cfg.QueueSize),
		workers:        cfg.Workers,
		enqueueTimeout: cfg.EnqueueTimeout,
		sendTimeout:    cfg.SendTimeout,
		done:           make(chan struct{}),
	}
}

// Enqueue schedules msg for delivery.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) error {
	select {
	case <-d.done:
		return fmt.Errorf("%w: dispatcher stopped", common.ErrMailUnavailable)
	default:
	}

	select {
	case d.queue <- msg:
		return nil
	default:
	}

	timer := time.NewTimer(d.enqueueTimeout)
	defer timer.Stop()

	select {
	case d.queue <- msg:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: queue full", common.ErrMailUnavailable)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", common.ErrMailUnavailable, ctx.Err())
	case <-d.done:
		return fmt.Errorf("%w: dispatcher stopped", common.ErrMailUnavailable)
	}
}

// Run starts the workers and blocks until ctx is cancelled. Messages still
// queued at that point are delivered before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}

	<-ctx.Done()
	d.Stop()
	d.wg.Wait()
}

// Stop tells the workers to drain the queue and exit. Safe to call more
// than once.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.done) })
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.queue:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.queue:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error(ctx, "mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		return
	}
	d.logger.Debug(ctx, "mail delivered", "to", msg.To, "subject", msg.Subject)
}
