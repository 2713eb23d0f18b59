package mail

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/infra/logger"
	"github.com/arklim/portal-identity/internal/infra/telemetry"
)

// DispatcherConfig sizes the background delivery pool.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher delivers queued messages on a fixed pool of workers so request
// handlers never wait on the mail transport.
type Dispatcher struct {
	mailer  Mailer
	metrics *telemetry.Metrics
	logger  *zap.Logger
	cfg     DispatcherConfig

	queue   chan Message
	mu      sync.RWMutex
	stopped bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher constructs a dispatcher. Call Start before Enqueue.
func NewDispatcher(mailer Mailer, cfg DispatcherConfig, metrics *telemetry.Metrics, log *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		mailer:  mailer,
		metrics: metrics,
		logger:  log,
		cfg:     cfg,
		queue:   make(chan Message, cfg.QueueSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("mail dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
	)
}

// Enqueue schedules msg for delivery without blocking.
func (d *Dispatcher) Enqueue(msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if msg.ID == "" {
		msg.ID = NewMessageID()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		d.logger.Error("mail queue full, dropping message",
			zap.String("message_id", msg.ID),
			zap.String("template", msg.Template),
			zap.String("to", logger.MaskEmail(msg.To)),
		)
		d.recordFailure(msg.Template)
		return ErrQueueFull
	}
}

// Deliver sends msg on the calling goroutine and records the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) (string, error) {
	if msg.ID == "" {
		msg.ID = NewMessageID()
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return d.send(ctx, msg)
}

// Stop refuses new messages and waits for queued ones to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	started := d.started
	close(d.queue)
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("mail dispatcher drained")
		return nil
	case <-ctx.Done():
		d.logger.Warn("mail dispatcher stop timed out", zap.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		if _, err := d.send(ctx, msg); err != nil {
			d.logger.Error("email delivery failed",
				zap.Int("worker", id),
				zap.String("message_id", msg.ID),
				zap.String("template", msg.Template),
				zap.String("to", logger.MaskEmail(msg.To)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (d *Dispatcher) send(ctx context.Context, msg Message) (string, error) {
	id, err := d.mailer.Send(ctx, msg)
	if err != nil {
		d.recordFailure(msg.Template)
		return "", err
	}
	if d.metrics != nil && d.metrics.MailDelivered != nil {
		d.metrics.MailDelivered.WithLabelValues(msg.Template).Inc()
	}
	d.logger.Debug("email delivered",
		zap.String("message_id", msg.ID),
		zap.String("transport_id", id),
		zap.String("template", msg.Template),
	)
	return id, nil
}

func (d *Dispatcher) recordFailure(template string) {
	if d.metrics != nil && d.metrics.MailFailures != nil {
		d.metrics.MailFailures.WithLabelValues(template).Inc()
	}
}
