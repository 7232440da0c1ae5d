// Package notify delivers the email outbox in the background.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"compras/internal/models"
)

// Outbox is the storage side of the notification outbox.
type Outbox interface {
	Pending(limit int) ([]models.EmailNotification, error)
	MarkSent(id string) error
	MarkFailed(id string, cause error) error
}

var errNoRecipient = errors.New("recipient has no email address")

// Options configures a Dispatcher.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	// FrontendURL, when set, adds a link to the request at the end of each message.
	FrontendURL string
}

// Dispatcher polls the outbox on a ticker and hands due rows to a pool of
// workers that send them.
type Dispatcher struct {
	outbox Outbox
	sender Sender
	opts   Options
	log    *zap.SugaredLogger

	jobs    chan models.EmailNotification
	trigger chan struct{}

	inflight   map[string]struct{}
	inflightMu sync.Mutex

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewDispatcher constructs the dispatcher worker pool.
func NewDispatcher(outbox Outbox, sender Sender, opts Options, log *zap.SugaredLogger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	return &Dispatcher{
		outbox:   outbox,
		sender:   sender,
		opts:     opts,
		log:      log,
		jobs:     make(chan models.EmailNotification, opts.BatchSize*opts.Workers),
		trigger:  make(chan struct{}, 1),
		inflight: make(map[string]struct{}),
	}
}

// Start launches the poller and the workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(runCtx)
	}

	d.wg.Add(1)
	go d.dispatch(runCtx)
}

// Stop cancels polling and waits for in-flight sends to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Trigger asks for a poll now instead of at the next tick. It never blocks.
func (d *Dispatcher) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	defer d.wg.Done()
	defer close(d.jobs)
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.fetchAndDispatch(ctx)
		case <-d.trigger:
			d.fetchAndDispatch(ctx)
		}
	}
}

func (d *Dispatcher) fetchAndDispatch(ctx context.Context) {
	rows, err := d.outbox.Pending(d.opts.BatchSize)
	if err != nil {
		d.log.Errorw("fetch pending notifications failed", "error", err)
		return
	}
	for _, row := range rows {
		if !d.claim(row.ID) {
			continue
		}
		select {
		case <-ctx.Done():
			d.release(row.ID)
			return
		case d.jobs <- row:
		}
	}
}

// claim marks a row as queued so the next poll does not queue it twice.
func (d *Dispatcher) claim(id string) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	if _, ok := d.inflight[id]; ok {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id string) {
	d.inflightMu.Lock()
	delete(d.inflight, id)
	d.inflightMu.Unlock()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case row, ok := <-d.jobs:
			if !ok {
				return
			}
			d.deliver(row)
			d.release(row.ID)
		}
	}
}

func (d *Dispatcher) deliver(row models.EmailNotification) {
	to := ""
	if row.Recipient != nil {
		to = strings.TrimSpace(row.Recipient.Email)
	}

	var err error
	if to == "" {
		err = errNoRecipient
	} else {
		err = d.sender.Send(to, row.Subject, d.body(row))
	}

	if err != nil {
		d.log.Warnw("notification delivery failed",
			"notification_id", row.ID,
			"type", row.NotificationType,
			"attempt", row.Attempts+1,
			"error", err,
		)
		if markErr := d.outbox.MarkFailed(row.ID, err); markErr != nil {
			d.log.Errorw("failed to record notification failure", "notification_id", row.ID, "error", markErr)
		}
		return
	}

	if err := d.outbox.MarkSent(row.ID); err != nil {
		d.log.Errorw("failed to mark notification sent", "notification_id", row.ID, "error", err)
	}
}

func (d *Dispatcher) body(row models.EmailNotification) string {
	if d.opts.FrontendURL == "" || row.RequestID == nil {
		return row.Message
	}
	return row.Message + "\nVer solicitud: " + d.opts.FrontendURL + "/requests/" + *row.RequestID + "\n"
}
