package outboxsrv

import (
	"context"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/repository"
	"github.com/fazamuttaqien/remitquota/pkg/mailer"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dispatcher drains the email outbox in the background. Decisions commit
// their notification rows transactionally; this loop is the only place
// delivery happens, so a mail outage delays notices but never decisions.
type Dispatcher struct {
	outboxRepository repository.OutboxRepository
	mailer           mailer.Mailer

	interval    time.Duration
	batchSize   int
	maxAttempts int

	meter         metric.Meter
	tracer        trace.Tracer
	log           *zap.Logger
	noticesSent   metric.Int64Counter
	noticesFailed metric.Int64Counter

	stop chan struct{}
	done chan struct{}
}

func (d *Dispatcher) Start() {
	go d.run()
	d.log.Info("Outbox dispatcher started",
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
		zap.Int("max_attempts", d.maxAttempts),
	)
}

// Stop blocks until the loop exits. An in-flight batch finishes first.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
	d.log.Info("Outbox dispatcher stopped")
}

func (d *Dispatcher) run() {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.DispatchOnce(context.Background())
		}
	}
}

// DispatchOnce claims one batch of pending notices and attempts delivery.
// Errors are recorded on the rows and logged, never returned: the next tick
// retries whatever is still pending.
func (d *Dispatcher) DispatchOnce(ctx context.Context) {
	ctx, span := d.tracer.Start(ctx, "outbox.DispatchOnce")
	defer span.End()

	messages, err := d.outboxRepository.ClaimPending(ctx, d.batchSize)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to claim pending notices")
		span.RecordError(err)
		d.log.Error("Failed to claim pending notices", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	span.SetAttributes(attribute.Int("outbox.batch", len(messages)))

	for _, message := range messages {
		if err := d.mailer.SendLimitDecision(ctx, message.Notice); err != nil {
			d.noticesFailed.Add(ctx, 1,
				metric.WithAttributes(attribute.String("service", "outbox")),
			)
			d.log.Warn("Failed to deliver decision notice",
				zap.Uint64("outbox_id", message.ID),
				zap.Uint64("request_id", message.Notice.RequestID),
				zap.Int("attempts", message.Attempts+1),
				zap.Error(err),
			)
			if markErr := d.outboxRepository.MarkFailed(ctx, message.ID, err, d.maxAttempts); markErr != nil {
				d.log.Error("Failed to record delivery failure",
					zap.Uint64("outbox_id", message.ID),
					zap.Error(markErr),
				)
			}
			continue
		}

		if err := d.outboxRepository.MarkSent(ctx, message.ID); err != nil {
			d.log.Error("Failed to mark notice sent",
				zap.Uint64("outbox_id", message.ID),
				zap.Error(err),
			)
			continue
		}

		d.noticesSent.Add(ctx, 1,
			metric.WithAttributes(attribute.String("service", "outbox")),
		)
		d.log.Info("Decision notice delivered",
			zap.Uint64("outbox_id", message.ID),
			zap.Uint64("request_id", message.Notice.RequestID),
			zap.String("decision", string(message.Notice.Decision)),
		)
	}
}

func NewDispatcher(
	outboxRepository repository.OutboxRepository,
	m mailer.Mailer,
	interval time.Duration,
	batchSize int,
	maxAttempts int,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) *Dispatcher {
	noticesSent, _ := meter.Int64Counter(
		"outbox.notices.sent",
		metric.WithDescription("Number of decision notices delivered"),
		metric.WithUnit("{notice}"),
	)

	noticesFailed, _ := meter.Int64Counter(
		"outbox.notices.failed",
		metric.WithDescription("Number of decision notice delivery failures"),
		metric.WithUnit("{notice}"),
	)

	return &Dispatcher{
		outboxRepository: outboxRepository,
		mailer:           m,

		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,

		meter:         meter,
		tracer:        tracer,
		log:           log,
		noticesSent:   noticesSent,
		noticesFailed: noticesFailed,

		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}
