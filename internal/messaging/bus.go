package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/domain/event"
	"github.com/kailas-cloud/ragworker/internal/logger"
	"github.com/kailas-cloud/ragworker/internal/metrics"
)

// Defaults for Config.
const (
	DefaultExchange       = "ers.ex.events"
	DefaultRetryTTL       = 30 * time.Second
	DefaultMaxAttempts    = 5
	DefaultPrefetch       = 1
	DefaultReconnectDelay = 5 * time.Second

	republishTimeout = 10 * time.Second
)

// Config tunes the bus.
type Config struct {
	Exchange       string
	RetryTTL       time.Duration
	MaxAttempts    int // failed attempts before dead-lettering
	Prefetch       int
	ReconnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.RetryTTL <= 0 {
		c.RetryTTL = DefaultRetryTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Prefetch <= 0 {
		c.Prefetch = DefaultPrefetch
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	return c
}

// Message is a received delivery as seen by handlers.
type Message struct {
	Body          []byte
	Headers       amqp.Table
	MessageID     string
	CorrelationID string
	RoutingKey    string
	Attempt       int // 1-based
}

// Handler processes one message. A nil error acks it.
type Handler func(ctx context.Context, msg Message) error

// Handle decodes the JSON body into T before calling fn.
// Decode failures are returned as ordinary (transient) handler errors.
func Handle[T any](fn func(ctx context.Context, msg T) error) Handler {
	return func(ctx context.Context, m Message) error {
		var v T
		if err := json.Unmarshal(m.Body, &v); err != nil {
			return fmt.Errorf("decode %T: %w", v, err)
		}
		return fn(ctx, v)
	}
}

// Subscription binds a queue to a routing key and a handler.
type Subscription struct {
	Queue      string
	RoutingKey string
	Handler    Handler
}

// channelSource hands out broker channels.
type channelSource interface {
	Acquire(ctx context.Context) (Channel, error)
	Ping(ctx context.Context) error
}

// Bus publishes events and runs consume loops.
type Bus struct {
	conn   channelSource
	cfg    Config
	logger *zap.Logger

	wg sync.WaitGroup
}

// New creates a bus over conn.
func New(conn channelSource, cfg Config, logger *zap.Logger) *Bus {
	return &Bus{conn: conn, cfg: cfg.withDefaults(), logger: logger}
}

// Publish sends the event as persistent JSON under its routing key.
func (b *Bus) Publish(ctx context.Context, ev event.Event) error {
	key := ev.RoutingKey()
	err := b.publish(ctx, ev)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.BusPublishedTotal.WithLabelValues(key, status).Inc()
	return err
}

func (b *Bus) publish(ctx context.Context, ev event.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.RoutingKey(), err)
	}

	ch, err := b.conn.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.RoutingKey(), err)
	}
	defer ch.Close()

	if err := declareExchange(ch, b.cfg.Exchange); err != nil {
		return err
	}

	meta := ev.Metadata()
	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     meta.EventID,
		CorrelationId: meta.CorrelationID,
		Timestamp:     meta.OccurredAtUTC,
		Type:          ev.RoutingKey(),
		Body:          body,
	}
	if err := ch.PublishWithContext(ctx, b.cfg.Exchange, ev.RoutingKey(), false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.RoutingKey(), err)
	}
	return nil
}

// Subscribe declares the subscription topology and starts its consume loop.
// The loop runs until ctx is cancelled; Wait blocks until all loops exit.
func (b *Bus) Subscribe(ctx context.Context, sub Subscription) error {
	if sub.Queue == "" || sub.RoutingKey == "" || sub.Handler == nil {
		return fmt.Errorf("subscription needs queue, routing key and handler: %w", domain.ErrInvalidInput)
	}

	ch, err := b.conn.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", sub.Queue, err)
	}
	err = b.declare(ch, sub)
	_ = ch.Close()
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(ctx, sub)
	}()
	return nil
}

// Wait blocks until every consume loop has stopped.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Ping checks broker connectivity.
func (b *Bus) Ping(ctx context.Context) error {
	return b.conn.Ping(ctx)
}

func (b *Bus) declare(ch Channel, sub Subscription) error {
	if err := declareExchange(ch, b.cfg.Exchange); err != nil {
		return err
	}
	return declareQueue(ch, b.cfg.Exchange, sub.Queue, sub.RoutingKey, b.cfg.RetryTTL)
}

func (b *Bus) consumeLoop(ctx context.Context, sub Subscription) {
	log := b.logger.With(zap.String("queue", sub.Queue))
	for {
		err := b.consume(ctx, sub)
		if ctx.Err() != nil {
			log.Info("Consumer stopped")
			return
		}

		metrics.BusReconnectsTotal.WithLabelValues(sub.Queue).Inc()
		log.Warn("Consumer interrupted, reconnecting",
			zap.Duration("delay", b.cfg.ReconnectDelay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			log.Info("Consumer stopped")
			return
		case <-time.After(b.cfg.ReconnectDelay):
		}
	}
}

func (b *Bus) consume(ctx context.Context, sub Subscription) error {
	ch, err := b.conn.Acquire(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := b.declare(ch, sub); err != nil {
		return err
	}
	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	deliveries, err := ch.Consume(sub.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", sub.Queue, err)
	}

	b.logger.Info("Consumer started", zap.String("queue", sub.Queue), zap.String("routing_key", sub.RoutingKey))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("channel closed")
			}
			return fmt.Errorf("channel closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery stream closed")
			}
			b.handle(ctx, ch, sub, d)
		}
	}
}

// handle runs the handler and settles the delivery. It never returns an error:
// failures are turned into retry, dead-letter or requeue decisions.
func (b *Bus) handle(ctx context.Context, ch Channel, sub Subscription, d amqp.Delivery) {
	retries := RetryCount(d.Headers)
	log := b.logger.With(
		zap.String("queue", sub.Queue),
		zap.String("message_id", d.MessageId),
		zap.String("routing_key", d.RoutingKey),
		zap.String("correlation_id", d.CorrelationId),
		zap.Int("attempt", retries+1),
	)

	msg := Message{
		Body:          d.Body,
		Headers:       d.Headers,
		MessageID:     d.MessageId,
		CorrelationID: d.CorrelationId,
		RoutingKey:    d.RoutingKey,
		Attempt:       retries + 1,
	}

	start := time.Now()
	err := invoke(logger.ContextWithLogger(ctx, log), sub.Handler, msg)
	metrics.BusHandlerDuration.WithLabelValues(sub.Queue).Observe(time.Since(start).Seconds())

	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("Failed to ack delivery", zap.Error(ackErr))
			return
		}
		metrics.BusDeliveriesTotal.WithLabelValues(sub.Queue, "acked").Inc()
		return
	}

	if ctx.Err() != nil {
		// Shutting down: give the message back without spending an attempt.
		b.requeue(log, sub, d, err)
		return
	}

	b.fail(ctx, log, ch, sub, d, retries, err)
}

func (b *Bus) fail(
	ctx context.Context, log *zap.Logger, ch Channel, sub Subscription,
	d amqp.Delivery, retries int, handlerErr error,
) {
	kind := domain.KindOf(handlerErr)
	attempts := retries + 1

	target, outcome := RetryQueue(sub.Queue), "retried"
	if kind != domain.KindTransient || attempts >= b.cfg.MaxAttempts {
		target, outcome = DeadLetterQueue(sub.Queue), "dead_lettered"
	}

	pub := amqp.Publishing{
		Headers:         failureHeaders(d.Headers, attempts, kind.String(), handlerErr.Error()),
		ContentType:     d.ContentType,
		ContentEncoding: d.ContentEncoding,
		DeliveryMode:    amqp.Persistent,
		CorrelationId:   d.CorrelationId,
		MessageId:       d.MessageId,
		Timestamp:       d.Timestamp,
		Type:            d.Type,
		Body:            d.Body,
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), republishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(pctx, "", target, false, false, pub); err != nil {
		log.Error("Failed to republish failed delivery", zap.String("target", target), zap.Error(err))
		b.requeue(log, sub, d, handlerErr)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("Failed to ack republished delivery", zap.Error(err))
		return
	}
	metrics.BusDeliveriesTotal.WithLabelValues(sub.Queue, outcome).Inc()

	fields := []zap.Field{
		zap.String("target", target),
		zap.String("failure_kind", kind.String()),
		zap.Int("attempts", attempts),
		zap.Error(handlerErr),
	}
	if outcome == "dead_lettered" {
		log.Error("Delivery dead-lettered", fields...)
	} else {
		log.Warn("Delivery scheduled for retry", fields...)
	}
}

func (b *Bus) requeue(log *zap.Logger, sub Subscription, d amqp.Delivery, cause error) {
	if err := d.Nack(false, true); err != nil {
		log.Error("Failed to nack delivery", zap.Error(err))
		return
	}
	metrics.BusDeliveriesTotal.WithLabelValues(sub.Queue, "requeued").Inc()
	log.Warn("Delivery requeued", zap.Error(cause))
}

// invoke runs h and converts a panic into an error.
func invoke(ctx context.Context, h Handler, msg Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.FromContext(ctx).Error("Handler panic",
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, msg)
}
