package messaging

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type declaredQueue struct {
	name string
	args amqp.Table
}

type binding struct {
	queue, key, exchange string
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

// fakeChannel records topology and publishes.
type fakeChannel struct {
	mu         sync.Mutex
	exchanges  []string
	queues     []declaredQueue
	bindings   []binding
	published  []published
	prefetch   int
	closed     bool
	publishErr error
	declareErr error

	deliveries chan amqp.Delivery
	closeNotif chan *amqp.Error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 8)}
}

func (c *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, name)
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declareErr != nil {
		return amqp.Queue{}, c.declareErr
	}
	c.queues = append(c.queues, declaredQueue{name: name, args: args})
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, binding{queue: name, key: key, exchange: exchange})
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeChannel) Consume(_, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) PublishWithContext(
	_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeNotif = ch
	return ch
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) publishes() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

func (c *fakeChannel) queue(name string) (declaredQueue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.queues {
		if q.name == name {
			return q, true
		}
	}
	return declaredQueue{}, false
}

// fakeSource always hands out the same channel.
type fakeSource struct {
	ch      *fakeChannel
	err     error
	pingErr error
}

func (s *fakeSource) Acquire(ctx context.Context) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

func (s *fakeSource) Ping(context.Context) error { return s.pingErr }

// fakeAck records how a delivery was settled.
type fakeAck struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue bool
	ackErr  error
	settled chan struct{}
}

func newFakeAck() *fakeAck {
	return &fakeAck{settled: make(chan struct{}, 16)}
}

func (a *fakeAck) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ackErr != nil {
		return a.ackErr
	}
	a.acks++
	a.settled <- struct{}{}
	return nil
}

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = requeue
	a.settled <- struct{}{}
	return nil
}

func (a *fakeAck) Reject(uint64, bool) error {
	return errors.New("reject not used")
}

func (a *fakeAck) counts() (acks, nacks int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, a.nacks
}

// fakeConn is a Conn for Connection tests.
type fakeConn struct {
	mu      sync.Mutex
	closed  bool
	chErr   error
	closes  int
	channel *fakeChannel
}

func (c *fakeConn) Channel() (Channel, error) {
	if c.chErr != nil {
		return nil, c.chErr
	}
	if c.channel == nil {
		return newFakeChannel(), nil
	}
	return c.channel, nil
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closes++
	return nil
}

func (c *fakeConn) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
