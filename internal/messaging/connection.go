// Package messaging is a RabbitMQ message bus with bounded retry and dead-lettering.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the subset of *amqp.Channel the bus uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Conn is a broker connection that hands out channels.
type Conn interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a broker connection.
type Dialer func(url string) (Conn, error)

// DialAMQP dials RabbitMQ with amqp091-go.
func DialAMQP(url string) (Conn, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{c}, nil
}

type amqpConn struct {
	*amqp.Connection
}

func (c amqpConn) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

type connHolder struct {
	conn Conn
}

// Connection lazily opens one shared broker connection. Callers only ever
// get channels from it; the raw connection stays private.
type Connection struct {
	url    string
	dial   Dialer
	logger *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[connHolder]
	closed  bool
}

// NewConnection creates a connection manager. Nothing is dialled until first use.
func NewConnection(url string, dial Dialer, logger *zap.Logger) *Connection {
	if dial == nil {
		dial = DialAMQP
	}
	return &Connection{url: url, dial: dial, logger: logger}
}

// ErrConnectionClosed is returned after Close.
var ErrConnectionClosed = errors.New("broker connection closed")

func (c *Connection) connection() (Conn, error) {
	if h := c.current.Load(); h != nil && !h.conn.IsClosed() {
		return h.conn, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}
	if h := c.current.Load(); h != nil && !h.conn.IsClosed() {
		return h.conn, nil
	}

	conn, err := c.dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	c.current.Store(&connHolder{conn: conn})
	c.logger.Info("Broker connection established")
	return conn, nil
}

// Acquire opens a new channel. The caller releases it with Close.
func (c *Connection) Acquire(ctx context.Context) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Ping reports whether a live connection exists or can be opened.
func (c *Connection) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.connection()
	return err
}

// Close closes the shared connection. Later Acquire calls fail.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	h := c.current.Swap(nil)
	if h == nil || h.conn.IsClosed() {
		return nil
	}
	if err := h.conn.Close(); err != nil {
		return fmt.Errorf("close broker connection: %w", err)
	}
	return nil
}
