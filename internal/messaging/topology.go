package messaging

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue suffixes for the retry and dead-letter queues.
const (
	RetrySuffix = ".retry"
	DLQSuffix   = ".dlq"
)

// RetryQueue returns the retry queue name for q.
func RetryQueue(q string) string { return q + RetrySuffix }

// DeadLetterQueue returns the dead-letter queue name for q.
func DeadLetterQueue(q string) string { return q + DLQSuffix }

// QueueName builds "<namespace>.qu.<service>".
func QueueName(namespace, service string) string {
	return namespace + ".qu." + service
}

func declareExchange(ch Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

// declareQueue declares Q, Q.retry and Q.dlq and binds Q to the exchange.
// Q.retry holds messages for retryTTL, then dead-letters them back to the
// exchange under the original routing key.
func declareQueue(ch Channel, exchange, queue, routingKey string, retryTTL time.Duration) error {
	retry := RetryQueue(queue)

	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": retry,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s/%s: %w", queue, exchange, routingKey, err)
	}

	_, err = ch.QueueDeclare(retry, true, false, false, false, amqp.Table{
		"x-message-ttl":             int32(retryTTL / time.Millisecond),
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": routingKey,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", retry, err)
	}

	if _, err := ch.QueueDeclare(DeadLetterQueue(queue), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", DeadLetterQueue(queue), err)
	}
	return nil
}
