package messaging

import (
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestRetryCount(t *testing.T) {
	tests := []struct {
		name string
		h    amqp.Table
		want int
	}{
		{"absent", nil, 0},
		{"int32", amqp.Table{HeaderRetryCount: int32(2)}, 2},
		{"int64", amqp.Table{HeaderRetryCount: int64(4)}, 4},
		{"int", amqp.Table{HeaderRetryCount: 3}, 3},
		{"uint8", amqp.Table{HeaderRetryCount: uint8(1)}, 1},
		{"float64", amqp.Table{HeaderRetryCount: float64(2)}, 2},
		{"string", amqp.Table{HeaderRetryCount: "5"}, 5},
		{"garbage string", amqp.Table{HeaderRetryCount: "five"}, 0},
		{"negative", amqp.Table{HeaderRetryCount: int32(-1)}, 0},
		{"unsupported type", amqp.Table{HeaderRetryCount: []byte("1")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryCount(tt.h); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestFailureHeaders(t *testing.T) {
	orig := amqp.Table{"x-custom": "keep", HeaderRetryCount: int32(1)}
	long := strings.Repeat("e", 2000)

	h := failureHeaders(orig, 2, "transient", long)

	if h["x-custom"] != "keep" {
		t.Error("expected existing headers copied")
	}
	if h[HeaderRetryCount] != int32(2) {
		t.Errorf("expected retry count 2, got %v", h[HeaderRetryCount])
	}
	if len(h[HeaderLastError].(string)) != maxErrorHeaderLen {
		t.Errorf("expected last error truncated to %d", maxErrorHeaderLen)
	}
	if h[HeaderFailureKind] != "transient" {
		t.Errorf("unexpected kind %v", h[HeaderFailureKind])
	}
	if orig[HeaderRetryCount] != int32(1) {
		t.Error("original headers mutated")
	}
}

func TestQueueNames(t *testing.T) {
	if got := QueueName("ers", "rag.worker"); got != "ers.qu.rag.worker" {
		t.Errorf("unexpected queue name %q", got)
	}
	if got := RetryQueue("ers.qu.doc.upload"); got != "ers.qu.doc.upload.retry" {
		t.Errorf("unexpected retry queue %q", got)
	}
	if got := DeadLetterQueue("ers.qu.doc.upload"); got != "ers.qu.doc.upload.dlq" {
		t.Errorf("unexpected dlq %q", got)
	}
}
