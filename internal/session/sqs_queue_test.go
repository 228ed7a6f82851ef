package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFIFOQueueURL(t *testing.T) {
	tests := []struct {
		name     string
		queueURL string
		want     bool
	}{
		{"fifo queue", "https://sqs.us-east-1.amazonaws.com/123456789012/crisis-intake.fifo", true},
		{"standard queue", "https://sqs.us-east-1.amazonaws.com/123456789012/crisis-intake", false},
		{"fifo in path only", "https://sqs.us-east-1.amazonaws.com/123456789012/fifo-intake", false},
		{"localstack fifo", "http://localhost:4566/000000000000/intake.fifo", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isFIFOQueueURL(tt.queueURL))
		})
	}
}

func TestQueuePayloadOrderingKey(t *testing.T) {
	msg := queuePayload{ID: "job-1", Kind: jobTypeMessage, Message: &InboundMessage{SessionID: "sess-1"}}
	assert.Equal(t, "sess-1", msg.orderingKey())

	end := queuePayload{ID: "job-2", Kind: jobTypeEnd, End: &EndRequest{SessionID: "sess-2"}}
	assert.Equal(t, "sess-2", end.orderingKey())

	other := queuePayload{ID: "job-3", Kind: jobTypeCreate}
	assert.Equal(t, "job-3", other.orderingKey())
}
