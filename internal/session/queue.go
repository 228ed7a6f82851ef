package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

type queueClient interface {
	// Send enqueues one encoded job. orderingKey groups jobs that must be
	// processed in order; implementations may use or ignore it.
	Send(ctx context.Context, body, orderingKey string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeCreate  jobType = "create"
	jobTypeMessage jobType = "message"
	jobTypeEnd     jobType = "end"
)

// InboundMessage is one crisis message delivered through the intake queue.
type InboundMessage struct {
	SessionID string `json:"session_id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
}

// EndRequest asks the worker to end a session on behalf of a caller.
type EndRequest struct {
	SessionID string `json:"session_id"`
	CallerID  string `json:"caller_id"`
}

type queuePayload struct {
	ID      string          `json:"id"`
	Kind    jobType         `json:"kind"`
	Create  *CreateOptions  `json:"create,omitempty"`
	Message *InboundMessage `json:"message,omitempty"`
	End     *EndRequest     `json:"end,omitempty"`
}

// orderingKey determines which worker lane handles the job; jobs sharing a
// session id always land on the same lane so per-session order holds.
func (p *queuePayload) orderingKey() string {
	switch {
	case p.Message != nil:
		return p.Message.SessionID
	case p.End != nil:
		return p.End.SessionID
	default:
		return p.ID
	}
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("session: encode intake payload: %w", err)
	}
	return payload, string(body), nil
}

// Intake is the producer side of the message queue, used by the hosting
// service to hand inbound traffic to the worker pool.
type Intake struct {
	queue  queueClient
	logger *logging.Logger
}

// NewIntake wraps a queue for producers.
func NewIntake(queue queueClient, logger *logging.Logger) *Intake {
	if queue == nil {
		panic("session: intake queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Intake{queue: queue, logger: logger}
}

// EnqueueMessage queues one inbound crisis message.
func (i *Intake) EnqueueMessage(ctx context.Context, msg InboundMessage) (string, error) {
	payload, body, err := encodePayload(queuePayload{Kind: jobTypeMessage, Message: &msg})
	if err != nil {
		return "", err
	}
	if err := i.queue.Send(ctx, body, payload.orderingKey()); err != nil {
		return "", fmt.Errorf("session: enqueue message job: %w", err)
	}
	return payload.ID, nil
}

// EnqueueEnd queues a session-end request.
func (i *Intake) EnqueueEnd(ctx context.Context, req EndRequest) (string, error) {
	payload, body, err := encodePayload(queuePayload{Kind: jobTypeEnd, End: &req})
	if err != nil {
		return "", err
	}
	if err := i.queue.Send(ctx, body, payload.orderingKey()); err != nil {
		return "", fmt.Errorf("session: enqueue end job: %w", err)
	}
	return payload.ID, nil
}
