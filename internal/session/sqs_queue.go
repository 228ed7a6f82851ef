package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// orderingKeyAttribute carries a job's lane key on the wire so operators can
// trace per-session traffic without decoding bodies.
const orderingKeyAttribute = "ordering_key"

// SQSQueue backs the intake queue with AWS SQS for multi-instance
// deployments. On a FIFO queue the ordering key becomes the message group,
// so per-session order holds across instances, not just across lanes.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	fifo     bool
}

// NewSQSQueue wraps an SQS client for the given queue URL.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("session: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("session: SQS queueURL cannot be empty")
	}
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
		fifo:     isFIFOQueueURL(queueURL),
	}
}

func isFIFOQueueURL(queueURL string) bool {
	return strings.HasSuffix(queueURL, ".fifo")
}

func (q *SQSQueue) Send(ctx context.Context, body, orderingKey string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}
	if orderingKey != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			orderingKeyAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(orderingKey),
			},
		}
	}
	if q.fifo {
		groupID := orderingKey
		if groupID == "" {
			groupID = "intake"
		}
		input.MessageGroupId = aws.String(groupID)
		input.MessageDeduplicationId = aws.String(uuid.NewString())
	}

	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("session: send intake message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		WaitTimeSeconds:       int32(waitSeconds),
		MessageAttributeNames: []string{orderingKeyAttribute},
	})
	if err != nil {
		return nil, fmt.Errorf("session: receive intake messages: %w", err)
	}

	messages := make([]queueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, queueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("session: delete intake message: %w", err)
	}
	return nil
}
