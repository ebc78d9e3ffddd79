package infra

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"deliveryman-auth/auth/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsAPI é o subconjunto do cliente SQS usado aqui (permite fake nos testes).
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Limites do próprio SQS.
const (
	sqsMaxMessages = 10
	sqsMaxWait     = 20 * time.Second
)

// SQSQueue implementa domain.Queue sobre Amazon SQS. O queueID é a URL da fila.
type SQSQueue struct {
	client sqsAPI
	logger *slog.Logger
}

func NewSQSQueue(client sqsAPI, logger *slog.Logger) *SQSQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSQueue{client: client, logger: logger}
}

func (q *SQSQueue) Send(ctx context.Context, queueURL, body string, attrs map[string]string) error {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	}
	if len(attrs) > 0 {
		in.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			in.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}

	out, err := q.client.SendMessage(ctx, in)
	if err != nil {
		return domain.NewTransportError("send", queueURL, err)
	}
	q.logger.Debug("sqs message sent", "queue", queueURL, "message_id", aws.ToString(out.MessageId))
	return nil
}

// ReceiveBatch usa long polling. `wait` é arredondado para segundos inteiros
// (menos de 1s vira short polling) e limitado a 20s; `maxMessages` é limitado a 1..10.
func (q *SQSQueue) ReceiveBatch(ctx context.Context, queueURL string, maxMessages int, wait time.Duration) ([]domain.Message, error) {
	maxMessages = min(max(maxMessages, 1), sqsMaxMessages)
	wait = min(max(wait, 0), sqsMaxWait)

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		WaitTimeSeconds:       int32(wait / time.Second),
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, domain.NewTransportError("receive", queueURL, err)
	}

	msgs := make([]domain.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := domain.Message{
			ID:     aws.ToString(m.MessageId),
			Body:   aws.ToString(m.Body),
			Handle: aws.ToString(m.ReceiptHandle),
		}
		if len(m.MessageAttributes) > 0 {
			msg.Attributes = make(map[string]string, len(m.MessageAttributes))
			for k, v := range m.MessageAttributes {
				msg.Attributes[k] = aws.ToString(v.StringValue)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Delete ignora handles inválidos ou expirados (idempotente).
func (q *SQSQueue) Delete(ctx context.Context, queueURL, handle string) error {
	if handle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(handle),
	})
	if err == nil {
		return nil
	}

	var invalid *types.ReceiptHandleIsInvalid
	if errors.As(err, &invalid) {
		q.logger.Debug("sqs delete ignored stale handle", "queue", queueURL)
		return nil
	}
	return domain.NewTransportError("delete", queueURL, err)
}
