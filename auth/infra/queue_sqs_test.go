package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"deliveryman-auth/auth/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	sendIn    *sqs.SendMessageInput
	receiveIn *sqs.ReceiveMessageInput
	deleteIn  *sqs.DeleteMessageInput

	receiveOut *sqs.ReceiveMessageOutput
	err        error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sendIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("mid-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receiveIn = in
	if f.err != nil {
		return nil, f.err
	}
	if f.receiveOut == nil {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	return f.receiveOut, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleteIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.DeleteMessageOutput{}, nil
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123/auth-events"

func TestSQSQueue_SendMapsAttributes(t *testing.T) {
	fake := &fakeSQS{}
	q := NewSQSQueue(fake, nil)

	if err := q.Send(context.Background(), testQueueURL, `{"a":1}`, map[string]string{"eventType": "USER_AUTHENTICATED"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aws.ToString(fake.sendIn.QueueUrl) != testQueueURL || aws.ToString(fake.sendIn.MessageBody) != `{"a":1}` {
		t.Fatalf("unexpected input %+v", fake.sendIn)
	}
	attr := fake.sendIn.MessageAttributes["eventType"]
	if aws.ToString(attr.DataType) != "String" || aws.ToString(attr.StringValue) != "USER_AUTHENTICATED" {
		t.Fatalf("unexpected attribute %+v", attr)
	}
}

func TestSQSQueue_SendWithoutAttributes(t *testing.T) {
	fake := &fakeSQS{}
	if err := NewSQSQueue(fake, nil).Send(context.Background(), testQueueURL, "x", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.sendIn.MessageAttributes != nil {
		t.Fatalf("expected no attributes")
	}
}

func TestSQSQueue_ReceiveClampsLimitsAndMapsMessages(t *testing.T) {
	fake := &fakeSQS{receiveOut: &sqs.ReceiveMessageOutput{Messages: []types.Message{{
		MessageId:     aws.String("m1"),
		Body:          aws.String("body"),
		ReceiptHandle: aws.String("rh"),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String("X")},
		},
	}}}}
	q := NewSQSQueue(fake, nil)

	msgs, err := q.ReceiveBatch(context.Background(), testQueueURL, 50, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.receiveIn.MaxNumberOfMessages != 10 || fake.receiveIn.WaitTimeSeconds != 20 {
		t.Fatalf("expected clamped limits, got max=%d wait=%d", fake.receiveIn.MaxNumberOfMessages, fake.receiveIn.WaitTimeSeconds)
	}
	want := domain.Message{ID: "m1", Body: "body", Handle: "rh", Attributes: map[string]string{"eventType": "X"}}
	if len(msgs) != 1 || msgs[0].ID != want.ID || msgs[0].Body != want.Body || msgs[0].Handle != want.Handle || msgs[0].Attributes["eventType"] != "X" {
		t.Fatalf("expected %+v, got %+v", want, msgs)
	}

	if _, err := q.ReceiveBatch(context.Background(), testQueueURL, 0, 1500*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.receiveIn.MaxNumberOfMessages != 1 || fake.receiveIn.WaitTimeSeconds != 1 {
		t.Fatalf("expected max=1 wait=1, got max=%d wait=%d", fake.receiveIn.MaxNumberOfMessages, fake.receiveIn.WaitTimeSeconds)
	}
}

func TestSQSQueue_ErrorsAreTransportErrors(t *testing.T) {
	boom := errors.New("SQS Error")
	q := NewSQSQueue(&fakeSQS{err: boom}, nil)
	ctx := context.Background()

	errs := []error{
		q.Send(ctx, testQueueURL, "x", nil),
		q.Delete(ctx, testQueueURL, "rh"),
	}
	_, rerr := q.ReceiveBatch(ctx, testQueueURL, 1, 0)
	errs = append(errs, rerr)

	for i, err := range errs {
		if !errors.Is(err, domain.ErrTransport) || !errors.Is(err, boom) {
			t.Fatalf("op %d: expected transport error wrapping cause, got %v", i, err)
		}
	}
}

func TestSQSQueue_DeleteIgnoresInvalidHandle(t *testing.T) {
	q := NewSQSQueue(&fakeSQS{err: &types.ReceiptHandleIsInvalid{Message: aws.String("expired")}}, nil)

	if err := q.Delete(context.Background(), testQueueURL, "rh"); err != nil {
		t.Fatalf("expected stale handle to be ignored, got %v", err)
	}
	if err := q.Delete(context.Background(), testQueueURL, ""); err != nil {
		t.Fatalf("expected empty handle to be ignored, got %v", err)
	}
}
