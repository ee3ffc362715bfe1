// FilePath: server/worker/internal/queue/queue.sqs.go
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

// Client wraps the SQS queue holding inference job references. Receive
// long-polls for a bounded wait; Delete acknowledges a job after all
// durable side effects have committed. Redelivery after the visibility
// timeout is the system's only retry mechanism.
type Client struct {
	sqs               *sqs.Client
	queueURL          string
	waitTime          time.Duration
	batchSize         int
	visibilityTimeout time.Duration
}

// New builds a queue client from worker configuration.
func New(ctx context.Context, awsCfg config.AWSConfig, workerCfg config.WorkerConfig) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(awsCfg.Region),
	}
	if awsCfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsCfg.AccessKeyID, awsCfg.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewQueueError("failed to load AWS config", err)
	}

	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if awsCfg.SQSEndpoint != "" {
			o.BaseEndpoint = aws.String(awsCfg.SQSEndpoint)
		}
	})

	nuts.L.Infof("[Queue] SQS client ready for %s", awsCfg.QueueURL)
	return &Client{
		sqs:               client,
		queueURL:          awsCfg.QueueURL,
		waitTime:          workerCfg.WaitTime,
		batchSize:         workerCfg.BatchSize,
		visibilityTimeout: workerCfg.VisibilityTimeout,
	}, nil
}

// Receive long-polls the queue and returns up to the batch limit of
// messages. An empty slice after the wait period is normal; callers loop.
func (c *Client) Receive(ctx context.Context) ([]types.Message, error) {
	out, err := c.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: int32(c.batchSize),
		WaitTimeSeconds:     int32(c.waitTime / time.Second),
		VisibilityTimeout:   int32(c.visibilityTimeout / time.Second),
	})
	if err != nil {
		return nil, errors.NewQueueError("failed to receive messages", err)
	}
	return out.Messages, nil
}

// Delete removes a processed (or poison) message from the queue.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return errors.NewQueueError("failed to delete message", err)
	}
	return nil
}

// Send enqueues an inference job. The upload-confirmation collaborator is
// the production caller; the worker keeps it for contract symmetry and
// integration seeding.
func (c *Client) Send(ctx context.Context, job *models.Job) error {
	body, err := json.Marshal(jobBody{
		StorageKey: job.StorageKey,
		HomeID:     job.HomeID,
		DeviceID:   job.DeviceID,
		Timestamp:  job.EnqueuedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.NewInternalError("failed to marshal job", err)
	}

	_, err = c.sqs.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return errors.NewQueueError("failed to send message", err)
	}
	return nil
}

// jobBody is the wire shape of a queued job.
type jobBody struct {
	StorageKey string `json:"s3_key"`
	HomeID     string `json:"home_id"`
	DeviceID   string `json:"device_id"`
	Timestamp  string `json:"timestamp"`
}

// ParseJob validates a raw queue message into a Job. A validation error
// marks the message as poison: the caller deletes it immediately instead
// of letting the queue redeliver it forever.
func ParseJob(msg types.Message) (*models.Job, error) {
	if msg.Body == nil || msg.ReceiptHandle == nil {
		return nil, errors.NewValidationError("message missing body or receipt handle", nil)
	}

	var body jobBody
	if err := json.Unmarshal([]byte(*msg.Body), &body); err != nil {
		return nil, errors.NewValidationError("message body is not valid JSON", err)
	}
	if body.StorageKey == "" {
		return nil, errors.NewValidationError("message missing s3_key", nil)
	}
	if _, err := uuid.Parse(body.HomeID); err != nil {
		return nil, errors.NewValidationError("message home_id is not a valid UUID", err)
	}
	if _, err := uuid.Parse(body.DeviceID); err != nil {
		return nil, errors.NewValidationError("message device_id is not a valid UUID", err)
	}
	enqueuedAt, err := time.Parse(time.RFC3339, body.Timestamp)
	if err != nil {
		return nil, errors.NewValidationError("message timestamp is not RFC3339", err)
	}

	return &models.Job{
		StorageKey:    body.StorageKey,
		HomeID:        body.HomeID,
		DeviceID:      body.DeviceID,
		EnqueuedAt:    enqueuedAt,
		ReceiptHandle: *msg.ReceiptHandle,
	}, nil
}
