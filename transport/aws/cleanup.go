package aws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// cleanupTimeout bounds the AWS calls made when a binding is closed.
const cleanupTimeout = 10 * time.Second

// SNSClient is the part of the SNS API used to remove a binding's subscription.
type SNSClient interface {
	amazonsns.ListSubscriptionsByTopicAPIClient
	Unsubscribe(ctx context.Context, params *amazonsns.UnsubscribeInput, optFns ...func(*amazonsns.Options)) (*amazonsns.UnsubscribeOutput, error)
}

// SQSClient is the part of the SQS API used to remove a binding's queue.
type SQSClient interface {
	GetQueueUrl(ctx context.Context, params *amazonsqs.GetQueueUrlInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *amazonsqs.GetQueueAttributesInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.GetQueueAttributesOutput, error)
	DeleteQueue(ctx context.Context, params *amazonsqs.DeleteQueueInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.DeleteQueueOutput, error)
}

// SNSClientFactory allows overriding the SNS client creation for testing.
var SNSClientFactory = func(cfg aws.Config, optFns ...func(*amazonsns.Options)) SNSClient {
	return amazonsns.NewFromConfig(cfg, optFns...)
}

// SQSClientFactory allows overriding the SQS client creation for testing.
var SQSClientFactory = func(cfg aws.Config, optFns ...func(*amazonsqs.Options)) SQSClient {
	return amazonsqs.NewFromConfig(cfg, optFns...)
}

// subscriber owns the SQS queue and SNS subscription of one binding and
// removes both on Close.
type subscriber struct {
	message.Subscriber

	queueName string
	resolver  sns.TopicResolver
	sns       SNSClient
	sqs       SQSClient
	logger    watermill.LoggerAdapter

	mu     sync.Mutex
	topics []string

	closeOnce sync.Once
	closeErr  error
}

func (s *subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	// Recorded before subscribing: a failed Subscribe may still have
	// created the queue and its subscription.
	s.mu.Lock()
	s.topics = append(s.topics, topic)
	s.mu.Unlock()
	return s.Subscriber.Subscribe(ctx, topic)
}

func (s *subscriber) Close() error {
	s.closeOnce.Do(func() {
		errs := []error{s.Subscriber.Close()}

		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := s.removeQueue(ctx); err != nil {
			s.logger.Error("Failed to remove binding queue", err, watermill.LogFields{"sqs_queue": s.queueName})
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *subscriber) removeQueue(ctx context.Context) error {
	urlOut, err := s.sqs.GetQueueUrl(ctx, &amazonsqs.GetQueueUrlInput{QueueName: aws.String(s.queueName)})
	if err != nil {
		var missing *sqstypes.QueueDoesNotExist
		if errors.As(err, &missing) {
			return nil
		}
		return fmt.Errorf("get url of queue %s: %w", s.queueName, err)
	}

	attrs, err := s.sqs.GetQueueAttributes(ctx, &amazonsqs.GetQueueAttributesInput{
		QueueUrl:       urlOut.QueueUrl,
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return fmt.Errorf("get arn of queue %s: %w", s.queueName, err)
	}
	queueArn := attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]

	s.mu.Lock()
	topics := append([]string(nil), s.topics...)
	s.mu.Unlock()

	var errs []error
	for _, topic := range topics {
		errs = append(errs, s.unsubscribe(ctx, topic, queueArn))
	}

	if _, err := s.sqs.DeleteQueue(ctx, &amazonsqs.DeleteQueueInput{QueueUrl: urlOut.QueueUrl}); err != nil {
		errs = append(errs, fmt.Errorf("delete queue %s: %w", s.queueName, err))
	} else {
		s.logger.Info("Removed binding queue", watermill.LogFields{"sqs_queue": s.queueName})
	}
	return errors.Join(errs...)
}

// unsubscribe removes every subscription of topic that delivers to queueArn.
func (s *subscriber) unsubscribe(ctx context.Context, topic, queueArn string) error {
	if queueArn == "" {
		return nil
	}
	topicArn, err := s.resolver.ResolveTopic(ctx, topic)
	if err != nil {
		return fmt.Errorf("resolve topic %s: %w", topic, err)
	}

	pages := amazonsns.NewListSubscriptionsByTopicPaginator(s.sns, &amazonsns.ListSubscriptionsByTopicInput{
		TopicArn: aws.String(string(topicArn)),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list subscriptions of %s: %w", topicArn, err)
		}
		for _, sub := range page.Subscriptions {
			if aws.ToString(sub.Endpoint) != queueArn {
				continue
			}
			if _, err := s.sns.Unsubscribe(ctx, &amazonsns.UnsubscribeInput{SubscriptionArn: sub.SubscriptionArn}); err != nil {
				return fmt.Errorf("unsubscribe %s: %w", aws.ToString(sub.SubscriptionArn), err)
			}
		}
	}
	return nil
}
