package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-api-otp/internal/config"
)

// RecipientAttribute carries the destination address. Email subscribers
// filter or route on it.
const RecipientAttribute = "recipient"

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// TopicMailer publishes verification emails to an SNS topic. It satisfies
// the same SendEmail contract as the SMTP mailer.
type TopicMailer struct {
	client   publisher
	topicARN string
}

func NewTopicMailer(cfg *config.Config) (*TopicMailer, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for sns: %w", err)
	}

	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return newTopicMailer(sns.NewFromConfig(awsCfg, clientOpts...), cfg.SNSTopicARN), nil
}

func newTopicMailer(client publisher, topicARN string) *TopicMailer {
	return &TopicMailer{client: client, topicARN: topicARN}
}

func (m *TopicMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	_, err := m.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(m.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			RecipientAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(to),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
