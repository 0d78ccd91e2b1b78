package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
)

// ErrNotConfigured is returned by NewPushSender when no platform application is set.
var ErrNotConfigured = errors.New("sns: platform application not configured")

// api is the subset of the SNS client the sender calls.
type api interface {
	CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// PushSender delivers push notifications through an SNS platform application
// (FCM/GCM behind SNS). It is the push fallback when direct FCM fails.
type PushSender struct {
	client      api
	platformARN string
}

func NewPushSender(cfg *config.Config) (*PushSender, error) {
	if cfg.SNS.PlatformApplicationARN == "" {
		return nil, ErrNotConfigured
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNS.Region),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return newPushSender(sns.NewFromConfig(awsCfg, clientOpts...), cfg.SNS.PlatformApplicationARN), nil
}

func newPushSender(client api, platformARN string) *PushSender {
	return &PushSender{client: client, platformARN: platformARN}
}

func (s *PushSender) Name() string { return "sns" }

// Send registers (or looks up) the endpoint for the device token and publishes to it.
// CreatePlatformEndpoint is idempotent for an unchanged token.
func (s *PushSender) Send(ctx context.Context, token string, msg channel.Message) (string, error) {
	ep, err := s.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(s.platformARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("sns create endpoint: %w", err)
	}

	payload, err := gcmPayload(msg)
	if err != nil {
		return "", err
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        ep.EndpointArn,
		Message:          aws.String(payload),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// gcmPayload builds the per-protocol JSON document SNS expects with MessageStructure=json.
func gcmPayload(msg channel.Message) (string, error) {
	gcm, err := json.Marshal(map[string]any{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         msg.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gcm payload: %w", err)
	}
	doc, err := json.Marshal(map[string]string{
		"default": msg.Body,
		"GCM":     string(gcm),
	})
	if err != nil {
		return "", fmt.Errorf("marshal sns payload: %w", err)
	}
	return string(doc), nil
}
