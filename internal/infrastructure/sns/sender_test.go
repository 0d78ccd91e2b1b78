package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, _ ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.CreatePlatformEndpointOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.PublishOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestNewPushSender_NotConfigured(t *testing.T) {
	_, err := NewPushSender(&config.Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSend_PublishesToEndpoint(t *testing.T) {
	api := &mockAPI{}
	api.On("CreatePlatformEndpoint", mock.Anything, mock.MatchedBy(func(in *sns.CreatePlatformEndpointInput) bool {
		return aws.ToString(in.Token) == "tok-1" && aws.ToString(in.PlatformApplicationArn) == "arn:app"
	})).Return(&sns.CreatePlatformEndpointOutput{EndpointArn: aws.String("arn:endpoint")}, nil)

	var published *sns.PublishInput
	api.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		published = args.Get(1).(*sns.PublishInput)
	}).Return(&sns.PublishOutput{MessageId: aws.String("msg-1")}, nil)

	s := newPushSender(api, "arn:app")
	id, err := s.Send(context.Background(), "tok-1", channel.Message{Title: "T", Body: "B", Data: map[string]string{"type": "like"}})

	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.NotNil(t, published)
	assert.Equal(t, "arn:endpoint", aws.ToString(published.TargetArn))
	assert.Equal(t, "json", aws.ToString(published.MessageStructure))

	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(published.Message)), &doc))
	assert.Equal(t, "B", doc["default"])
	assert.Contains(t, doc["GCM"], `"type":"like"`)
	api.AssertExpectations(t)
}

func TestSend_EndpointError(t *testing.T) {
	api := &mockAPI{}
	api.On("CreatePlatformEndpoint", mock.Anything, mock.Anything).Return(nil, errors.New("InvalidParameter"))

	_, err := newPushSender(api, "arn:app").Send(context.Background(), "bad", channel.Message{})

	assert.ErrorContains(t, err, "sns create endpoint")
	api.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
