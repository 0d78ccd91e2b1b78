package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/tuition-notify/internal/application/dispatch"
	"github.com/tuition-notify/internal/domain"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) Submit(job dispatch.Job) error {
	return m.Called(job).Error(0)
}

func record(v string) *kgo.Record {
	return &kgo.Record{Topic: "tuition-events", Value: []byte(v)}
}

const likeEvent = `{"event_id":"ev-1","kind":"like","actor_name":"Ravi","subject_owner_id":"507f1f77bcf86cd799439011","subject":{"id":"p1","title":"Physics"}}`

func TestHandle_SubmitsParsedEvent(t *testing.T) {
	r := &mockRunner{}
	r.On("Submit", mock.MatchedBy(func(j dispatch.Job) bool {
		return j.Event.ID == "ev-1" && j.Event.Kind == domain.KindLike && j.Content.Title != ""
	})).Return(nil).Once()

	assert.True(t, handle(context.Background(), r, record(likeEvent)))
	r.AssertExpectations(t)
}

func TestHandle_MalformedIsSkipped(t *testing.T) {
	r := &mockRunner{}

	assert.True(t, handle(context.Background(), r, record(`not json`)))

	r.AssertNumberOfCalls(t, "Submit", 0)
}

func TestHandle_RetriesWhileQueueFull(t *testing.T) {
	r := &mockRunner{}
	r.On("Submit", mock.Anything).Return(dispatch.ErrQueueFull).Once()
	r.On("Submit", mock.Anything).Return(nil).Once()

	handle(context.Background(), r, record(likeEvent))

	r.AssertNumberOfCalls(t, "Submit", 2)
}

func TestHandle_GivesUpOnStoppedRunner(t *testing.T) {
	r := &mockRunner{}
	r.On("Submit", mock.Anything).Return(dispatch.ErrRunnerStopped).Once()

	assert.False(t, handle(context.Background(), r, record(likeEvent)))

	r.AssertNumberOfCalls(t, "Submit", 1)
}

func TestHandle_StopsWaitingWhenCancelled(t *testing.T) {
	r := &mockRunner{}
	r.On("Submit", mock.Anything).Return(dispatch.ErrQueueFull)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan bool)
	go func() { done <- handle(ctx, r, record(likeEvent)) }()

	select {
	case queued := <-done:
		assert.False(t, queued)
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not return after cancellation")
	}
	assert.GreaterOrEqual(t, len(r.Calls), 1)
}

func TestHandleAll_StopsAtFirstUnqueuedRecord(t *testing.T) {
	r := &mockRunner{}
	r.On("Submit", mock.Anything).Return(nil).Once()
	r.On("Submit", mock.Anything).Return(dispatch.ErrRunnerStopped).Once()

	ok := handleAll(context.Background(), r, []*kgo.Record{record(likeEvent), record(`not json`), record(likeEvent), record(likeEvent)})

	assert.False(t, ok)
	r.AssertNumberOfCalls(t, "Submit", 2)
}

func TestHandleAll_MalformedDoesNotBlockCommit(t *testing.T) {
	r := &mockRunner{}
	r.On("Submit", mock.Anything).Return(nil)

	assert.True(t, handleAll(context.Background(), r, []*kgo.Record{record(`not json`), record(likeEvent)}))
}
