package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tuition-notify/internal/application/notification"
	"github.com/tuition-notify/internal/application/recipient"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/infrastructure/memory"
)

const (
	u1 = "507f1f77bcf86cd799439001"
	u2 = "507f1f77bcf86cd799439002"
	u3 = "507f1f77bcf86cd799439003"
)

// --- fakes ---

type fakeSender struct {
	mu    sync.Mutex
	calls [][]string
	msgs  []channel.Message
	fail  int
	panic bool
	// started, when set, is closed on entry; release blocks until closed.
	started chan struct{}
	release chan struct{}
}

func (f *fakeSender) SendBulk(ctx context.Context, addresses []string, msg channel.Message) channel.BulkResult {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return channel.BulkResult{Failed: len(addresses)}
		}
	}
	if f.panic {
		panic("provider SDK exploded")
	}
	f.mu.Lock()
	f.calls = append(f.calls, addresses)
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	failed := min(f.fail, len(addresses))
	return channel.BulkResult{Sent: len(addresses) - failed, Failed: failed}
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, ev domain.Event) (domain.Recipients, error) {
	args := m.Called(ctx, ev)
	r, _ := args.Get(0).(domain.Recipients)
	return r, args.Error(1)
}

type mockInApp struct{ mock.Mock }

func (m *mockInApp) CreateBulk(ctx context.Context, refs []domain.UserRef, title, message string, kind domain.Kind, related string) (int, error) {
	args := m.Called(ctx, refs, title, message, kind, related)
	if fn, ok := args.Get(0).(func()); ok {
		fn()
	}
	return args.Int(1), args.Error(2)
}

type fakeClaimer struct {
	seen map[string]bool
	err  error
}

func (c *fakeClaimer) Claim(_ context.Context, eventID string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if c.seen == nil {
		c.seen = map[string]bool{}
	}
	if c.seen[eventID] {
		return false, nil
	}
	c.seen[eventID] = true
	return true, nil
}

// --- helpers ---

var content = domain.Content{Title: "New Like ❤️", Message: "Asha liked your post \"Maths tutor\""}

func allChannels(senders map[domain.Channel]*fakeSender) map[domain.Channel]Sender {
	out := make(map[domain.Channel]Sender, len(senders))
	for ch, s := range senders {
		out[ch] = s
	}
	return out
}

func fourSenders() map[domain.Channel]*fakeSender {
	return map[domain.Channel]*fakeSender{
		domain.ChannelEmail:    {},
		domain.ChannelWhatsApp: {},
		domain.ChannelTelegram: {},
		domain.ChannelPush:     {},
	}
}

func everyone() domain.Recipients {
	return recipient.Partition([]domain.User{
		{ID: u2, Email: "u2@x.io", EmailNotifications: true, Phone: "+910000000002", WhatsAppNotifications: true,
			TelegramChatID: "2002", TelegramNotifications: true, FCMToken: "tok-2", PushNotifications: true},
		{ID: u3, Email: "u3@x.io", EmailNotifications: true, Phone: "+910000000003", WhatsAppNotifications: true,
			TelegramChatID: "2003", TelegramNotifications: true, FCMToken: "tok-3", PushNotifications: true},
	})
}

// --- tests ---

func TestDispatch_LikeScenario(t *testing.T) {
	dir := memory.NewDirectory(
		domain.User{ID: u1, Role: domain.RoleTeacher},
		domain.User{ID: u2, Role: domain.RoleAdmin, FCMToken: "tok-u2", PushNotifications: true},
	)
	store := memory.NewNotificationStore()
	senders := fourSenders()
	d := NewDispatcher(Deps{
		Resolver: recipient.NewResolver(dir),
		Store:    notification.NewService(store),
		Channels: allChannels(senders),
	})

	out := d.Dispatch(context.Background(), domain.Event{Kind: domain.KindLike, ActorID: u1, SubjectOwnerID: u2}, content)

	assert.Empty(t, out.Error)
	assert.Equal(t, 1, out.InApp.Created)
	assert.Equal(t, domain.ChannelOutcome{Attempted: 1, Succeeded: 1}, out.Channels[domain.ChannelPush])
	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelWhatsApp, domain.ChannelTelegram} {
		assert.Equal(t, domain.ChannelOutcome{}, out.Channels[ch], ch)
		assert.Empty(t, senders[ch].calls, ch)
	}
	assert.Equal(t, [][]string{{"tok-u2"}}, senders[domain.ChannelPush].calls)

	inbox, err := store.ListByRecipient(context.Background(), u2, 0, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.KindLike, inbox[0].Kind)
	unread, err := store.CountUnread(context.Background(), u1)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestDispatch_NonObjectIDSubjectStillStoresInApp(t *testing.T) {
	dir := memory.NewDirectory(
		domain.User{ID: u1, Role: domain.RoleTeacher},
		domain.User{ID: u2, Role: domain.RoleTeacher},
	)
	store := memory.NewNotificationStore()
	d := NewDispatcher(Deps{
		Resolver: recipient.NewResolver(dir),
		Store:    notification.NewService(store),
	})
	ev := domain.Event{
		Kind:           domain.KindLike,
		ActorID:        u1,
		SubjectOwnerID: u2,
		Subject:        domain.Subject{ID: "01HZX3K8Q7P9R2T4V6W8Y0A2C4", Title: "Maths tutor"},
	}

	out := d.Dispatch(context.Background(), ev, content)

	assert.Empty(t, out.InApp.Error)
	assert.Equal(t, 1, out.InApp.Created)
	inbox, err := store.ListByRecipient(context.Background(), u2, 0, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Empty(t, inbox[0].RelatedSubjectID)
}

func TestDispatch_OnePanickingChannelIsIsolated(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(everyone(), nil)
	store := &mockInApp{}
	store.On("CreateBulk", mock.Anything, mock.Anything, content.Title, content.Message, domain.KindComment, "").Return(nil, 2, nil)

	senders := fourSenders()
	senders[domain.ChannelWhatsApp].panic = true
	senders[domain.ChannelTelegram].fail = 1

	out := NewDispatcher(Deps{Resolver: res, Store: store, Channels: allChannels(senders)}).
		Dispatch(context.Background(), domain.Event{Kind: domain.KindComment, ActorID: u1}, content)

	assert.Empty(t, out.Error)
	assert.Equal(t, 2, out.InApp.Created)
	assert.Equal(t, domain.ChannelOutcome{Attempted: 2, Succeeded: 2}, out.Channels[domain.ChannelEmail])
	assert.Equal(t, domain.ChannelOutcome{Attempted: 2, Succeeded: 1, Failed: 1}, out.Channels[domain.ChannelTelegram])
	assert.Equal(t, domain.ChannelOutcome{Attempted: 2, Succeeded: 2}, out.Channels[domain.ChannelPush])
	wa := out.Channels[domain.ChannelWhatsApp]
	assert.Equal(t, 2, wa.Attempted)
	assert.Equal(t, 2, wa.Failed)
	assert.Contains(t, wa.Error, "panic")
}

func TestDispatch_ChannelsRunConcurrently(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(everyone(), nil)
	store := &mockInApp{}
	store.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, 2, nil)

	release := make(chan struct{})
	senders := fourSenders()
	var started []chan struct{}
	for _, s := range senders {
		s.started = make(chan struct{})
		s.release = release
		started = append(started, s.started)
	}
	go func() {
		// Every sender must be inside SendBulk before any is allowed to finish.
		for _, c := range started {
			<-c
		}
		close(release)
	}()

	done := make(chan domain.DispatchOutcome, 1)
	go func() {
		done <- NewDispatcher(Deps{Resolver: res, Store: store, Channels: allChannels(senders)}).
			Dispatch(context.Background(), domain.Event{Kind: domain.KindRating}, content)
	}()

	select {
	case out := <-done:
		for ch, co := range out.Channels {
			assert.Equal(t, 2, co.Succeeded, ch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channels were not dispatched concurrently")
	}
}

func TestDispatch_UnconfiguredChannelSkipped(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(everyone(), nil)
	store := &mockInApp{}
	store.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, 2, nil)
	email := &fakeSender{}

	out := NewDispatcher(Deps{
		Resolver: res, Store: store,
		Channels: map[domain.Channel]Sender{domain.ChannelEmail: email},
	}).Dispatch(context.Background(), domain.Event{Kind: domain.KindFavorite}, content)

	assert.Equal(t, 2, out.Channels[domain.ChannelEmail].Succeeded)
	for _, ch := range []domain.Channel{domain.ChannelWhatsApp, domain.ChannelTelegram, domain.ChannelPush} {
		co := out.Channels[ch]
		assert.True(t, co.Skipped, ch)
		assert.Zero(t, co.Attempted, ch)
	}
}

func TestDispatch_FormatsPerChannel(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(everyone(), nil)
	store := &mockInApp{}
	store.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, 2, nil)
	senders := fourSenders()
	ev := domain.Event{Kind: domain.KindTuitionPost, Subject: domain.Subject{ID: "65a1f77bcf86cd7994390aaa", Title: "Maths"}}

	NewDispatcher(Deps{Resolver: res, Store: store, Channels: allChannels(senders)}).Dispatch(context.Background(), ev, content)

	require.Len(t, senders[domain.ChannelEmail].msgs, 1)
	assert.NotEmpty(t, senders[domain.ChannelEmail].msgs[0].HTML)
	require.Len(t, senders[domain.ChannelPush].msgs, 1)
	assert.Equal(t, "65a1f77bcf86cd7994390aaa", senders[domain.ChannelPush].msgs[0].Data["subjectId"])
}

func TestDispatch_InvalidContent(t *testing.T) {
	res := &mockResolver{}

	out := NewDispatcher(Deps{Resolver: res}).Dispatch(context.Background(), domain.Event{Kind: domain.KindLike}, domain.Content{Title: "only a title"})

	assert.Contains(t, out.Error, "Message")
	res.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestDispatch_ResolverFailureIsReported(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(domain.Recipients{}, errors.New("directory timeout"))
	store := &mockInApp{}

	out := NewDispatcher(Deps{Resolver: res, Store: store}).Dispatch(context.Background(), domain.Event{Kind: domain.KindLike}, content)

	assert.Contains(t, out.Error, "directory timeout")
	store.AssertNumberOfCalls(t, "CreateBulk", 0)
}

func TestDispatch_InAppFailureDoesNotStopChannels(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(everyone(), nil)
	store := &mockInApp{}
	store.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, 0, domain.ErrPersistence)
	senders := fourSenders()

	out := NewDispatcher(Deps{Resolver: res, Store: store, Channels: allChannels(senders)}).
		Dispatch(context.Background(), domain.Event{Kind: domain.KindLike}, content)

	assert.Empty(t, out.Error)
	assert.Equal(t, domain.ErrPersistence.Error(), out.InApp.Error)
	assert.Equal(t, 2, out.Channels[domain.ChannelPush].Succeeded)
}

func TestDispatch_InAppPanicIsContained(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(everyone(), nil)
	store := &mockInApp{}
	store.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(func() { panic("nil collection") }, 0, nil)
	senders := fourSenders()

	out := NewDispatcher(Deps{Resolver: res, Store: store, Channels: allChannels(senders)}).
		Dispatch(context.Background(), domain.Event{Kind: domain.KindLike}, content)

	assert.Contains(t, out.InApp.Error, "panic")
	assert.Equal(t, 2, out.Channels[domain.ChannelEmail].Succeeded)
}

func TestDispatch_NobodyToNotify(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(recipient.Partition(nil), nil)
	store := &mockInApp{}
	senders := fourSenders()

	out := NewDispatcher(Deps{Resolver: res, Store: store, Channels: allChannels(senders)}).
		Dispatch(context.Background(), domain.Event{Kind: domain.KindComment}, content)

	assert.Empty(t, out.Error)
	assert.Zero(t, out.InApp.Created)
	store.AssertNumberOfCalls(t, "CreateBulk", 0)
	for ch, s := range senders {
		assert.Empty(t, s.calls, ch)
	}
}

func TestDispatch_DuplicateEventSkipped(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(recipient.Partition(nil), nil).Once()
	d := NewDispatcher(Deps{Resolver: res, Store: &mockInApp{}, Claimer: &fakeClaimer{}})
	ev := domain.Event{ID: "evt-1", Kind: domain.KindLike}

	first := d.Dispatch(context.Background(), ev, content)
	second := d.Dispatch(context.Background(), ev, content)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	res.AssertNumberOfCalls(t, "Resolve", 1)
}

func TestDispatch_ClaimErrorFailsOpen(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(recipient.Partition(nil), nil)
	d := NewDispatcher(Deps{Resolver: res, Store: &mockInApp{}, Claimer: &fakeClaimer{err: errors.New("redis down")}})

	out := d.Dispatch(context.Background(), domain.Event{ID: "evt-2", Kind: domain.KindLike}, content)

	assert.False(t, out.Duplicate)
	res.AssertExpectations(t)
}

func TestDispatch_TaskTimeoutCountsAsFailure(t *testing.T) {
	res := &mockResolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(everyone(), nil)
	store := &mockInApp{}
	store.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, 2, nil)
	stuck := &fakeSender{release: make(chan struct{})}

	out := NewDispatcher(Deps{
		Resolver: res, Store: store,
		Channels:    map[domain.Channel]Sender{domain.ChannelTelegram: stuck},
		TaskTimeout: 20 * time.Millisecond,
	}).Dispatch(context.Background(), domain.Event{Kind: domain.KindLike}, content)

	assert.Equal(t, domain.ChannelOutcome{Attempted: 2, Failed: 2}, out.Channels[domain.ChannelTelegram])
	assert.Equal(t, 2, out.InApp.Created)
}
