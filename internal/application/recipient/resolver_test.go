package recipient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tuition-notify/internal/domain"
)

const (
	u1 = "507f1f77bcf86cd799439001"
	u2 = "507f1f77bcf86cd799439002"
	u3 = "507f1f77bcf86cd799439003"
	u4 = "507f1f77bcf86cd799439004"
	u5 = "507f1f77bcf86cd799439005"
)

// --- mocks ---

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) FindByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	args := m.Called(ctx, ids)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *mockDirectory) FindByRole(ctx context.Context, role string) ([]domain.User, error) {
	args := m.Called(ctx, role)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

// --- helpers ---

func ids(users []domain.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func assertNoExternal(t *testing.T, r domain.Recipients) {
	t.Helper()
	assert.Empty(t, r.Email)
	assert.Empty(t, r.WhatsApp)
	assert.Empty(t, r.Telegram)
	assert.Empty(t, r.Push)
}

// --- tests ---

func TestResolve_CommentBySoleAdminOwner_NobodyNotified(t *testing.T) {
	self := domain.User{ID: u1, Role: domain.RoleAdmin, Email: "a@x.io", EmailNotifications: true, FCMToken: "t", PushNotifications: true}
	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleAdmin).Return([]domain.User{self}, nil)
	dir.On("FindByIDs", mock.Anything, []string{u1}).Return([]domain.User{self}, nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{
		Kind: domain.KindComment, ActorID: u1, SubjectOwnerID: u1,
		Subject: domain.Subject{ID: u5, Commenters: domain.RefIDs(u1, u1)},
	})

	require.NoError(t, err)
	assert.Empty(t, got.InApp)
	assertNoExternal(t, got)
	dir.AssertExpectations(t)
}

func TestResolve_LikeScenario(t *testing.T) {
	owner := domain.User{ID: u2, Role: domain.RoleAdmin, FCMToken: "tok-u2", PushNotifications: true}
	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleAdmin).Return([]domain.User{owner}, nil)
	dir.On("FindByIDs", mock.Anything, []string{u2}).Return([]domain.User{owner}, nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{
		Kind: domain.KindLike, ActorID: u1, SubjectOwnerID: u2,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{u2}, got.InApp)
	assert.Equal(t, []string{u2}, ids(got.Push))
	assert.Empty(t, got.Email)
	assert.Empty(t, got.WhatsApp)
	assert.Empty(t, got.Telegram)
}

func TestResolve_TuitionPost_BroadcastsToTeachers(t *testing.T) {
	teachers := []domain.User{
		{ID: u1, Role: domain.RoleTeacher, Email: "t1@x.io", EmailNotifications: true},
		{ID: u2, Role: domain.RoleTeacher, TelegramChatID: "99", TelegramNotifications: true},
		{ID: u3, Role: domain.RoleTeacher, Phone: "+911234567890", WhatsAppNotifications: true, EmailNotifications: true},
		{ID: "bogus", Role: domain.RoleTeacher},
	}
	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleTeacher).Return(teachers, nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{
		Kind: domain.KindTuitionPost, ActorID: u4, SubjectOwnerID: u4,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{u1, u2, u3}, got.InApp)
	assert.Equal(t, []string{u1}, ids(got.Email), "u3 opted in to email but has no address")
	assert.Equal(t, []string{u2}, ids(got.Telegram))
	assert.Equal(t, []string{u3}, ids(got.WhatsApp))
	dir.AssertNotCalled(t, "FindByIDs", mock.Anything, mock.Anything)
}

func TestResolve_TuitionPost_PostingTeacherExcluded(t *testing.T) {
	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleTeacher).Return([]domain.User{{ID: u1}, {ID: u2}}, nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{Kind: domain.KindTuitionPost, ActorID: u2})

	require.NoError(t, err)
	assert.Equal(t, []string{u1}, got.InApp)
}

func TestResolve_Comment_DedupsOwnerAdminsAndCommenters(t *testing.T) {
	owner := domain.User{ID: u2, Role: domain.RoleAdmin}
	admin := domain.User{ID: u3, Role: domain.RoleAdmin}
	commenter := domain.User{ID: u4, Role: domain.RoleTeacher, FCMToken: "tok", PushNotifications: true}
	actor := domain.User{ID: u1, Role: domain.RoleTeacher}

	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleAdmin).Return([]domain.User{owner, admin}, nil)
	dir.On("FindByIDs", mock.Anything, []string{u2, u4, u1, u3}).Return([]domain.User{actor, owner, commenter, admin}, nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{
		Kind: domain.KindComment, ActorID: u1, SubjectOwnerID: u2,
		Subject: domain.Subject{
			ID: u5,
			Commenters: []domain.UserRef{
				domain.RefID(u4), &domain.User{ID: u1}, domain.RefID("junk"), domain.RefID(u4), domain.RefID(u3), nil,
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{u2, u4, u3}, got.InApp)
	assert.Equal(t, []string{u4}, ids(got.Push))
}

func TestResolve_Favorite_NoCommenters(t *testing.T) {
	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleAdmin).Return([]domain.User(nil), nil)
	dir.On("FindByIDs", mock.Anything, []string{u2}).Return([]domain.User{{ID: u2}}, nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{
		Kind: domain.KindFavorite, ActorID: u1, SubjectOwnerID: u2,
		Subject: domain.Subject{Commenters: domain.RefIDs(u3)},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{u2}, got.InApp)
}

func TestResolve_Message_OwnerOnly(t *testing.T) {
	dir := &mockDirectory{}
	dir.On("FindByIDs", mock.Anything, []string{u2}).Return([]domain.User{{ID: u2, Email: "o@x.io", EmailNotifications: true}}, nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{
		Kind: domain.KindMessage, ActorID: u1, Subject: domain.Subject{CreatedBy: u2},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{u2}, got.InApp)
	assert.Equal(t, []string{u2}, ids(got.Email))
	dir.AssertNotCalled(t, "FindByRole", mock.Anything, mock.Anything)
}

func TestResolve_OwnerMissingFromDirectory(t *testing.T) {
	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleAdmin).Return([]domain.User(nil), nil)
	dir.On("FindByIDs", mock.Anything, []string{u2}).Return([]domain.User(nil), nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{Kind: domain.KindRating, ActorID: u1, SubjectOwnerID: u2})

	require.NoError(t, err)
	assert.Empty(t, got.InApp)
}

func TestResolve_MalformedOwnerDropped(t *testing.T) {
	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleAdmin).Return([]domain.User{{ID: u3}}, nil)

	got, err := NewResolver(dir).Resolve(context.Background(), domain.Event{Kind: domain.KindLike, ActorID: u1, SubjectOwnerID: "nope"})

	require.NoError(t, err)
	assert.Equal(t, []string{u3}, got.InApp)
	dir.AssertNotCalled(t, "FindByIDs", mock.Anything, mock.Anything)
}

func TestResolve_DirectoryFailure(t *testing.T) {
	dir := &mockDirectory{}
	dir.On("FindByRole", mock.Anything, domain.RoleTeacher).Return(nil, errors.New("mongo down"))

	_, err := NewResolver(dir).Resolve(context.Background(), domain.Event{Kind: domain.KindTuitionPost})

	assert.ErrorContains(t, err, "mongo down")
}

func TestResolve_UnknownKind(t *testing.T) {
	_, err := NewResolver(&mockDirectory{}).Resolve(context.Background(), domain.Event{Kind: "promo"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
