package notice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindActiveDueIn(ctx context.Context, dates []time.Time) ([]models.Subscription, error) {
	args := m.Called(ctx, dates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *MockRepository) CreateNotification(ctx context.Context, n models.Notification) (int64, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(int64), args.Error(1)
}

func date(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestService_CreatePaymentNotices(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindActiveDueIn", mock.Anything, []time.Time{date(13), date(10), date(9)}).Return([]models.Subscription{
		{ID: 1, UserID: 11, Name: "Netflix", NextPaymentDate: date(13)},
		{ID: 2, UserID: 12, Name: "Spotify", NextPaymentDate: date(10)},
		{ID: 3, UserID: 13, Name: "Gym", NextPaymentDate: date(9)},
		{ID: 4, UserID: 14, Name: "Stray", NextPaymentDate: date(20)},
	}, nil).Once()

	var got []models.Notification
	repo.On("CreateNotification", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = append(got, args.Get(1).(models.Notification))
	}).Return(int64(1), nil)

	n, err := NewNoticeService(repo, nil, sl.Discard()).CreatePaymentNotices(context.Background(), time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, got, 3)
	assert.Equal(t, models.NotificationPaymentDue, got[0].Type)
	assert.Equal(t, models.PriorityMedium, got[0].Priority)
	assert.Equal(t, 3, got[0].DaysUntil)
	assert.Equal(t, models.NotificationPaymentToday, got[1].Type)
	assert.Equal(t, models.PriorityHigh, got[1].Priority)
	assert.Equal(t, models.NotificationPaymentOverdue, got[2].Type)
	assert.Equal(t, int64(13), got[2].UserID)
}

func TestService_CreatePaymentNotices_FailureIsIsolated(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindActiveDueIn", mock.Anything, mock.Anything).Return([]models.Subscription{
		{ID: 1, Name: "A", NextPaymentDate: date(10)},
		{ID: 2, Name: "B", NextPaymentDate: date(10)},
	}, nil).Once()
	repo.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n models.Notification) bool { return n.SubscriptionID == 1 })).
		Return(int64(0), errors.New("insert failed")).Once()
	repo.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n models.Notification) bool { return n.SubscriptionID == 2 })).
		Return(int64(5), nil).Once()

	n, err := NewNoticeService(repo, nil, sl.Discard()).CreatePaymentNotices(context.Background(), date(10))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

func TestService_CreatePaymentNotices_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindActiveDueIn", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	_, err := NewNoticeService(repo, nil, sl.Discard()).CreatePaymentNotices(context.Background(), date(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notice.CreatePaymentNotices")
}
