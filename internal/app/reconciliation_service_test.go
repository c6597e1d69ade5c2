package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/subscription"
	"pnr_tracker/internal/domain/transport"
	"pnr_tracker/internal/domain/user"
	"pnr_tracker/internal/infra/memory"
)

type reconcileFixture struct {
	subs    *memory.SubscriptionRepository
	records *memory.NotificationRepository
	users   *memory.UserRepository
	fetcher *fakeFetcher
	email   *fakeTransport
	sms     *fakeTransport
	metrics *countingMetrics
	service *ReconciliationService
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	f := &reconcileFixture{
		subs:    memory.NewSubscriptionRepository(),
		records: memory.NewNotificationRepository(),
		users: memory.NewUserRepository(user.User{
			ID:          "u1",
			Email:       "asha@example.com",
			FirstName:   "Asha",
			Phone:       "+15550100",
			Preferences: user.Preferences{Email: true},
		}),
		fetcher: newFakeFetcher(),
		email:   &fakeTransport{},
		sms:     &fakeTransport{},
		metrics: &countingMetrics{},
	}
	dispatcher := NewNotificationDispatcher(f.records, map[notification.Channel]transport.Transport{
		notification.ChannelEmail: f.email,
		notification.ChannelSMS:   f.sms,
	}, time.Second, f.metrics, quietLogger())
	f.service = NewReconciliationService(f.subs, f.users, f.fetcher, dispatcher, 2, f.metrics, quietLogger())
	return f
}

func (f *reconcileFixture) subscribe(t *testing.T, userID, number string) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{UserID: userID, PNRNumber: number, PassengerName: "Asha", IsActive: true}
	require.NoError(t, f.subs.Create(context.Background(), sub))
	return sub
}

func (f *reconcileFixture) load(t *testing.T, sub *subscription.Subscription) *subscription.Subscription {
	t.Helper()
	got, err := f.subs.GetForUser(context.Background(), sub.UserID, sub.ID)
	require.NoError(t, err)
	return got
}

func TestReconcileAll_FirstFetchInitializesStatus(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.subscribe(t, "u1", "1234567890")
	f.fetcher.set("1234567890", "RAC 12")

	summary, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 0, summary.Failed)

	got := f.load(t, sub)
	require.NotNil(t, got.CurrentStatus)
	assert.Equal(t, "RAC 12", got.CurrentStatus.Status)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, "RAC 12", got.StatusHistory[0].Status)
	assert.False(t, got.StatusHistory[0].NotificationSent)
	assert.NotNil(t, got.LastChecked)
}

func TestReconcileAll_SameLabelIsNoOp(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.subscribe(t, "u1", "1234567890")
	f.fetcher.set("1234567890", "CNF")

	_, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	first := f.load(t, sub)

	f.fetcher.setSnapshot("1234567890", pnr.StatusSnapshot{
		Status:      "CNF",
		Coach:       "B2",
		SeatNumber:  "7",
		ChartStatus: pnr.ChartPrepared,
	})
	summary, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Changed)

	second := f.load(t, sub)
	assert.Len(t, second.StatusHistory, 1)
	assert.Equal(t, "B2", second.CurrentStatus.Coach)
	assert.Equal(t, pnr.ChartPrepared, second.CurrentStatus.ChartStatus)
	assert.False(t, second.LastChecked.Before(*first.LastChecked))
	assert.Len(t, f.email.messages(), 1, "only the first fetch notifies")
}

func TestReconcileAll_ChangeAppendsHistoryAndNotifiesOnce(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.subscribe(t, "u1", "1234567890")
	f.fetcher.set("1234567890", "CHART NOT PREPARED")
	_, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	before := len(f.email.messages())

	f.fetcher.set("1234567890", "CONFIRMED")
	summary, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.Notified)

	got := f.load(t, sub)
	require.Len(t, got.StatusHistory, 2)
	last := got.StatusHistory[1]
	assert.Equal(t, "CONFIRMED", last.Status)
	assert.False(t, last.NotificationSent)

	msgs := f.email.messages()
	require.Len(t, msgs, before+1)
	msg := msgs[len(msgs)-1]
	assert.Equal(t, "asha@example.com", msg.Recipient)
	assert.Equal(t, "PNR Update for 1234567890", msg.Subject)
	assert.Contains(t, msg.Body, "Dear Asha")
	assert.Contains(t, msg.Body, "CONFIRMED")
	assert.Contains(t, msg.Body, `"seatNumber": "42"`)

	assert.Empty(t, f.sms.messages(), "sms preference is off")
}

func TestReconcileAll_IsolatesFailures(t *testing.T) {
	f := newReconcileFixture(t)
	first := f.subscribe(t, "u1", "1111111111")
	second := f.subscribe(t, "u1", "2222222222")
	third := f.subscribe(t, "u1", "3333333333")
	f.fetcher.set("1111111111", "CNF")
	f.fetcher.fail("2222222222", "request timed out")
	f.fetcher.set("3333333333", "WL 4")

	var summary Summary
	var err error
	require.NotPanics(t, func() {
		summary, err = f.service.ReconcileAll(context.Background())
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Changed)

	assert.Equal(t, "CNF", f.load(t, first).CurrentStatus.Status)
	assert.Equal(t, "WL 4", f.load(t, third).CurrentStatus.Status)

	untouched := f.load(t, second)
	assert.Nil(t, untouched.CurrentStatus)
	assert.Nil(t, untouched.LastChecked)
	assert.Empty(t, untouched.StatusHistory)

	require.Len(t, f.metrics.passes, 1)
	assert.Equal(t, 1, f.metrics.passes[0].Failed)
}

func TestReconcileAll_RecoversFromPanickingItem(t *testing.T) {
	f := newReconcileFixture(t)
	f.subscribe(t, "u1", "1111111111")
	ok := f.subscribe(t, "u1", "2222222222")
	f.fetcher.explode("1111111111")
	f.fetcher.set("2222222222", "CNF")

	summary, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, "CNF", f.load(t, ok).CurrentStatus.Status)
}

func TestReconcileAll_SkipsInactiveSubscriptions(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.subscribe(t, "u1", "1234567890")
	inactive := false
	_, err := f.subs.Update(context.Background(), "u1", sub.ID, subscription.Patch{IsActive: &inactive})
	require.NoError(t, err)
	f.fetcher.set("1234567890", "CNF")

	summary, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Zero(t, f.fetcher.calls["1234567890"])
}

func TestReconcileAll_TransportFailureKeepsStatusUpdate(t *testing.T) {
	f := newReconcileFixture(t)
	f.email.err = errSMTPDown
	sub := f.subscribe(t, "u1", "1234567890")
	f.fetcher.set("1234567890", "CNF")

	summary, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.NotifyFailed)

	got := f.load(t, sub)
	assert.Equal(t, "CNF", got.CurrentStatus.Status)
	assert.Len(t, got.StatusHistory, 1)

	recs := f.records.All()
	require.Len(t, recs, 1)
	assert.Equal(t, notification.StatusFailed, recs[0].DeliveryStatus)
	assert.NotEmpty(t, recs[0].ErrorMessage)
}

func TestReconcileAll_HistoryNeverRepeatsAdjacentLabels(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.subscribe(t, "u1", "1234567890")

	for _, status := range []string{"WL 10", "WL 10", "WL 3", "RAC 1", "RAC 1", "CNF", "CNF", "WL 3"} {
		f.fetcher.set("1234567890", status)
		_, err := f.service.ReconcileAll(context.Background())
		require.NoError(t, err)
	}

	history := f.load(t, sub).StatusHistory
	labels := make([]string, 0, len(history))
	for _, h := range history {
		labels = append(labels, h.Status)
	}
	assert.Equal(t, []string{"WL 10", "WL 3", "RAC 1", "CNF", "WL 3"}, labels)
}

func TestRefreshSubscription_DoesNotNotify(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.subscribe(t, "u1", "1234567890")
	f.fetcher.set("1234567890", "CNF")

	res, err := f.service.RefreshSubscription(context.Background(), "u1", sub.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "CNF", res.Snapshot.Status)
	require.NotNil(t, res.Subscription)
	assert.Len(t, res.Subscription.StatusHistory, 1)
	assert.Empty(t, f.email.messages())

	// the scheduled path sees the same state and does not re-append
	summary, err := f.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Changed)
}

func TestRefreshSubscription_Errors(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.subscribe(t, "u1", "1234567890")
	f.fetcher.fail("1234567890", "unexpected status 503")

	_, err := f.service.RefreshSubscription(context.Background(), "u2", sub.ID)
	assert.ErrorIs(t, err, subscription.ErrNotFound)

	_, err = f.service.RefreshSubscription(context.Background(), "u1", sub.ID)
	assert.ErrorIs(t, err, pnr.ErrUpstreamUnavailable)
	assert.True(t, strings.Contains(err.Error(), "unexpected status 503"))

	assert.Nil(t, f.load(t, sub).CurrentStatus)
}

func TestStatusByPNR(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.subscribe(t, "u1", "1234567890")
	f.fetcher.set("1234567890", "CNF")
	f.fetcher.set("9999999999", "WL 2")

	_, err := f.service.StatusByPNR(context.Background(), "u1", "12345")
	assert.ErrorIs(t, err, pnr.ErrInvalidNumber)

	untracked, err := f.service.StatusByPNR(context.Background(), "u1", "9999999999")
	require.NoError(t, err)
	assert.Nil(t, untracked.Subscription)
	assert.Equal(t, "WL 2", untracked.Snapshot.Status)

	tracked, err := f.service.StatusByPNR(context.Background(), "u1", "1234567890")
	require.NoError(t, err)
	require.NotNil(t, tracked.Subscription)
	assert.Equal(t, sub.ID, tracked.Subscription.ID)
	assert.Equal(t, "CNF", f.load(t, sub).CurrentStatus.Status)
	assert.Empty(t, f.email.messages())
}
