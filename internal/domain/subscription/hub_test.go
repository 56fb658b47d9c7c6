package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/walletbroker/internal/domain/requests"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/id"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

func newWatched(t *testing.T) (*Hub, *requests.WatchAssetQueue) {
	t.Helper()
	hub := NewHub()
	q := requests.NewWatchAssetQueue()
	q.AddPublisher(hub)
	return hub, q
}

func enqueue(t *testing.T, q *requests.WatchAssetQueue) string {
	t.Helper()
	ticket, err := q.Enqueue("https://app.example", types.WatchAssetPayload{})
	require.NoError(t, err)
	return ticket.ID
}

func next(t *testing.T, sub *Subscription) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sub.Next(ctx)
}

func ids(t *testing.T, v any) []string {
	t.Helper()
	items, ok := v.([]types.View)
	require.True(t, ok, "expected a list push, got %T", v)
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.RequestID()
	}
	return out
}

func assertNoPush(t *testing.T, sub *Subscription) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscribeInitialEqualsList(t *testing.T) {
	hub, q := newWatched(t)
	a := enqueue(t, q)
	b := enqueue(t, q)

	sub, initial, err := hub.Subscribe(q, id.NewPortID(), "m1", All)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, ids(t, initial))
	assert.Equal(t, 1, hub.Count())

	// nothing newer than the initial snapshot yet
	assertNoPush(t, sub)
}

func TestSubscribeEmptyCollectionPushesEmptyList(t *testing.T) {
	hub, q := newWatched(t)

	_, initial, err := hub.Subscribe(q, id.NewPortID(), "m1", nil)
	require.NoError(t, err)
	assert.NotNil(t, initial)
	assert.Empty(t, ids(t, initial))
}

func TestPushesFollowMutations(t *testing.T) {
	hub, q := newWatched(t)
	sub, _, err := hub.Subscribe(q, id.NewPortID(), "m1", All)
	require.NoError(t, err)

	a := enqueue(t, q)
	v, err := next(t, sub)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, ids(t, v))

	require.NoError(t, q.Cancel(a))
	v, err = next(t, sub)
	require.NoError(t, err)
	assert.Empty(t, ids(t, v))
}

func TestBurstIsCoalescedToLatest(t *testing.T) {
	hub, q := newWatched(t)
	sub, _, err := hub.Subscribe(q, id.NewPortID(), "m1", All)
	require.NoError(t, err)

	var want []string
	for i := 0; i < 10; i++ {
		want = append(want, enqueue(t, q))
	}

	v, err := next(t, sub)
	require.NoError(t, err)
	assert.Equal(t, want, ids(t, v), "only the latest snapshot survives a burst")
	assertNoPush(t, sub)
}

func TestOlderSnapshotIsNeverDelivered(t *testing.T) {
	hub := NewHub()
	q := requests.NewWatchAssetQueue()
	sub, _, err := hub.Subscribe(q, id.NewPortID(), "m1", All)
	require.NoError(t, err)

	hub.Publish(types.Snapshot{Kind: types.KindWatchAsset, Version: 5, Items: []types.View{types.WatchAssetRequest{ID: "new"}}})
	hub.Publish(types.Snapshot{Kind: types.KindWatchAsset, Version: 4, Items: []types.View{types.WatchAssetRequest{ID: "old"}}})

	v, err := next(t, sub)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(t, v))
	assertNoPush(t, sub)
}

func TestTwoSubscribersReceiveSamePush(t *testing.T) {
	hub, q := newWatched(t)
	s1, _, err := hub.Subscribe(q, id.NewPortID(), "m1", All)
	require.NoError(t, err)
	s2, _, err := hub.Subscribe(q, id.NewPortID(), "m1", All)
	require.NoError(t, err)

	a := enqueue(t, q)

	for _, sub := range []*Subscription{s1, s2} {
		v, err := next(t, sub)
		require.NoError(t, err)
		assert.Equal(t, []string{a}, ids(t, v))
	}
}

func TestUnsubscribeStopsOnlyThatSubscriber(t *testing.T) {
	hub, q := newWatched(t)
	port := id.NewPortID()
	s1, _, err := hub.Subscribe(q, port, "m1", All)
	require.NoError(t, err)
	s2, _, err := hub.Subscribe(q, port, "m2", All)
	require.NoError(t, err)

	assert.True(t, hub.Unsubscribe(port, "m1"))
	assert.False(t, hub.Unsubscribe(port, "m1"))
	assert.Equal(t, 1, hub.Count())

	enqueue(t, q)

	_, err = next(t, s1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = next(t, s2)
	assert.NoError(t, err)
}

func TestDisconnectRemovesAllPortRegistrations(t *testing.T) {
	hub := NewHub()
	watch := requests.NewWatchAssetQueue()
	signing := requests.NewEthSigningQueue()
	watch.AddPublisher(hub)
	signing.AddPublisher(hub)

	gone, stays := id.NewPortID(), id.NewPortID()
	for i, src := range []Source{watch, signing} {
		_, _, err := hub.Subscribe(src, gone, string(rune('a'+i)), All)
		require.NoError(t, err)
	}
	other, _, err := hub.Subscribe(signing, stays, "a", All)
	require.NoError(t, err)
	require.Equal(t, 3, hub.Count())

	assert.Equal(t, 2, hub.Disconnect(gone))
	assert.Equal(t, 0, hub.CountPort(gone))
	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, 0, hub.Disconnect(gone))

	_, err = signing.Enqueue("https://app.example", types.SignPayload{})
	require.NoError(t, err)
	_, err = next(t, other)
	assert.NoError(t, err)
}

func TestDuplicateMessageIDOnPortIsRejected(t *testing.T) {
	hub, q := newWatched(t)
	port := id.NewPortID()

	_, _, err := hub.Subscribe(q, port, "m1", All)
	require.NoError(t, err)
	_, _, err = hub.Subscribe(q, port, "m1", All)
	assert.ErrorIs(t, err, errs.ErrPayloadShape)
	assert.Equal(t, 1, hub.Count())
}

func TestByIDProjectsAndEnds(t *testing.T) {
	hub, q := newWatched(t)
	a := enqueue(t, q)

	sub, initial, err := hub.Subscribe(q, id.NewPortID(), "m1", ByID(a))
	require.NoError(t, err)
	assert.Equal(t, a, initial.(types.View).RequestID())

	b := enqueue(t, q)
	v, err := next(t, sub)
	require.NoError(t, err)
	assert.Equal(t, a, v.(types.View).RequestID())

	require.NoError(t, q.Cancel(a))
	_, err = next(t, sub)
	assert.ErrorIs(t, err, ErrEnded)
	assert.Equal(t, 0, hub.Count())

	require.NoError(t, q.Cancel(b))
}

func TestByIDUnknownRequest(t *testing.T) {
	hub, q := newWatched(t)

	_, _, err := hub.Subscribe(q, id.NewPortID(), "m1", ByID("req_missing"))
	assert.ErrorIs(t, err, errs.ErrRequestNotFound)
	assert.Equal(t, 0, hub.Count())
}

func TestCloseEndsEverything(t *testing.T) {
	metrics := monitoring.NewMetrics()
	hub := NewHub().WithMetrics(metrics)
	q := requests.NewWatchAssetQueue()

	sub, _, err := hub.Subscribe(q, id.NewPortID(), "m1", All)
	require.NoError(t, err)

	hub.Close()
	assert.Equal(t, 0, hub.Count())
	_, err = next(t, sub)
	assert.ErrorIs(t, err, ErrClosed)
	<-sub.Done()

	_, _, err = hub.Subscribe(q, id.NewPortID(), "m2", All)
	assert.ErrorIs(t, err, errs.ErrBrokerClosed)
	assert.Equal(t, int64(0), metrics.Snapshot(0).ActiveSubscriptions)
}
