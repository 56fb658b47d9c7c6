package requests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

func polygon(rpcs ...string) types.AddEthereumChainParameter {
	if len(rpcs) == 0 {
		rpcs = []string{"https://polygon-rpc.com"}
	}
	return types.AddEthereumChainParameter{
		ChainID:   "0x89",
		ChainName: "Polygon",
		NativeCurrency: types.NativeCurrency{
			Name: "MATIC", Symbol: "MATIC", Decimals: 18,
		},
		RPCURLs: rpcs,
	}
}

func withChain(p types.AddEthereumChainParameter, chainID string) types.AddEthereumChainParameter {
	p.ChainID = chainID
	return p
}

func approveWith(value any) func(context.Context, types.PendingRequest[types.AddEthereumChainParameter]) (any, error) {
	return func(context.Context, types.PendingRequest[types.AddEthereumChainParameter]) (any, error) {
		return value, nil
	}
}

func waitShort(t *testing.T, ticket *Ticket) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return ticket.Wait(ctx)
}

func TestEnqueueDistinctKeysGrowsQueue(t *testing.T) {
	q := NewNetworkQueue(DefaultNetworkKey)

	chains := []string{"0x1", "0x89", "0xa", "0x2105"}
	for _, c := range chains {
		ticket, err := q.Enqueue("https://app.example", withChain(polygon(), c))
		require.NoError(t, err)
		assert.False(t, ticket.Deduplicated)
	}

	assert.Equal(t, len(chains), q.Len())
	list := q.List()
	for i, c := range chains {
		assert.Equal(t, c, list[i].Payload.ChainID, "entries stay oldest first")
	}
}

func TestEnqueueRepeatedKeyReturnsSameID(t *testing.T) {
	q := NewNetworkQueue(DefaultNetworkKey)

	first, err := q.Enqueue("https://app.example/page", polygon())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		// same chain spelled differently, same origin on another path
		again, err := q.Enqueue("https://APP.example/other", withChain(polygon("https://other-rpc"), "0x089"))
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.True(t, again.Deduplicated)
	}

	assert.Equal(t, 1, q.Len())
}

func TestEnqueueRequiresURL(t *testing.T) {
	q := NewNetworkQueue(DefaultNetworkKey)

	_, err := q.Enqueue("", polygon())
	assert.ErrorIs(t, err, errs.ErrPayloadShape)
	assert.Equal(t, 0, q.Len())
}

func TestDedupedCallersResolveTogether(t *testing.T) {
	q := NewNetworkQueue(DefaultNetworkKey)

	a, err := q.Enqueue("https://app.example", polygon())
	require.NoError(t, err)
	b, err := q.Enqueue("https://app.example", polygon())
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, 1, q.Len())

	_, err = q.Approve(context.Background(), a.ID, approveWith("added"))
	require.NoError(t, err)

	for _, ticket := range []*Ticket{a, b} {
		v, err := waitShort(t, ticket)
		require.NoError(t, err)
		assert.Equal(t, "added", v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestSecondApproveFailsWithNotFound(t *testing.T) {
	q := NewNetworkQueue(DefaultNetworkKey)

	ticket, err := q.Enqueue("https://app.example", polygon())
	require.NoError(t, err)

	_, err = q.Approve(context.Background(), ticket.ID, approveWith(nil))
	require.NoError(t, err)

	_, err = q.Approve(context.Background(), ticket.ID, approveWith(nil))
	assert.ErrorIs(t, err, errs.ErrRequestNotFound)
	assert.True(t, IsNotFound(err))

	_, err = q.Get(ticket.ID)
	assert.ErrorIs(t, err, errs.ErrRequestNotFound)
	assert.Empty(t, q.List())
}

func TestApproveAndCancelAreExclusive(t *testing.T) {
	tests := []struct {
		name  string
		first string
	}{
		{name: "approve then cancel", first: "approve"},
		{name: "cancel then approve", first: "cancel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewNetworkQueue(DefaultNetworkKey)
			ticket, err := q.Enqueue("https://app.example", polygon())
			require.NoError(t, err)

			approve := func() error {
				_, err := q.Approve(context.Background(), ticket.ID, approveWith(true))
				return err
			}
			cancel := func() error { return q.Cancel(ticket.ID) }

			if tt.first == "approve" {
				require.NoError(t, approve())
				assert.ErrorIs(t, cancel(), errs.ErrRequestNotFound)
			} else {
				require.NoError(t, cancel())
				assert.ErrorIs(t, approve(), errs.ErrRequestNotFound)
			}
		})
	}
}

func TestConcurrentDecisionsResolveOnce(t *testing.T) {
	q := NewNetworkQueue(DefaultNetworkKey)
	ticket, err := q.Enqueue("https://app.example", polygon())
	require.NoError(t, err)

	var (
		wins     atomic.Int32
		notFound atomic.Int32
		calls    atomic.Int32
		wg       sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = q.Approve(context.Background(), ticket.ID, func(context.Context, types.PendingRequest[types.AddEthereumChainParameter]) (any, error) {
					calls.Add(1)
					return true, nil
				})
			} else {
				err = q.Cancel(ticket.ID)
			}
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, errs.ErrRequestNotFound):
				notFound.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(31), notFound.Load())
	assert.LessOrEqual(t, calls.Load(), int32(1))

	_, err = waitShort(t, ticket)
	if calls.Load() == 0 {
		assert.ErrorIs(t, err, errs.ErrUserRejected)
	} else {
		assert.NoError(t, err)
	}
}

func TestCancelRejectsWithUserRejection(t *testing.T) {
	q := NewWatchAssetQueue()
	ticket, err := q.Enqueue("https://app.example", types.WatchAssetPayload{})
	require.NoError(t, err)

	require.NoError(t, q.Cancel(ticket.ID))

	_, err = waitShort(t, ticket)
	assert.ErrorIs(t, err, errs.ErrUserRejected)
	assert.NotErrorIs(t, err, errs.ErrCollaborator)
	assert.Equal(t, errs.CodeUserRejected, errs.CodeOf(err))
}

func TestCollaboratorFailureRemovesEntry(t *testing.T) {
	q := NewEthSigningQueue()
	ticket, err := q.Enqueue("https://app.example", types.SignPayload{
		Scope:  types.ScopeEthereum,
		Method: types.MethodPersonalSign,
	})
	require.NoError(t, err)

	signerErr := errors.New("ledger disconnected")
	_, err = q.Approve(context.Background(), ticket.ID, func(context.Context, types.PendingRequest[types.SignPayload]) (any, error) {
		return nil, signerErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrCollaborator)
	assert.ErrorIs(t, err, signerErr)

	_, waitErr := waitShort(t, ticket)
	assert.ErrorIs(t, waitErr, signerErr)
	assert.NotErrorIs(t, waitErr, errs.ErrUserRejected)
	assert.Equal(t, "ledger disconnected", waitErr.Error())

	assert.Equal(t, 0, q.Len(), "failed approvals are not requeued")
	assert.ErrorIs(t, q.Cancel(ticket.ID), errs.ErrRequestNotFound)
}

func TestWaitContextDoesNotResolve(t *testing.T) {
	q := NewSigningQueue()
	ticket, err := q.Enqueue("https://app.example", types.SignPayload{Scope: types.ScopeSubstrate})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ticket.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = q.Get(ticket.ID)
	assert.NoError(t, err, "request stays pending for the approval UI")
}

func TestCloseCancelsEverything(t *testing.T) {
	q := NewNetworkQueue(nil)

	var tickets []*Ticket
	for i := 0; i < 3; i++ {
		ticket, err := q.Enqueue("https://app.example", polygon())
		require.NoError(t, err)
		tickets = append(tickets, ticket)
	}
	require.Equal(t, 3, q.Len(), "nil dedup keeps every request")

	q.Close()
	q.Close()

	for _, ticket := range tickets {
		_, err := waitShort(t, ticket)
		assert.ErrorIs(t, err, errs.ErrUserRejected)
		assert.ErrorIs(t, err, errs.ErrBrokerClosed)
	}

	_, err := q.Enqueue("https://app.example", polygon())
	assert.ErrorIs(t, err, errs.ErrBrokerClosed)
	assert.Equal(t, 0, q.Len())
}

func TestPublisherSeesEveryMutationInOrder(t *testing.T) {
	q := NewNetworkQueue(DefaultNetworkKey)

	var snaps []types.Snapshot
	q.AddPublisher(PublisherFunc(func(s types.Snapshot) {
		snaps = append(snaps, s)
	}))

	a, err := q.Enqueue("https://a.example", polygon())
	require.NoError(t, err)
	_, err = q.Enqueue("https://a.example", polygon()) // deduplicated, no mutation
	require.NoError(t, err)
	b, err := q.Enqueue("https://b.example", polygon())
	require.NoError(t, err)
	require.NoError(t, q.Cancel(a.ID))

	require.Len(t, snaps, 3)
	for i, s := range snaps {
		assert.Equal(t, types.KindNetworkAdd, s.Kind)
		assert.Equal(t, uint64(i+1), s.Version)
	}
	assert.Len(t, snaps[0].Items, 1)
	assert.Len(t, snaps[1].Items, 2)
	require.Len(t, snaps[2].Items, 1)
	assert.Equal(t, b.ID, snaps[2].Items[0].RequestID())

	view, ok := snaps[1].Find(a.ID)
	require.True(t, ok)
	assert.Equal(t, "a.example:137", view.(types.NetworkAddRequest).IDStr)
}

func TestCurrentMatchesList(t *testing.T) {
	q := NewEthSigningQueue()
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(fmt.Sprintf("https://app%d.example", i), types.SignPayload{Scope: types.ScopeEthereum})
		require.NoError(t, err)
	}

	var snap types.Snapshot
	q.Current(func(s types.Snapshot) { snap = s })

	list := q.List()
	require.Len(t, snap.Items, len(list))
	for i := range list {
		assert.Equal(t, list[i].ID, snap.Items[i].RequestID())
	}
	assert.Equal(t, uint64(3), snap.Version)
}

func TestNetworkDedupStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		urlA     string
		urlB     string
		rpcsB    []string
		wantLen  int
	}{
		{"origin_chain same origin", DedupOriginChain, "https://a.example", "https://a.example", []string{"https://x"}, 1},
		{"origin_chain other origin", DedupOriginChain, "https://a.example", "https://b.example", nil, 2},
		{"chain_rpcs other origin", DedupChainRPCs, "https://a.example", "https://b.example", []string{"HTTPS://POLYGON-RPC.COM/"}, 1},
		{"chain_rpcs other rpcs", DedupChainRPCs, "https://a.example", "https://a.example", []string{"https://x"}, 2},
		{"none", DedupNone, "https://a.example", "https://a.example", nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewNetworkQueue(NetworkDedup(tt.strategy))
			_, err := q.Enqueue(tt.urlA, polygon())
			require.NoError(t, err)
			_, err = q.Enqueue(tt.urlB, polygon(tt.rpcsB...))
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, q.Len())
		})
	}
}

func TestChainRPCKeyRespectsPathCase(t *testing.T) {
	q := NewNetworkQueue(NetworkDedup(DedupChainRPCs))

	_, err := q.Enqueue("https://a.example", polygon("https://rpc.example/v1/KeyA"))
	require.NoError(t, err)
	_, err = q.Enqueue("https://b.example", polygon("https://rpc.example/v1/keya"))
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())

	joined, err := q.Enqueue("https://b.example", polygon("HTTPS://RPC.EXAMPLE/v1/KeyA/"))
	require.NoError(t, err)
	assert.True(t, joined.Deduplicated)
	assert.Equal(t, 2, q.Len())
}

func TestDedupKeyReleasedAfterResolution(t *testing.T) {
	q := NewNetworkQueue(DefaultNetworkKey)

	first, err := q.Enqueue("https://app.example", polygon())
	require.NoError(t, err)
	require.NoError(t, q.Cancel(first.ID))

	second, err := q.Enqueue("https://app.example", polygon())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.Deduplicated)
}

func TestApproveOutlivesDecidingCaller(t *testing.T) {
	q := NewEthSigningQueue()
	ticket, err := q.Enqueue("https://app.example", types.SignPayload{
		Scope:  types.ScopeEthereum,
		Method: types.MethodPersonalSign,
	})
	require.NoError(t, err)

	type ctxKey struct{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "ui"))
	cancel()

	_, err = q.Approve(ctx, ticket.ID, func(ctx context.Context, _ types.PendingRequest[types.SignPayload]) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assert.Equal(t, "ui", ctx.Value(ctxKey{}))
		return "0xsig", nil
	})
	require.NoError(t, err)

	value, err := waitShort(t, ticket)
	require.NoError(t, err)
	assert.Equal(t, "0xsig", value)
}

func TestOnResolveReportsWaiters(t *testing.T) {
	type resolution struct {
		id      string
		waiters int
		err     error
	}
	var got []resolution
	q := NewNetworkQueue(DefaultNetworkKey)
	q.OnResolve(func(kind types.RequestKind, requestID string, waiters int, err error) {
		assert.Equal(t, types.KindNetworkAdd, kind)
		got = append(got, resolution{requestID, waiters, err})
	})

	first, err := q.Enqueue("https://app.example", polygon())
	require.NoError(t, err)
	_, err = q.Enqueue("https://app.example", polygon())
	require.NoError(t, err)
	other, err := q.Enqueue("https://app.example", withChain(polygon(), "0xa"))
	require.NoError(t, err)

	_, err = q.Approve(context.Background(), first.ID, approveWith(nil))
	require.NoError(t, err)
	require.NoError(t, q.Cancel(other.ID))

	require.Len(t, got, 2)
	assert.Equal(t, resolution{first.ID, 2, nil}, got[0])
	assert.Equal(t, other.ID, got[1].id)
	assert.Equal(t, 1, got[1].waiters)
	assert.ErrorIs(t, got[1].err, errs.ErrUserRejected)
}
