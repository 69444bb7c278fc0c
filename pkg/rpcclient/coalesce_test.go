package rpcclient

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func inflightWaiters(co *coalescer) int {
	co.lock.Lock()
	defer co.lock.Unlock()
	var n int
	for _, call := range co.calls {
		n += call.waiters
	}
	return n
}

// blockingServer answers every request with 42 once released, it counts
// requests per method.
type blockingServer struct {
	release chan struct{}
	aborted chan struct{}
	lock    sync.Mutex
	counts  map[string]int
}

func newBlockingServer(t *testing.T) (*blockingServer, string) {
	bs := &blockingServer{
		release: make(chan struct{}),
		aborted: make(chan struct{}, 16),
		counts:  make(map[string]int),
	}
	srv := initTestServer(t, func(ctx context.Context, r *solrpc.Request) (any, *solrpc.Error) {
		bs.lock.Lock()
		bs.counts[r.Method]++
		bs.lock.Unlock()
		select {
		case <-bs.release:
		case <-ctx.Done():
			bs.aborted <- struct{}{}
		}
		return 42, nil
	})
	return bs, srv.URL
}

func (bs *blockingServer) count(method string) int {
	bs.lock.Lock()
	defer bs.lock.Unlock()
	return bs.counts[method]
}

func TestCoalescedReads(t *testing.T) {
	const n = 5

	bs, endpoint := newBlockingServer(t)
	c := newTestClient(t, endpoint, Options{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := c.GetBlockHeight(context.Background(), solrpc.Finalized)
			assert.NoError(t, err)
			assert.Equal(t, uint64(42), h)
		}()
	}
	require.Eventually(t, func() bool {
		return inflightWaiters(c.inflight) == n
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, c.inflight.len())

	close(bs.release)
	wg.Wait()
	require.Equal(t, 1, bs.count("getBlockHeight"))
	require.Equal(t, 0, c.inflight.len())

	// Settled requests are not memoized.
	_, err := c.GetBlockHeight(context.Background(), solrpc.Finalized)
	require.NoError(t, err)
	require.Equal(t, 2, bs.count("getBlockHeight"))
}

func TestCoalescingByParameters(t *testing.T) {
	bs, endpoint := newBlockingServer(t)
	c := newTestClient(t, endpoint, Options{})

	var wg sync.WaitGroup
	for _, cmt := range []solrpc.Commitment{solrpc.Finalized, solrpc.Confirmed, solrpc.Finalized, solrpc.Confirmed} {
		cmt := cmt
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetBlockHeight(context.Background(), cmt)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool {
		return inflightWaiters(c.inflight) == 4
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, c.inflight.len())
	close(bs.release)
	wg.Wait()
	require.Equal(t, 2, bs.count("getBlockHeight"))
}

func TestNoCoalescingForWrites(t *testing.T) {
	bs, endpoint := newBlockingServer(t)
	c := newTestClient(t, endpoint, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var res int
			assert.NoError(t, c.Call(context.Background(), "sendTransaction", []any{"AQID"}, &res))
		}()
	}
	require.Eventually(t, func() bool {
		return bs.count("sendTransaction") == 3
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, c.inflight.len())
	close(bs.release)
	wg.Wait()
}

func TestDisableCoalescing(t *testing.T) {
	bs, endpoint := newBlockingServer(t)
	c := newTestClient(t, endpoint, Options{DisableCoalescing: true})
	require.Nil(t, c.inflight)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetBlockHeight(context.Background(), "")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool {
		return bs.count("getBlockHeight") == 3
	}, time.Second, 5*time.Millisecond)
	close(bs.release)
	wg.Wait()
}

func TestCoalescerWaiterCancel(t *testing.T) {
	var (
		co      = newCoalescer()
		release = make(chan struct{})
		calls   atomic.Int32
		params  = []any{"x"}
		f       = func(ctx context.Context) (json.RawMessage, error) {
			calls.Inc()
			select {
			case <-release:
				return json.RawMessage(`1`), nil
			case <-ctx.Done():
				return nil, cancelled(ctx)
			}
		}
	)

	ctx1, cancel1 := context.WithCancel(context.Background())
	res1 := make(chan error, 1)
	go func() {
		_, err := co.do(ctx1, "getBlockHeight", params, f)
		res1 <- err
	}()
	res2 := make(chan json.RawMessage, 1)
	go func() {
		raw, err := co.do(context.Background(), "getBlockHeight", params, f)
		assert.NoError(t, err)
		res2 <- raw
	}()
	require.Eventually(t, func() bool { return inflightWaiters(co) == 2 }, time.Second, 5*time.Millisecond)

	cancel1()
	require.ErrorIs(t, <-res1, ErrCancelled)
	require.Equal(t, 1, inflightWaiters(co))

	close(release)
	require.Equal(t, json.RawMessage(`1`), <-res2)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 0, co.len())
}

func TestCoalescerLastWaiterAborts(t *testing.T) {
	bs, endpoint := newBlockingServer(t)
	defer close(bs.release)
	c := newTestClient(t, endpoint, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetBlockHeight(ctx, "")
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		return bs.count("getBlockHeight") == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, ErrCancelled)
	require.Equal(t, 0, c.inflight.len())
	select {
	case <-bs.aborted:
	case <-time.After(time.Second):
		t.Fatal("shared request is still running")
	}
}

func TestRequestKey(t *testing.T) {
	k1, err := newRequestKey("getBlockHeight", []any{solrpc.CommitmentConfig{Commitment: solrpc.Finalized}})
	require.NoError(t, err)
	k2, err := newRequestKey("getBlockHeight", []any{map[string]any{"commitment": "finalized"}})
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	k3, err := newRequestKey("getSlot", []any{solrpc.CommitmentConfig{Commitment: solrpc.Finalized}})
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)
}
