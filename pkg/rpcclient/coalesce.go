package rpcclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/twmb/murmur3"
)

// coalescedMethods are idempotent reads that can safely share a single
// in-flight request between callers.
var coalescedMethods = map[string]struct{}{
	"getBlockHeight":       {},
	"getAccountInfo":       {},
	"getSignatureStatuses": {},
	"getLatestBlockhash":   {},
}

func coalescable(method string) bool {
	_, ok := coalescedMethods[method]
	return ok
}

// requestKey is a content-derived key of a request, murmur3-128 of the method
// name and canonical JSON of its parameters (map keys are sorted by
// encoding/json, struct fields have fixed order).
type requestKey struct {
	h1, h2 uint64
}

func newRequestKey(method string, params []any) (requestKey, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return requestKey{}, err
	}
	h := murmur3.New128()
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(data)
	h1, h2 := h.Sum128()
	return requestKey{h1: h1, h2: h2}, nil
}

type inflightCall struct {
	done    chan struct{}
	res     json.RawMessage
	err     error
	waiters int
	cancel  context.CancelFunc
}

// coalescer owns the mapping of in-flight requests. Calls are inserted on
// dispatch and removed on settle or when the last waiter leaves.
type coalescer struct {
	lock  sync.Mutex
	calls map[requestKey]*inflightCall
}

func newCoalescer() *coalescer {
	return &coalescer{calls: make(map[requestKey]*inflightCall)}
}

func (co *coalescer) do(ctx context.Context, method string, params []any, f func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	key, err := newRequestKey(method, params)
	if err != nil {
		return f(ctx)
	}

	co.lock.Lock()
	call, ok := co.calls[key]
	if !ok {
		// Shared request must not die with the first caller, it's aborted
		// when every waiter is gone.
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &inflightCall{done: make(chan struct{}), cancel: cancel}
		co.calls[key] = call
		go func() {
			call.res, call.err = f(cctx)
			co.remove(key, call)
			cancel()
			close(call.done)
		}()
	}
	call.waiters++
	co.lock.Unlock()

	select {
	case <-call.done:
		return call.res, call.err
	case <-ctx.Done():
		co.lock.Lock()
		call.waiters--
		if call.waiters == 0 {
			call.cancel()
			if co.calls[key] == call {
				delete(co.calls, key)
			}
		}
		co.lock.Unlock()
		return nil, cancelled(ctx)
	}
}

func (co *coalescer) remove(key requestKey, call *inflightCall) {
	co.lock.Lock()
	if co.calls[key] == call {
		delete(co.calls, key)
	}
	co.lock.Unlock()
}

func (co *coalescer) len() int {
	co.lock.Lock()
	defer co.lock.Unlock()
	return len(co.calls)
}
