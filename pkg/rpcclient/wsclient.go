package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"go.uber.org/zap"
)

// WSClient is a websocket-enabled RPC client that can be used with appropriate
// servers. It multiplexes any number of concurrent calls and subscriptions
// over a single persistent connection. Calls are correlated with responses by
// request ID, notifications are routed to subscriptions by the
// server-assigned subscription ID.
//
// WSClient never reconnects. When the connection is lost, every pending call
// fails with TransportError and every active subscription ends with it, a new
// WSClient is to be created by the caller if needed.
type WSClient struct {
	Client
	ws *websocket.Conn

	// done is closed by the reader when the connection is gone.
	done     chan struct{}
	shutdown chan struct{}
	// requests is only consumed by wsWriter, it's the only goroutine writing
	// to the connection.
	requests  chan *solrpc.Request
	closeOnce sync.Once

	respLock sync.Mutex
	pending  map[uint64]*pendingCall
	connErr  error

	subsLock      sync.RWMutex
	subscriptions map[string]*Subscription
}

// pendingCall is a single-write result slot for a request waiting for
// response.
type pendingCall struct {
	resp chan *solrpc.Response
	// onResponse (if set) is executed by the reader before the response is
	// delivered and before any subsequent message is processed.
	onResponse func(*solrpc.Response)
}

// wsMessage is a combined type for responses and notifications since we can
// get any of them here.
type wsMessage struct {
	JSONRPC string                    `json:"jsonrpc"`
	ID      json.RawMessage           `json:"id,omitempty"`
	Method  string                    `json:"method,omitempty"`
	Params  solrpc.NotificationParams `json:"params,omitempty"`
	Error   *solrpc.Error             `json:"error,omitempty"`
	Result  json.RawMessage           `json:"result,omitempty"`
}

const (
	// Message limit for receiving side.
	wsReadLimit = 10 * 1024 * 1024

	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// Outgoing requests queue size.
	wsRequestQueue = 64
)

// NewWS returns a new WSClient ready to use (with established websocket
// connection). You need to use websocket URL for it like `ws://1.2.3.4:8900`.
func NewWS(ctx context.Context, endpoint string, opts Options) (*WSClient, error) {
	wsc := &WSClient{
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
		requests:      make(chan *solrpc.Request, wsRequestQueue),
		pending:       make(map[uint64]*pendingCall),
		subscriptions: make(map[string]*Subscription),
	}
	err := initClient(ctx, &wsc.Client, endpoint, opts)
	if err != nil {
		return nil, err
	}
	wsc.cli = nil

	dialer := websocket.Dialer{HandshakeTimeout: wsc.opts.DialTimeout}
	ws, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, transportErr(err)
	}
	wsc.ws = ws
	wsc.requestF = wsc.makeWsRequest
	go wsc.wsReader()
	go wsc.wsWriter()
	return wsc, nil
}

// Close closes connection to the remote side rendering this client instance
// unusable. Active subscriptions end without error.
func (c *WSClient) Close() {
	// Closing shutdown channel sends a signal to wsWriter to break out of the
	// loop. In doing so it does ws.Close() closing the network connection
	// which in turn makes wsReader receive an error from ws.ReadJSON() and also
	// break out of the loop closing c.done channel in its shutdown sequence.
	c.closeOnce.Do(func() {
		close(c.shutdown)
	})
	<-c.done
}

// Done returns a channel closed when the connection is gone.
func (c *WSClient) Done() <-chan struct{} {
	return c.done
}

// GetError returns the reason of connection loss (nil if the connection is
// still alive or was closed by Close).
func (c *WSClient) GetError() error {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	return c.connErr
}

func (c *WSClient) isShutdown() bool {
	select {
	case <-c.shutdown:
		return true
	default:
		return false
	}
}

func (c *WSClient) wsReader() {
	c.ws.SetReadLimit(wsReadLimit)
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	})
	var connErr error
readloop:
	for {
		rr := new(wsMessage)
		err := c.ws.SetReadDeadline(time.Now().Add(wsPongLimit))
		if err != nil {
			connErr = err
			break
		}
		err = c.ws.ReadJSON(rr)
		if err != nil {
			// Timeout/connection loss/malformed response.
			connErr = err
			break
		}
		switch {
		case solrpc.IsNull(rr.ID) && rr.Method != "":
			c.notify(rr)
		case !solrpc.IsNull(rr.ID) && (rr.Error != nil || rr.Result != nil):
			id, err := strconv.ParseUint(string(rr.ID), 10, 64)
			if err != nil {
				// Can't be ours, requests are numbered.
				c.log.Debug("discarding response with unexpected ID",
					zap.String("id", string(rr.ID)),
					zap.Error(err))
				continue
			}
			c.deliver(id, &solrpc.Response{
				HeaderAndError: solrpc.HeaderAndError{
					Header: solrpc.Header{ID: rr.ID, JSONRPC: rr.JSONRPC},
					Error:  rr.Error,
				},
				Result: rr.Result,
			})
		default:
			// Malformed response, neither valid request, nor valid response.
			connErr = errors.New("malformed message: neither response nor notification")
			break readloop
		}
	}
	if c.isShutdown() {
		connErr = nil
	} else {
		c.log.Warn("websocket connection lost", zap.String("endpoint", c.endpoint.String()), zap.Error(connErr))
	}

	c.respLock.Lock()
	c.connErr = connErr
	c.pending = make(map[uint64]*pendingCall)
	close(c.done)
	c.respLock.Unlock()

	c.subsLock.Lock()
	subs := c.subscriptions
	c.subscriptions = make(map[string]*Subscription)
	c.subsLock.Unlock()
	for _, sub := range subs {
		if connErr == nil {
			sub.finish(nil)
		} else {
			sub.finish(transportErr(fmt.Errorf("%w: %w", ErrConnLost, connErr)))
		}
	}
}

func (c *WSClient) wsWriter() {
	pingTicker := time.NewTicker(wsPingPeriod)
	defer c.ws.Close()
	defer pingTicker.Stop()
	for {
		select {
		case <-c.shutdown:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteLimit))
			return
		case <-c.done:
			return
		case req := <-c.requests:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteJSON(req); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// deliver resolves the pending call with the given ID, responses for unknown
// (cancelled or best-effort) requests are discarded.
func (c *WSClient) deliver(id uint64, resp *solrpc.Response) {
	c.respLock.Lock()
	call, ok := c.pending[id]
	delete(c.pending, id)
	c.respLock.Unlock()
	if !ok {
		c.log.Debug("discarding response", zap.Uint64("id", id))
		return
	}
	if call.onResponse != nil {
		call.onResponse(resp)
	}
	call.resp <- resp // Buffered and written once.
}

// dropPending removes the pending call and tells whether it was there.
func (c *WSClient) dropPending(id uint64) bool {
	c.respLock.Lock()
	_, ok := c.pending[id]
	delete(c.pending, id)
	c.respLock.Unlock()
	return ok
}

func (c *WSClient) connLost() error {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	if c.connErr != nil {
		return transportErr(fmt.Errorf("%w: %w", ErrConnLost, c.connErr))
	}
	return transportErr(ErrConnLost)
}

func (c *WSClient) makeWsRequest(ctx context.Context, r *solrpc.Request) (*solrpc.Response, error) {
	return c.roundTripWS(ctx, r, nil)
}

// roundTripWS registers a pending call, queues the request and waits for
// the response. If onResponse is set the pending call is kept on
// cancellation, so that the hook still sees the response.
func (c *WSClient) roundTripWS(ctx context.Context, r *solrpc.Request, onResponse func(*solrpc.Response)) (*solrpc.Response, error) {
	var call = &pendingCall{
		resp:       make(chan *solrpc.Response, 1),
		onResponse: onResponse,
	}
	c.respLock.Lock()
	select {
	case <-c.done:
		c.respLock.Unlock()
		return nil, c.connLost()
	default:
	}
	c.pending[r.ID] = call
	c.respLock.Unlock()

	abandon := func() {
		if onResponse == nil {
			c.dropPending(r.ID)
			return
		}
		// The response is still awaited for the hook, but not forever.
		time.AfterFunc(c.opts.RequestTimeout, func() {
			if c.dropPending(r.ID) {
				c.log.Debug("no response for abandoned request",
					zap.String("method", r.Method),
					zap.Uint64("id", r.ID))
			}
		})
	}

	select {
	case <-c.done:
		return nil, c.connLost()
	case <-ctx.Done():
		c.dropPending(r.ID) // Not sent, nothing to clean up.
		return nil, cancelled(ctx)
	case c.requests <- r:
	}
	select {
	case resp := <-call.resp:
		return resp, nil
	case <-c.done:
		select {
		case resp := <-call.resp:
			return resp, nil
		default:
		}
		return nil, c.connLost()
	case <-ctx.Done():
		abandon()
		return nil, cancelled(ctx)
	}
}

// sendBestEffort queues a request whose response is not awaited, it never
// blocks.
func (c *WSClient) sendBestEffort(method string, params []any) {
	r := &solrpc.Request{
		JSONRPC: solrpc.JSONRPCVersion,
		Method:  method,
		Params:  params,
		ID:      c.getNextRequestID(),
	}
	select {
	case <-c.done:
	case c.requests <- r:
	default:
		c.log.Warn("request queue is full, dropping request", zap.String("method", method))
	}
}

func (c *WSClient) notify(msg *wsMessage) {
	id := normalizeSubscriptionID(msg.Params.Subscription)
	c.subsLock.RLock()
	sub, ok := c.subscriptions[id]
	c.subsLock.RUnlock()
	if !ok {
		c.log.Debug("notification for unknown subscription",
			zap.String("event", msg.Method),
			zap.String("subscription", id))
		return
	}
	sub.push(msg.Params.Result)
}

// Subscribe opens a new logical subscription with the given method and
// parameters, unsubMethod is used to close it. Notifications are delivered
// via Subscription.Next in the order the server sends them. The subscription
// is closed (with best-effort unsubscription request) when ctx is done or
// Unsubscribe is called; it's never restarted, a fresh Subscribe call is to
// be used for that.
func (c *WSClient) Subscribe(ctx context.Context, method string, unsubMethod string, params []any) (*Subscription, error) {
	if params == nil {
		params = []any{}
	}
	var (
		sub = newSubscription(c, method, unsubMethod, params)
		r   = &solrpc.Request{
			JSONRPC: solrpc.JSONRPCVersion,
			Method:  method,
			Params:  params,
			ID:      c.getNextRequestID(),
		}
	)
	start := time.Now()
	resp, err := c.roundTripWS(ctx, r, func(resp *solrpc.Response) {
		c.activate(sub, resp)
	})
	if err == nil && resp.Error != nil {
		err = resp.Error
	}
	observeRequest(method, start, err)
	if err != nil {
		// The response could've been processed already, Unsubscribe cleans
		// it up then.
		sub.Unsubscribe()
		return nil, err
	}
	if sub.State() != Active {
		// Either it's a malformed response or the connection is already gone.
		return nil, sub.closeReason(c)
	}
	sub.watch(ctx)
	return sub, nil
}

// activate is executed by the reader, so the subscription is routable
// before any notification for it is processed.
func (c *WSClient) activate(sub *Subscription, resp *solrpc.Response) {
	if resp.Error != nil {
		return
	}
	if solrpc.IsNull(resp.Result) {
		sub.finish(transportErr(ErrNoResult))
		return
	}
	id := normalizeSubscriptionID(resp.Result)
	if !sub.setActive(id, resp.Result) {
		// Subscriber has gone while we were waiting for the response.
		c.sendBestEffort(sub.unsubMethod, []any{resp.Result})
		return
	}
	c.subsLock.Lock()
	c.subscriptions[id] = sub
	c.subsLock.Unlock()
}

func (c *WSClient) unsubscribe(sub *Subscription, id string, rawID json.RawMessage) {
	c.subsLock.Lock()
	if c.subscriptions[id] == sub {
		delete(c.subscriptions, id)
	}
	c.subsLock.Unlock()
	c.sendBestEffort(sub.unsubMethod, []any{rawID})
}

// normalizeSubscriptionID returns a textual form of the subscription ID that
// can be either a number or a string on the wire.
func normalizeSubscriptionID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
