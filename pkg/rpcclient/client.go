package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultDialTimeout    = 4 * time.Second
	defaultRequestTimeout = 4 * time.Second
)

// Client represents the middleman for executing JSON-RPC calls to remote
// ledger nodes. Client is thread-safe and can be used from multiple
// goroutines, concurrent calls are completely independent of each other.
type Client struct {
	cli      *http.Client
	endpoint *url.URL
	ctx      context.Context
	opts     Options
	log      *zap.Logger
	requestF func(context.Context, *solrpc.Request) (*solrpc.Response, error)

	limiter  *rate.Limiter
	inflight *coalescer

	latestReqID *atomic.Uint64
	// getNextRequestID returns an ID to be used for the subsequent request creation.
	// It is defined on Client, so that our testing code can override this method
	// for the sake of more predictable request IDs generation behavior.
	getNextRequestID func() uint64
}

// Options defines options for the RPC client.
// All values are optional. If any duration is not specified,
// a default of 4 seconds will be used.
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	// Limit total number of connections per host. No limit by default.
	MaxConnsPerHost int
	// RequestsPerSecond limits the rate of outgoing requests, zero means no
	// limit. Burst is the number of requests allowed to go at once (1 if not
	// set).
	RequestsPerSecond float64
	Burst             int
	// DisableCoalescing turns off sharing of identical in-flight read
	// requests.
	DisableCoalescing bool
	// Logger is used for debug and error messages, no logging is done if
	// it's nil.
	Logger *zap.Logger
}

// New returns a new Client ready to use.
func New(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	cl := new(Client)
	err := initClient(ctx, cl, endpoint, opts)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

func initClient(ctx context.Context, cl *Client, endpoint string, opts Options) error {
	url, err := url.Parse(endpoint)
	if err != nil {
		return err
	}

	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: opts.DialTimeout,
			}).DialContext,
			MaxConnsPerHost: opts.MaxConnsPerHost,
		},
		Timeout: opts.RequestTimeout,
	}

	cl.ctx = ctx
	cl.cli = httpClient
	cl.endpoint = url
	cl.log = opts.Logger
	cl.latestReqID = atomic.NewUint64(0)
	cl.getNextRequestID = (cl).getRequestID
	cl.opts = opts
	cl.requestF = cl.makeHTTPRequest
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if !opts.DisableCoalescing {
		cl.inflight = newCoalescer()
	}
	return nil
}

func (c *Client) getRequestID() uint64 {
	return c.latestReqID.Inc()
}

// Context returns the client's base context, it's done when the client is
// no longer usable.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Endpoint returns the node URL the client is connected to.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Close closes unused underlying networks connections.
func (c *Client) Close() {
	c.cli.CloseIdleConnections()
}

// Call performs a single JSON-RPC call and decodes its result into v (if
// it's not nil). It returns *solrpc.Error for structured remote errors,
// *TransportError for network/transport failures and an ErrCancelled-wrapped
// error if ctx is done before the result arrives. Identical concurrent calls
// of idempotent read methods may share a single physical request.
func (c *Client) Call(ctx context.Context, method string, params []any, v any) error {
	if params == nil {
		params = []any{}
	}
	var (
		raw json.RawMessage
		err error
	)
	if c.inflight != nil && coalescable(method) {
		raw, err = c.inflight.do(ctx, method, params, func(ctx context.Context) (json.RawMessage, error) {
			return c.roundTrip(ctx, method, params)
		})
	} else {
		raw, err = c.roundTrip(ctx, method, params)
	}
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err = json.Unmarshal(raw, v); err != nil {
		return transportErr(fmt.Errorf("failed to decode %s result: %w", method, err))
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if c.limiter != nil {
		// Wait fails early if ctx deadline can't be met, the caller
		// hasn't given up yet then.
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx)
			}
			return nil, transportErr(fmt.Errorf("%w: %w", ErrRateLimited, err))
		}
	}
	var r = solrpc.Request{
		JSONRPC: solrpc.JSONRPCVersion,
		Method:  method,
		Params:  params,
		ID:      c.getNextRequestID(),
	}

	start := time.Now()
	raw, err := c.requestF(ctx, &r)
	if raw != nil && raw.Error != nil {
		err = raw.Error
	} else if err == nil && (raw == nil || raw.Result == nil) {
		err = transportErr(ErrNoResult)
	}
	observeRequest(method, start, err)
	if err != nil {
		c.log.Debug("RPC request failed",
			zap.String("method", method),
			zap.Uint64("id", r.ID),
			zap.Error(err))
		return nil, err
	}
	return raw.Result, nil
}

func (c *Client) makeHTTPRequest(ctx context.Context, r *solrpc.Request) (*solrpc.Response, error) {
	var (
		buf = new(bytes.Buffer)
		raw = new(solrpc.Response)
	)

	if err := json.NewEncoder(buf).Encode(r); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	resp, err := c.cli.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		return nil, transportErr(err)
	}
	defer resp.Body.Close()

	// The node might send us a proper JSON anyway, so look there first and if
	// it parses, it has more relevant data than HTTP error code.
	err = json.NewDecoder(resp.Body).Decode(raw)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, transportErr(&HTTPError{StatusCode: resp.StatusCode})
		}
		return nil, transportErr(fmt.Errorf("JSON decoding: %w", err))
	}
	// Errors for unparsable requests may come with null ID.
	if raw.Error == nil && string(raw.ID) != strconv.FormatUint(r.ID, 10) {
		return nil, transportErr(fmt.Errorf("response ID mismatch: expected %d, got %s", r.ID, string(raw.ID)))
	}
	return raw, nil
}
