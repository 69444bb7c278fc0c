package rpcclient

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// SubscriptionState is a lifecycle state of a logical subscription.
type SubscriptionState byte

// Subscription states.
const (
	// Opening is the state of a subscription waiting for the server to
	// assign it an ID.
	Opening SubscriptionState = iota
	// Active subscriptions receive notifications.
	Active
	// Closed is the final state of subscriptions unsubscribed by the user or
	// closed along with the client.
	Closed
	// Errored is the final state of subscriptions that have lost their
	// connection.
	Errored
)

// String implements the fmt.Stringer interface.
func (s SubscriptionState) String() string {
	switch s {
	case Opening:
		return "opening"
	case Active:
		return "active"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Subscription is a logical subscription owned by WSClient. Notifications are
// queued without any limit by the connection reader (the only writer of the
// queue) and consumed with Next.
type Subscription struct {
	client      *WSClient
	method      string
	unsubMethod string
	params      []any

	lock      sync.Mutex
	state     SubscriptionState
	id        string
	rawID     json.RawMessage
	queue     []json.RawMessage
	err       error
	wake      chan struct{}
	stopWatch func() bool
}

func newSubscription(c *WSClient, method, unsubMethod string, params []any) *Subscription {
	return &Subscription{
		client:      c,
		method:      method,
		unsubMethod: unsubMethod,
		params:      params,
		wake:        make(chan struct{}, 1),
	}
}

// ID returns the server-assigned subscription ID (empty until it's known).
func (s *Subscription) ID() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.id
}

// Method returns the method used to open the subscription.
func (s *Subscription) Method() string {
	return s.method
}

// State returns the current subscription state.
func (s *Subscription) State() SubscriptionState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Next returns the next notification payload. It blocks until there is one,
// the subscription ends or ctx is done. Queued notifications are returned
// before the end of the sequence is reported: io.EOF for closed
// subscriptions and TransportError for errored ones.
func (s *Subscription) Next(ctx context.Context) (json.RawMessage, error) {
	for {
		s.lock.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.lock.Unlock()
			return item, nil
		}
		switch s.state {
		case Closed:
			s.lock.Unlock()
			return nil, io.EOF
		case Errored:
			err := s.err
			s.lock.Unlock()
			return nil, err
		}
		s.lock.Unlock()

		select {
		case <-s.wake:
		case <-ctx.Done():
			return nil, cancelled(ctx)
		}
	}
}

// Unsubscribe closes the subscription, the server is notified on a
// best-effort basis without waiting for its reply. It's a no-op for
// subscriptions that are already closed.
func (s *Subscription) Unsubscribe() {
	s.lock.Lock()
	if s.state == Closed || s.state == Errored {
		s.lock.Unlock()
		return
	}
	var (
		wasActive = s.state == Active
		id        = s.id
		rawID     = s.rawID
		stop      = s.stopWatch
	)
	s.state = Closed
	s.signal()
	s.lock.Unlock()

	if stop != nil {
		stop()
	}
	if wasActive {
		s.client.unsubscribe(s, id, rawID)
	}
}

// watch closes the subscription when ctx is done.
func (s *Subscription) watch(ctx context.Context) {
	stop := context.AfterFunc(ctx, s.Unsubscribe)
	s.lock.Lock()
	s.stopWatch = stop
	s.lock.Unlock()
}

func (s *Subscription) setActive(id string, rawID json.RawMessage) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != Opening {
		return false
	}
	s.state = Active
	s.id = id
	s.rawID = rawID
	return true
}

func (s *Subscription) push(item json.RawMessage) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != Active {
		return
	}
	s.queue = append(s.queue, item)
	s.signal()
}

// finish moves the subscription into a final state, Closed if err is nil and
// Errored otherwise.
func (s *Subscription) finish(err error) {
	s.lock.Lock()
	if s.state == Closed || s.state == Errored {
		s.lock.Unlock()
		return
	}
	if err == nil {
		s.state = Closed
	} else {
		s.state = Errored
		s.err = err
	}
	stop := s.stopWatch
	s.signal()
	s.lock.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *Subscription) closeReason(c *WSClient) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.err != nil {
		return s.err
	}
	return c.connLost()
}

// signal wakes up the consumer, must be called with lock held.
func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
