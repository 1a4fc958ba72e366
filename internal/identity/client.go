package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Event names an identity state transition.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
)

// Change is one identity notification. Identity is nil when signed out.
// Seq increases by one for every change a Client publishes.
type Change struct {
	Seq      uint64
	Event    Event
	Identity *Identity
}

var (
	// ErrClientClosed is returned by operations on a closed Client.
	ErrClientClosed = errors.New("identity client closed")
	// ErrStale is returned by SignInIf when the request was no longer current
	// once the provider answered.
	ErrStale = errors.New("identity sign-in no longer current")
)

// Client holds the identity session of one browser and publishes a Change on
// every transition. Publishing never blocks: changes are queued and delivered
// in order by a pump goroutine, so a consumer may call back into the Client
// while handling a change.
type Client struct {
	provider Provider

	mu       sync.Mutex
	token    *Token
	tokenSeq uint64
	seq      uint64
	pending []Change
	closed  bool

	wake    chan struct{}
	done    chan struct{}
	changes chan Change
}

// NewClient creates a Client and queues the INITIAL_SESSION change.
func NewClient(provider Provider) *Client {
	c := &Client{
		provider: provider,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		changes:  make(chan Change),
	}

	c.mu.Lock()
	c.publishLocked(EventInitialSession, nil)
	c.mu.Unlock()

	go c.pump()
	return c
}

// Changes returns the notification channel. It is closed by Close.
func (c *Client) Changes() <-chan Change {
	return c.changes
}

// Current returns the signed-in identity, or nil.
func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return nil
	}
	id := c.token.Identity
	return &id
}

// SignIn authenticates with the provider and, on success, replaces the held
// token and publishes SIGNED_IN.
func (c *Client) SignIn(ctx context.Context, email, password string) (Change, error) {
	return c.SignInIf(ctx, email, password, nil)
}

// SignInIf is SignIn guarded by current, which is evaluated under the client
// lock once the provider has answered. When it reports false the returned
// token is revoked, nothing is published and ErrStale is returned.
func (c *Client) SignInIf(ctx context.Context, email, password string, current func() bool) (Change, error) {
	if c.isClosed() {
		return Change{}, ErrClientClosed
	}

	tok, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return Change{}, err
	}

	c.mu.Lock()
	var discardErr error
	switch {
	case c.closed:
		discardErr = ErrClientClosed
	case current != nil && !current():
		discardErr = ErrStale
	}
	if discardErr != nil {
		c.mu.Unlock()
		c.revoke(ctx, tok)
		return Change{}, discardErr
	}

	c.token = tok
	id := tok.Identity
	change := c.publishLocked(EventSignedIn, &id)
	c.tokenSeq = change.Seq
	c.mu.Unlock()
	return change, nil
}

// SignUp creates an account. The held session is left untouched.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Identity, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	return c.provider.SignUp(ctx, email, password, metadata)
}

// SignOut drops the held token and publishes SIGNED_OUT, then revokes the
// token remotely. The local session is cleared even when revocation fails;
// the remote error is returned alongside the change.
func (c *Client) SignOut(ctx context.Context) (Change, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Change{}, ErrClientClosed
	}
	tok := c.token
	c.token = nil
	change := c.publishLocked(EventSignedOut, nil)
	c.mu.Unlock()

	if tok == nil {
		return change, nil
	}
	return change, c.provider.SignOut(ctx, tok.AccessToken)
}

// SignOutIf signs out like SignOut, but only while the held token is the one
// installed by the SIGNED_IN change seq. It reports whether it signed out.
func (c *Client) SignOutIf(ctx context.Context, seq uint64) (Change, bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Change{}, false, ErrClientClosed
	}
	if c.token == nil || c.tokenSeq != seq {
		c.mu.Unlock()
		return Change{}, false, nil
	}
	tok := c.token
	c.token = nil
	change := c.publishLocked(EventSignedOut, nil)
	c.mu.Unlock()

	return change, true, c.provider.SignOut(ctx, tok.AccessToken)
}

// revoke ends a provider session that was never installed.
func (c *Client) revoke(ctx context.Context, tok *Token) {
	if err := c.provider.SignOut(context.WithoutCancel(ctx), tok.AccessToken); err != nil {
		slog.Warn("revoking discarded identity session failed", "account", tok.Identity.ID, "error", err)
	}
}

// Close stops delivery and closes the Changes channel. Undelivered changes
// are dropped.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// publishLocked must be called with mu held.
func (c *Client) publishLocked(ev Event, id *Identity) Change {
	c.seq++
	change := Change{Seq: c.seq, Event: ev, Identity: id}
	c.pending = append(c.pending, change)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return change
}

func (c *Client) pump() {
	defer close(c.changes)

	for {
		c.mu.Lock()
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()

		for _, change := range batch {
			select {
			case c.changes <- change:
			case <-c.done:
				return
			}
		}

		if len(batch) > 0 {
			continue
		}

		select {
		case <-c.wake:
		case <-c.done:
			return
		}
	}
}
