package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentokidspass/mkp/internal/identity"
)

type mockProvider struct {
	signInFn  func(ctx context.Context, email, password string) (*identity.Token, error)
	signUpFn  func(ctx context.Context, email, password string, metadata map[string]any) (*identity.Identity, error)
	signOutFn func(ctx context.Context, accessToken string) error

	mu      sync.Mutex
	revoked []string
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Token, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*identity.Identity, error) {
	return m.signUpFn(ctx, email, password, metadata)
}

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	m.revoked = append(m.revoked, accessToken)
	m.mu.Unlock()
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

func okSignIn(id uuid.UUID) func(context.Context, string, string) (*identity.Token, error) {
	return func(_ context.Context, email, _ string) (*identity.Token, error) {
		return &identity.Token{
			AccessToken: "access-" + id.String(),
			Identity:    identity.Identity{ID: id, Email: email},
		}, nil
	}
}

func receive(t *testing.T, c *identity.Client) identity.Change {
	t.Helper()
	select {
	case ch, ok := <-c.Changes():
		require.True(t, ok, "changes channel closed")
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return identity.Change{}
	}
}

func TestClient_InitialSession(t *testing.T) {
	c := identity.NewClient(&mockProvider{})
	defer c.Close()

	ch := receive(t, c)
	assert.Equal(t, identity.EventInitialSession, ch.Event)
	assert.Equal(t, uint64(1), ch.Seq)
	assert.Nil(t, ch.Identity)
	assert.Nil(t, c.Current())
}

func TestClient_SignInAndOut(t *testing.T) {
	id := uuid.New()
	p := &mockProvider{signInFn: okSignIn(id)}
	c := identity.NewClient(p)
	defer c.Close()

	in, err := c.SignIn(context.Background(), "a@mkp.local", "pw")
	require.NoError(t, err)
	assert.Equal(t, identity.EventSignedIn, in.Event)
	require.NotNil(t, c.Current())
	assert.Equal(t, id, c.Current().ID)

	out, err := c.SignOut(context.Background())
	require.NoError(t, err)
	assert.Equal(t, identity.EventSignedOut, out.Event)
	assert.Nil(t, c.Current())
	assert.Equal(t, []string{"access-" + id.String()}, p.revoked)

	// Delivered in publication order.
	got := []identity.Change{receive(t, c), receive(t, c), receive(t, c)}
	assert.Equal(t, identity.EventInitialSession, got[0].Event)
	assert.Equal(t, in, got[1])
	assert.Equal(t, out, got[2])
	assert.Less(t, got[1].Seq, got[2].Seq)
}

func TestClient_SignInFailureDoesNotPublish(t *testing.T) {
	wantErr := &identity.Error{Code: identity.CodeInvalidCredentials}
	p := &mockProvider{signInFn: func(context.Context, string, string) (*identity.Token, error) {
		return nil, wantErr
	}}
	c := identity.NewClient(p)
	defer c.Close()

	_, err := c.SignIn(context.Background(), "a@mkp.local", "bad")
	assert.ErrorIs(t, err, wantErr)

	receive(t, c) // initial session
	select {
	case ch := <-c.Changes():
		t.Fatalf("unexpected change %+v", ch)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_SignInIfStaleRevokesWithoutPublishing(t *testing.T) {
	id := uuid.New()
	p := &mockProvider{signInFn: okSignIn(id)}
	c := identity.NewClient(p)
	defer c.Close()

	_, err := c.SignInIf(context.Background(), "a@mkp.local", "pw", func() bool { return false })
	assert.ErrorIs(t, err, identity.ErrStale)
	assert.Nil(t, c.Current())
	assert.Equal(t, []string{"access-" + id.String()}, p.revoked)

	receive(t, c) // initial session
	select {
	case ch := <-c.Changes():
		t.Fatalf("unexpected change %+v", ch)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_SignOutIfOnlyDropsItsOwnSignIn(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	p := &mockProvider{signInFn: okSignIn(first)}
	c := identity.NewClient(p)
	defer c.Close()

	in1, err := c.SignIn(context.Background(), "a@mkp.local", "pw")
	require.NoError(t, err)

	p.signInFn = okSignIn(second)
	in2, err := c.SignIn(context.Background(), "b@mkp.local", "pw")
	require.NoError(t, err)

	_, dropped, err := c.SignOutIf(context.Background(), in1.Seq)
	require.NoError(t, err)
	assert.False(t, dropped)
	require.NotNil(t, c.Current())
	assert.Equal(t, second, c.Current().ID)

	out, dropped, err := c.SignOutIf(context.Background(), in2.Seq)
	require.NoError(t, err)
	assert.True(t, dropped)
	assert.Equal(t, identity.EventSignedOut, out.Event)
	assert.Nil(t, c.Current())
	assert.Equal(t, []string{"access-" + second.String()}, p.revoked)
}

func TestClient_SignOutClearsLocallyWhenRevokeFails(t *testing.T) {
	id := uuid.New()
	p := &mockProvider{
		signInFn:  okSignIn(id),
		signOutFn: func(context.Context, string) error { return errors.New("network down") },
	}
	c := identity.NewClient(p)
	defer c.Close()

	_, err := c.SignIn(context.Background(), "a@mkp.local", "pw")
	require.NoError(t, err)

	change, err := c.SignOut(context.Background())
	assert.Error(t, err)
	assert.Equal(t, identity.EventSignedOut, change.Event)
	assert.Nil(t, c.Current())
}

func TestClient_SignOutWithoutSessionSkipsRevoke(t *testing.T) {
	p := &mockProvider{}
	c := identity.NewClient(p)
	defer c.Close()

	change, err := c.SignOut(context.Background())
	require.NoError(t, err)
	assert.Equal(t, identity.EventSignedOut, change.Event)
	assert.Empty(t, p.revoked)
}

func TestClient_SignUpDoesNotPublish(t *testing.T) {
	id := uuid.New()
	p := &mockProvider{signUpFn: func(_ context.Context, email, _ string, _ map[string]any) (*identity.Identity, error) {
		return &identity.Identity{ID: id, Email: email}, nil
	}}
	c := identity.NewClient(p)
	defer c.Close()

	got, err := c.SignUp(context.Background(), "a@mkp.local", "Secret123", nil)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Nil(t, c.Current())

	receive(t, c)
	select {
	case ch := <-c.Changes():
		t.Fatalf("unexpected change %+v", ch)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_PublishingDoesNotBlockWithoutConsumer(t *testing.T) {
	id := uuid.New()
	c := identity.NewClient(&mockProvider{signInFn: okSignIn(id)})
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_, _ = c.SignIn(context.Background(), "a@mkp.local", "pw")
			_, _ = c.SignOut(context.Background())
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked")
	}

	var last uint64
	for i := 0; i < 201; i++ {
		ch := receive(t, c)
		assert.Equal(t, last+1, ch.Seq)
		last = ch.Seq
	}
}

func TestClient_Close(t *testing.T) {
	c := identity.NewClient(&mockProvider{})
	c.Close()
	c.Close()

	_, err := c.SignIn(context.Background(), "a@mkp.local", "pw")
	assert.ErrorIs(t, err, identity.ErrClientClosed)
	_, err = c.SignOut(context.Background())
	assert.ErrorIs(t, err, identity.ErrClientClosed)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Changes():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("changes channel not closed")
		}
	}
}
