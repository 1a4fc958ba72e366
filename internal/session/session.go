// Package session owns the sign-in state of one browser.
//
// A Session consumes the change notifications of its identity.Client on a
// single goroutine. For every change it refetches the usuarios row and
// replaces its Snapshot wholesale; readers never observe a partial update.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentokidspass/mkp/internal/cpf"
	"github.com/momentokidspass/mkp/internal/identity"
	"github.com/momentokidspass/mkp/internal/user"
)

// State is the shell state a front end renders.
type State string

const (
	StateLoading              State = "loading"
	StateUnauthenticated      State = "unauthenticated"
	StateFirstAccessPending   State = "first_access_pending"
	StateAuthenticatedAdmin   State = "authenticated_admin"
	StateAuthenticatedTeacher State = "authenticated_teacher"
	StateInvalidRole          State = "authenticated_invalid_role"
)

// Outcome is the non-error result of a sign-in.
type Outcome string

const (
	OutcomeSignedIn            Outcome = "signed_in"
	OutcomeFirstAccessRequired Outcome = "first_access_required"
)

// Result is returned by a successful SignIn. User is the authenticated user,
// or the usuarios row awaiting first access.
type Result struct {
	Outcome Outcome
	User    *user.User
}

// Snapshot pairs the signed-in identity with its usuarios row. Both are nil
// when signed out. A Snapshot is never modified after it is published.
type Snapshot struct {
	Identity  *identity.Identity
	User      *user.User
	Event     identity.Event
	UpdatedAt time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithEmailDomain sets the domain of the synthetic identity email.
func WithEmailDomain(domain string) Option {
	return func(s *Session) { s.emailDomain = domain }
}

// WithTimeout bounds the row lookups and forced sign-outs done by the session
// itself, outside any caller context.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// Session is the explicitly owned replacement for a process-wide current user.
type Session struct {
	id          string
	client      *identity.Client
	users       user.Repository
	emailDomain string
	timeout     time.Duration
	logger      *slog.Logger

	snap    atomic.Pointer[Snapshot]
	pending atomic.Pointer[user.User]

	appliedMu  sync.Mutex
	appliedSeq uint64
	appliedCh  chan struct{}

	reqMu     sync.Mutex
	reqSeq    uint64
	cancelReq context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
}

// New creates a Session over provider and users. Start must be called before
// the session reflects any identity change.
func New(provider identity.Provider, users user.Repository, opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		client:      identity.NewClient(provider),
		users:       users,
		emailDomain: cpf.DefaultEmailDomain,
		timeout:     10 * time.Second,
		appliedCh:   make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = slog.With("session", s.id)
	return s
}

// ID identifies the session in logs. It is not a credential.
func (s *Session) ID() string {
	return s.id
}

// Start launches the notification consumer.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Stop closes the identity client and waits for the consumer to exit.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.reqMu.Lock()
		if s.cancelReq != nil {
			s.cancelReq()
		}
		s.reqMu.Unlock()

		s.client.Close()
		// Never started: there is no consumer to wait for.
		s.startOnce.Do(func() { close(s.stopped) })
		<-s.stopped
	})
}

func (s *Session) run() {
	defer close(s.stopped)

	for change := range s.client.Changes() {
		s.apply(change)
	}
	s.logger.Debug("session consumer stopped")
}

// apply runs on the consumer goroutine only.
func (s *Session) apply(change identity.Change) {
	next := &Snapshot{Event: change.Event, UpdatedAt: time.Now()}

	if change.Identity != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		u, err := s.users.GetByID(ctx, change.Identity.ID)
		cancel()

		switch {
		case err == nil:
			next.Identity = change.Identity
			next.User = u.WithEmail(change.Identity.Email)
		case errors.Is(err, user.ErrUserNotFound):
			s.logger.Warn("no user row for identity, signing out", "account", change.Identity.ID)
			s.signOutAsync()
		default:
			s.logger.Error("fetching user row failed, signing out", "account", change.Identity.ID, "error", err)
			s.signOutAsync()
		}
	}

	s.snap.Store(next)
	s.markApplied(change.Seq)

	s.logger.Debug("identity change applied",
		"event", change.Event,
		"seq", change.Seq,
		"state", s.State(),
	)
}

// signOutAsync clears the identity without waiting for the resulting change.
// It is the only sign-out the consumer goroutine may issue.
func (s *Session) signOutAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.client.SignOut(ctx); err != nil && !errors.Is(err, identity.ErrClientClosed) {
		s.logger.Warn("remote sign-out failed", "error", err)
	}
}

func (s *Session) markApplied(seq uint64) {
	s.appliedMu.Lock()
	defer s.appliedMu.Unlock()
	if seq > s.appliedSeq {
		s.appliedSeq = seq
	}
	close(s.appliedCh)
	s.appliedCh = make(chan struct{})
}

// waitApplied blocks until the consumer has applied change seq.
func (s *Session) waitApplied(ctx context.Context, seq uint64) error {
	for {
		s.appliedMu.Lock()
		if s.appliedSeq >= seq {
			s.appliedMu.Unlock()
			return nil
		}
		ch := s.appliedCh
		s.appliedMu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopped:
			return ErrClosed
		}
	}
}

// beginRequest cancels any in-flight sign-in and returns a context and
// sequence number for the new one.
func (s *Session) beginRequest(ctx context.Context) (context.Context, uint64, func()) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if s.cancelReq != nil {
		s.cancelReq()
	}
	s.reqSeq++
	seq := s.reqSeq
	ctx, cancel := context.WithCancel(ctx)
	s.cancelReq = cancel

	return ctx, seq, func() {
		cancel()
		s.reqMu.Lock()
		if s.reqSeq == seq {
			s.cancelReq = nil
		}
		s.reqMu.Unlock()
	}
}

func (s *Session) isCurrent(seq uint64) bool {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	return s.reqSeq == seq
}

// dropSuperseded undoes the identity installed by a sign-in that lost to a
// newer request before its row checks ran. An identity installed since then
// is left alone.
func (s *Session) dropSuperseded(ctx context.Context, change identity.Change) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	out, dropped, err := s.client.SignOutIf(ctx, change.Seq)
	if !dropped {
		return
	}
	if err != nil {
		s.logger.Warn("remote sign-out failed", "error", err)
	}
	s.logger.Info("dropped superseded sign-in", "account", change.Identity.ID)
	if err := s.waitApplied(ctx, out.Seq); err != nil {
		s.logger.Warn("waiting for sign-out", "error", err)
	}
}

// SignIn authenticates nationalID and password.
//
// When the identity service rejects the credentials the usuarios row is
// checked for a pending first access, which succeeds with
// OutcomeFirstAccessRequired only if password equals the CPF.
func (s *Session) SignIn(ctx context.Context, nationalID, password string) (Result, error) {
	digits := cpf.Unformat(nationalID)
	if !cpf.Validate(digits) {
		return Result{}, ErrInvalidCPF
	}
	if password == "" {
		return Result{}, ErrPasswordRequired
	}

	ctx, seq, release := s.beginRequest(ctx)
	defer release()

	s.pending.Store(nil)

	current := func() bool { return s.isCurrent(seq) }
	change, err := s.client.SignInIf(ctx, cpf.Email(digits, s.emailDomain), password, current)
	if errors.Is(err, identity.ErrStale) {
		return Result{}, ErrSuperseded
	}
	if !current() {
		if err == nil {
			s.dropSuperseded(ctx, change)
		}
		return Result{}, ErrSuperseded
	}
	if err != nil {
		if errors.Is(err, identity.ErrClientClosed) {
			return Result{}, ErrClosed
		}
		if identity.CodeOf(err) == identity.CodeInvalidCredentials {
			return s.checkFirstAccess(ctx, seq, digits, password)
		}
		return Result{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	row, err := s.users.GetByCPF(ctx, digits)
	if !current() {
		s.dropSuperseded(ctx, change)
		return Result{}, ErrSuperseded
	}
	if err != nil {
		s.forceSignOut(ctx, "user row lookup failed")
		if errors.Is(err, user.ErrUserNotFound) {
			return Result{}, ErrUserNotProvisioned
		}
		return Result{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if row.Role == user.RoleTeacher && !row.IsTeacherLinked() {
		s.forceSignOut(ctx, "teacher not linked")
		return Result{}, ErrTeacherNotLinked
	}

	if err := s.waitApplied(ctx, change.Seq); err != nil {
		if !current() {
			s.dropSuperseded(ctx, change)
			return Result{}, ErrSuperseded
		}
		if errors.Is(err, ErrClosed) {
			return Result{}, ErrClosed
		}
		return Result{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	snap := s.snap.Load()
	if snap == nil || snap.User == nil || snap.Identity == nil || snap.Identity.ID != change.Identity.ID {
		return Result{}, ErrUserNotProvisioned
	}

	s.logger.Info("signed in", "account", snap.Identity.ID, "role", snap.User.Role)
	return Result{Outcome: OutcomeSignedIn, User: snap.User}, nil
}

func (s *Session) checkFirstAccess(ctx context.Context, seq uint64, digits, password string) (Result, error) {
	row, err := s.users.GetByCPF(ctx, digits)
	if !s.isCurrent(seq) {
		return Result{}, ErrSuperseded
	}
	if errors.Is(err, user.ErrUserNotFound) {
		return Result{}, ErrCPFNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if !row.FirstAccess {
		return Result{}, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(digits)) != 1 {
		return Result{}, ErrFirstAccessWrongPassword
	}

	s.pending.Store(row)
	s.logger.Info("first access required", "user", row.ID)
	return Result{Outcome: OutcomeFirstAccessRequired, User: row}, nil
}

// CompleteFirstAccess creates the identity account for the pending row, binds
// the row to it and signs in with newPassword.
//
// The steps are not rolled back: when the row update fails the new account
// stays orphaned and ErrRowUpdate is returned.
func (s *Session) CompleteFirstAccess(ctx context.Context, newPassword string) (Result, error) {
	row := s.pending.Load()
	if row == nil {
		return Result{}, ErrNoPendingFirstAccess
	}
	if err := ValidatePassword(newPassword); err != nil {
		return Result{}, err
	}

	email := cpf.Email(row.CPF, s.emailDomain)
	account, err := s.client.SignUp(ctx, email, newPassword, map[string]any{
		"cpf":  row.CPF,
		"nome": row.Name,
	})
	if err != nil {
		if errors.Is(err, identity.ErrClientClosed) {
			return Result{}, ErrClosed
		}
		if identity.CodeOf(err) == identity.CodeWeakPassword {
			return Result{}, fmt.Errorf("%w: %w", ErrWeakPassword, err)
		}
		return Result{}, fmt.Errorf("%w: %w", ErrAccountCreation, err)
	}

	if err := s.users.CompleteFirstAccess(ctx, row.CPF, account.ID); err != nil {
		s.logger.Error("identity account created but user row not updated",
			"account", account.ID,
			"user", row.ID,
			"error", err,
		)
		return Result{}, fmt.Errorf("%w: %w", ErrRowUpdate, err)
	}

	s.pending.CompareAndSwap(row, nil)
	s.logger.Info("first access completed", "account", account.ID)

	res, err := s.SignIn(ctx, row.CPF, newPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrTeacherNotLinked),
			errors.Is(err, ErrUserNotProvisioned),
			errors.Is(err, ErrSuperseded),
			errors.Is(err, ErrClosed):
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %w", ErrAutoSignIn, err)
	}
	return res, nil
}

// CancelFirstAccess drops a pending first access. It reports whether one was
// pending.
func (s *Session) CancelFirstAccess() bool {
	return s.pending.Swap(nil) != nil
}

// SignOut clears the identity and waits until the session reflects it. A
// failed remote revocation is logged, not returned.
func (s *Session) SignOut(ctx context.Context) error {
	s.reqMu.Lock()
	if s.cancelReq != nil {
		s.cancelReq()
		s.cancelReq = nil
	}
	s.reqSeq++
	s.reqMu.Unlock()

	s.pending.Store(nil)

	change, err := s.client.SignOut(ctx)
	if errors.Is(err, identity.ErrClientClosed) {
		return ErrClosed
	}
	if err != nil {
		s.logger.Warn("remote sign-out failed", "error", err)
	}
	return s.waitApplied(ctx, change.Seq)
}

// forceSignOut signs out on behalf of a failed sign-in and waits for the
// change to be applied. It runs even if ctx is already cancelled.
func (s *Session) forceSignOut(ctx context.Context, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.logger.Warn("forcing sign-out", "reason", reason)
	change, err := s.client.SignOut(ctx)
	if errors.Is(err, identity.ErrClientClosed) {
		return
	}
	if err != nil {
		s.logger.Warn("remote sign-out failed", "error", err)
	}
	if err := s.waitApplied(ctx, change.Seq); err != nil {
		s.logger.Warn("waiting for sign-out", "error", err)
	}
}

// Snapshot returns the last applied snapshot, or nil while loading.
func (s *Session) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Current returns the signed-in user, or nil.
func (s *Session) Current() *user.User {
	if snap := s.snap.Load(); snap != nil {
		return snap.User
	}
	return nil
}

// IsAuthenticated reports whether both an identity and its row are held.
func (s *Session) IsAuthenticated() bool {
	snap := s.snap.Load()
	return snap != nil && snap.Identity != nil && snap.User != nil
}

// PendingFirstAccess returns the row awaiting a new password, or nil.
func (s *Session) PendingFirstAccess() *user.User {
	return s.pending.Load()
}

// State derives the shell state from the snapshot and pending first access.
// A pending first access is reported even before the first snapshot.
func (s *Session) State() State {
	snap := s.snap.Load()
	if snap != nil && snap.Identity != nil && snap.User != nil {
		switch snap.User.Role {
		case user.RoleAdmin:
			return StateAuthenticatedAdmin
		case user.RoleTeacher:
			return StateAuthenticatedTeacher
		default:
			return StateInvalidRole
		}
	}
	if s.pending.Load() != nil {
		return StateFirstAccessPending
	}
	if snap == nil {
		return StateLoading
	}
	return StateUnauthenticated
}
