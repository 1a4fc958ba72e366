// Package sessiontest provides in-memory identity and row-store fakes for
// tests of code built on sessions.
package sessiontest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/momentokidspass/mkp/internal/cpf"
	"github.com/momentokidspass/mkp/internal/identity"
	"github.com/momentokidspass/mkp/internal/session"
	"github.com/momentokidspass/mkp/internal/user"
)

// Seeded national ids. Every one passes the checksum.
const (
	AdminCPF       = "52998224725"
	TeacherCPF     = "11144477735"
	UnlinkedCPF    = "39053344705"
	FirstAccessCPF = "12345678909"
	UnknownRoleCPF = "98765432100"
	MissingCPF     = "87654321007"

	// Password signs in every seeded account.
	Password = "Senha123"

	// TeacherID is the id_professor of the linked teacher.
	TeacherID = "42"
)

type account struct {
	id       uuid.UUID
	password string
}

// Provider is an in-memory identity.Provider keyed by email.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]account

	SignInErr  error
	SignUpErr  error
	SignOutErr error
}

// NewProvider returns an empty Provider.
func NewProvider() *Provider {
	return &Provider{accounts: make(map[string]account)}
}

// AddAccount registers an account for the synthetic email of nationalID.
func (p *Provider) AddAccount(nationalID, password string) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.New()
	p.accounts[cpf.Email(nationalID, cpf.DefaultEmailDomain)] = account{id: id, password: password}
	return id
}

func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (*identity.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SignInErr != nil {
		return nil, p.SignInErr
	}
	acct, ok := p.accounts[email]
	if !ok || acct.password != password {
		return nil, &identity.Error{Code: identity.CodeInvalidCredentials, Status: 400, Message: "Invalid login credentials"}
	}
	return &identity.Token{
		AccessToken: "token-" + acct.id.String(),
		ExpiresAt:   time.Now().Add(time.Hour),
		Identity:    identity.Identity{ID: acct.id, Email: email},
	}, nil
}

func (p *Provider) SignUp(_ context.Context, email, password string, _ map[string]any) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SignUpErr != nil {
		return nil, p.SignUpErr
	}
	if _, ok := p.accounts[email]; ok {
		return nil, &identity.Error{Code: identity.CodeUserAlreadyExists, Status: 422}
	}
	id := uuid.New()
	p.accounts[email] = account{id: id, password: password}
	return &identity.Identity{ID: id, Email: email}, nil
}

func (p *Provider) SignOut(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SignOutErr
}

// Users is an in-memory user.Repository keyed by CPF.
type Users struct {
	mu   sync.Mutex
	rows map[string]*user.User

	LookupErr   error
	CompleteErr error
}

// NewUsers returns an empty Users.
func NewUsers() *Users {
	return &Users{rows: make(map[string]*user.User)}
}

// Add stores u, replacing any row with the same CPF.
func (r *Users) Add(u *user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[u.CPF] = u
}

func (r *Users) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LookupErr != nil {
		return nil, r.LookupErr
	}
	for _, u := range r.rows {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *Users) GetByCPF(_ context.Context, nationalID string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LookupErr != nil {
		return nil, r.LookupErr
	}
	u, ok := r.rows[nationalID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *Users) CompleteFirstAccess(_ context.Context, nationalID string, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CompleteErr != nil {
		return r.CompleteErr
	}
	u, ok := r.rows[nationalID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.ID = accountID
	u.FirstAccess = false
	return nil
}

// World is a Provider and Users seeded with one user per role variant.
type World struct {
	Provider *Provider
	Users    *Users
}

// NewWorld seeds an admin, a linked teacher, an unlinked teacher, a row with
// an unknown role and a row still in first access.
func NewWorld() *World {
	w := &World{Provider: NewProvider(), Users: NewUsers()}
	teacherID := TeacherID

	w.seed(AdminCPF, "Ana", "ADM", nil)
	w.seed(TeacherCPF, "Bruno", "PROFESSOR", &teacherID)
	w.seed(UnlinkedCPF, "Carla", "PROFESSOR", nil)
	w.seed(UnknownRoleCPF, "Davi", "COORDENADOR", nil)

	w.Users.Add(&user.User{
		ID:          uuid.New(),
		CPF:         FirstAccessCPF,
		Name:        "Eva",
		Role:        user.RoleTeacher,
		RawRole:     "PROFESSOR",
		TeacherID:   &teacherID,
		FirstAccess: true,
	})
	return w
}

func (w *World) seed(nationalID, name, rawRole string, teacherID *string) {
	id := w.Provider.AddAccount(nationalID, Password)
	w.Users.Add(&user.User{
		ID:        id,
		CPF:       nationalID,
		Name:      name,
		Role:      user.ParseRole(rawRole),
		RawRole:   rawRole,
		TeacherID: teacherID,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

// NewSession returns an unstarted session over the world.
func (w *World) NewSession() *session.Session {
	return session.New(w.Provider, w.Users, session.WithTimeout(time.Second))
}

// NewRegistry returns a registry over the world, closed when t ends.
func (w *World) NewRegistry(t testing.TB) *session.Registry {
	t.Helper()
	reg := session.NewRegistry(w.NewSession, time.Hour)
	t.Cleanup(reg.Close)
	return reg
}

// SignedIn creates a registry session and signs nationalID in. An empty
// nationalID leaves the session signed out.
func SignedIn(t testing.TB, reg *session.Registry, nationalID string) (string, *session.Session) {
	t.Helper()
	token, s, err := reg.Create()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.State() != session.StateLoading
	}, 2*time.Second, 5*time.Millisecond)

	if nationalID != "" {
		_, err = s.SignIn(context.Background(), nationalID, Password)
		require.NoError(t, err)
	}
	return token, s
}
