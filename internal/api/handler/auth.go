package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/momentokidspass/mkp/internal/access"
	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/api/response"
	"github.com/momentokidspass/mkp/internal/api/validation"
	"github.com/momentokidspass/mkp/internal/session"
)

const maxBodyBytes = 1 << 16

// SignInObserver records sign-in outcomes.
type SignInObserver interface {
	ObserveSignIn(outcome string)
}

type loginRequest struct {
	CPF      string `json:"cpf"`
	Password string `json:"password"`
}

type firstAccessRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type sessionResponse struct {
	State       string               `json:"state"`
	User        *userResponse        `json:"user"`
	Permissions *access.Permissions  `json:"permissions,omitempty"`
	FirstAccess *firstAccessResponse `json:"firstAccess,omitempty"`
}

type loginResponse struct {
	Outcome     string               `json:"outcome"`
	State       string               `json:"state"`
	User        *userResponse        `json:"user,omitempty"`
	FirstAccess *firstAccessResponse `json:"firstAccess,omitempty"`
}

// AuthHandler handles the sign-in flow endpoints under /auth.
type AuthHandler struct {
	sessions middleware.SessionStore
	cookie   middleware.CookieConfig
	observer SignInObserver
}

// NewAuthHandler creates a new AuthHandler. observer may be nil.
func NewAuthHandler(sessions middleware.SessionStore, cookie middleware.CookieConfig, observer SignInObserver) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		cookie:   cookie,
		observer: observer,
	}
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	s := middleware.GetSession(r.Context())
	if s == nil {
		response.Success(w, http.StatusOK, sessionResponse{State: string(session.StateUnauthenticated)}, requestID)
		return
	}

	resp := sessionResponse{
		State:       string(s.State()),
		FirstAccess: toFirstAccessResponse(s.PendingFirstAccess()),
	}
	if s.IsAuthenticated() {
		u := s.Current()
		perms := access.For(u)
		resp.User = toUserResponse(u)
		resp.Permissions = &perms
	}

	response.Success(w, http.StatusOK, resp, requestID)
}

// Login handles POST /auth/login. A session and its cookie are created on
// the first attempt from a browser.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, response.InvalidJSON, nil, requestID)
		return
	}

	fieldErrors := validation.ValidateLoginRequest(validation.LoginRequest{
		CPF:      req.CPF,
		Password: req.Password,
	})
	if len(fieldErrors) > 0 {
		h.observe("validation_error")
		response.Fail(w, response.ValidationFailed, fieldErrors, requestID)
		return
	}

	s := middleware.GetSession(r.Context())
	fresh := s == nil
	if fresh {
		token, created, err := h.sessions.Create()
		if err != nil {
			middleware.Logger(r.Context()).Error("failed to create session", "error", err)
			response.Fail(w, response.SessionUnavailable, nil, requestID)
			return
		}
		middleware.SetSessionCookie(w, h.cookie, token)
		s = created
	}

	res, err := s.SignIn(r.Context(), req.CPF, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			middleware.ClearSessionCookie(w, h.cookie)
		}
		p := writeSessionError(w, r, err)
		h.observe(strings.ToLower(p.Code))
		return
	}

	if !fresh && !h.rotate(w, r) {
		return
	}

	h.observe(string(res.Outcome))
	response.Success(w, http.StatusOK, toLoginResponse(s, res), requestID)
}

// CompleteFirstAccess handles POST /auth/first-access.
func (h *AuthHandler) CompleteFirstAccess(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	s := middleware.GetSession(r.Context())
	if s == nil || s.PendingFirstAccess() == nil {
		writeSessionError(w, r, session.ErrNoPendingFirstAccess)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req firstAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, response.InvalidJSON, nil, requestID)
		return
	}

	fieldErrors := validation.ValidateFirstAccessRequest(validation.FirstAccessRequest{
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if len(fieldErrors) > 0 {
		response.Fail(w, response.ValidationFailed, fieldErrors, requestID)
		return
	}

	res, err := s.CompleteFirstAccess(r.Context(), req.Password)
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			middleware.ClearSessionCookie(w, h.cookie)
		}
		p := writeSessionError(w, r, err)
		h.observe("first_access_" + strings.ToLower(p.Code))
		return
	}

	if !h.rotate(w, r) {
		return
	}

	h.observe("first_access_completed")
	response.Success(w, http.StatusOK, toLoginResponse(s, res), requestID)
}

// CancelFirstAccess handles DELETE /auth/first-access.
func (h *AuthHandler) CancelFirstAccess(w http.ResponseWriter, r *http.Request) {
	if s := middleware.GetSession(r.Context()); s != nil {
		s.CancelFirstAccess()
	}
	response.NoContent(w)
}

// Logout handles POST /auth/logout. The session is discarded even when the
// identity service cannot be reached.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if s := middleware.GetSession(r.Context()); s != nil {
		if err := s.SignOut(r.Context()); err != nil && !errors.Is(err, session.ErrClosed) {
			middleware.Logger(r.Context()).Warn("sign-out did not complete", "error", err)
		}
		h.sessions.Remove(middleware.GetSessionToken(r.Context()))
	}

	middleware.ClearSessionCookie(w, h.cookie)
	response.NoContent(w)
}

// rotate moves the request's session under a new token after a successful
// sign-in, so a token handed out before it stops working.
func (h *AuthHandler) rotate(w http.ResponseWriter, r *http.Request) bool {
	token, err := h.sessions.Rotate(middleware.GetSessionToken(r.Context()))
	if err != nil {
		middleware.Logger(r.Context()).Error("failed to rotate session token", "error", err)
		middleware.ClearSessionCookie(w, h.cookie)
		response.Fail(w, response.SessionUnavailable, nil, middleware.GetRequestID(r.Context()))
		return false
	}
	middleware.SetSessionCookie(w, h.cookie, token)
	return true
}

func (h *AuthHandler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveSignIn(outcome)
	}
}

func toLoginResponse(s *session.Session, res session.Result) loginResponse {
	resp := loginResponse{Outcome: string(res.Outcome)}
	if res.Outcome == session.OutcomeFirstAccessRequired {
		resp.State = string(session.StateFirstAccessPending)
		resp.FirstAccess = toFirstAccessResponse(res.User)
		return resp
	}
	resp.State = string(s.State())
	resp.User = toUserResponse(res.User)
	return resp
}
