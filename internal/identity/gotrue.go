package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// GoTrue implements Provider against the Supabase Auth REST API.
type GoTrue struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	verifier *TokenVerifier
}

// GoTrueOption configures a GoTrue provider.
type GoTrueOption func(*GoTrue)

// WithTimeout bounds every request made by the provider.
func WithTimeout(d time.Duration) GoTrueOption {
	return func(g *GoTrue) { g.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) GoTrueOption {
	return func(g *GoTrue) { g.http = c }
}

// WithVerifier makes sign-in verify the returned access token.
func WithVerifier(v *TokenVerifier) GoTrueOption {
	return func(g *GoTrue) { g.verifier = v }
}

// NewGoTrue creates a provider for the project at baseURL (for example
// https://xyz.supabase.co) authenticated with the anon apiKey.
func NewGoTrue(baseURL, apiKey string, opts ...GoTrueOption) *GoTrue {
	g := &GoTrue{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type apiUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         *apiUser `json:"user"`
}

// signUpResponse is either a bare user (email confirmation on) or a session.
type signUpResponse struct {
	apiUser
	User *apiUser `json:"user"`
}

type apiError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

// SignInWithPassword exchanges an email and password for a session token.
func (g *GoTrue) SignInWithPassword(ctx context.Context, email, password string) (*Token, error) {
	body := map[string]string{"email": email, "password": password}

	var resp tokenResponse
	if err := g.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, &Error{Code: CodeUnknown, Message: "sign-in response carries no session"}
	}

	id, err := resp.User.identity()
	if err != nil {
		return nil, err
	}

	if g.verifier != nil {
		if _, err := g.verifier.VerifyFor(resp.AccessToken, id.ID); err != nil {
			if serr := g.SignOut(context.WithoutCancel(ctx), resp.AccessToken); serr != nil {
				slog.Warn("revoking unverified session failed", "account", id.ID, "error", serr)
			}
			return nil, fmt.Errorf("verifying access token: %w", err)
		}
	}

	expiresAt := time.Unix(resp.ExpiresAt, 0)
	if resp.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	return &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiresAt,
		Identity:     *id,
	}, nil
}

// SignUp creates an account. It does not start a session.
func (g *GoTrue) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Identity, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var resp signUpResponse
	if err := g.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, err
	}

	u := resp.User
	if u == nil {
		u = &resp.apiUser
	}
	return u.identity()
}

// SignOut revokes the session behind accessToken.
func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	return g.do(ctx, http.MethodPost, "/auth/v1/logout?scope=local", accessToken, nil, nil)
}

func (u *apiUser) identity() (*Identity, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Message: fmt.Sprintf("malformed account id %q", u.ID)}
	}
	return &Identity{ID: id, Email: u.Email, Metadata: u.UserMetadata}, nil
}

func (g *GoTrue) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var payload io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	endpoint, err := url.JoinPath(g.baseURL, pathOnly(path))
	if err != nil {
		return fmt.Errorf("building url: %w", err)
	}
	if q := queryOnly(path); q != "" {
		endpoint += "?" + q
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", g.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return &Error{Code: CodeUnavailable, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Code: CodeUnavailable, Status: resp.StatusCode, Message: "reading response", Err: err}
	}

	if resp.StatusCode >= 300 {
		return classify(resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Code: CodeUnknown, Status: resp.StatusCode, Message: "decoding response", Err: err}
		}
	}
	return nil
}

// classify maps a GoTrue error body onto a Code. Newer servers send
// error_code; older ones answer a failed password grant with invalid_grant.
func classify(status int, raw []byte) *Error {
	var body apiError
	_ = json.Unmarshal(raw, &body)

	msg := firstNonEmpty(body.Msg, body.ErrorDescription, body.Message, body.Error, http.StatusText(status))
	e := &Error{Code: CodeUnknown, Status: status, Message: msg}

	switch body.ErrorCode {
	case "invalid_credentials":
		e.Code = CodeInvalidCredentials
	case "user_already_exists", "email_exists":
		e.Code = CodeUserAlreadyExists
	case "weak_password":
		e.Code = CodeWeakPassword
	case "over_request_rate_limit", "over_email_send_rate_limit":
		e.Code = CodeRateLimited
	case "":
		switch {
		case body.Error == "invalid_grant":
			e.Code = CodeInvalidCredentials
		case status == http.StatusTooManyRequests:
			e.Code = CodeRateLimited
		case status >= http.StatusInternalServerError:
			e.Code = CodeUnavailable
		}
	default:
		if status >= http.StatusInternalServerError {
			e.Code = CodeUnavailable
		}
	}
	return e
}

func pathOnly(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

func queryOnly(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[i+1:]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
