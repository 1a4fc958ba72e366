package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentokidspass/mkp/internal/api/handler"
	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/session"
	"github.com/momentokidspass/mkp/internal/session/sessiontest"
)

var testCookie = middleware.CookieConfig{Name: "mkp_session", MaxAge: 30 * time.Minute}

// --- Mock SignInObserver ---

type mockObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockObserver) ObserveSignIn(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockObserver) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}

// --- Harness ---

type harness struct {
	world    *sessiontest.World
	reg      *session.Registry
	observer *mockObserver
	auth     *handler.AuthHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	world := sessiontest.NewWorld()
	reg := world.NewRegistry(t)
	obs := &mockObserver{}
	return &harness{
		world:    world,
		reg:      reg,
		observer: obs,
		auth:     handler.NewAuthHandler(reg, testCookie, obs),
	}
}

// serve runs hf behind the session middleware, as the router does.
func (h *harness) serve(hf http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	middleware.Session(h.reg, testCookie)(hf).ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withCookie(req *http.Request, token string) *http.Request {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: token})
	}
	return req
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie.Name && c.MaxAge > 0 {
			return c.Value
		}
	}
	t.Fatalf("no session cookie set")
	return ""
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err)
	return env
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := parseEnvelope(t, w)["data"].(map[string]interface{})
	require.True(t, ok, "response should carry data: %s", w.Body.String())
	return data
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	apiErr, ok := parseEnvelope(t, w)["error"].(map[string]interface{})
	require.True(t, ok, "response should carry an error: %s", w.Body.String())
	return apiErr
}
