package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/session/sessiontest"
	"github.com/momentokidspass/mkp/internal/user"
)

// --- RequireAuthenticated Tests ---

func TestRequireAuthenticated_NoSession(t *testing.T) {
	// Arrange
	handler := middleware.RequireAuthenticated()(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, w))
}

func TestRequireAuthenticated_SignedOutSession(t *testing.T) {
	// Arrange
	reg := sessiontest.NewWorld().NewRegistry(t)
	token, _ := sessiontest.SignedIn(t, reg, "")

	handler := middleware.Session(reg, testCookie)(middleware.RequireAuthenticated()(okHandler()))
	req := withCookie(httptest.NewRequest(http.MethodGet, "/", nil), token)
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthenticated_SignedIn(t *testing.T) {
	// Arrange
	reg := sessiontest.NewWorld().NewRegistry(t)
	token, _ := sessiontest.SignedIn(t, reg, sessiontest.TeacherCPF)

	handler := middleware.Session(reg, testCookie)(middleware.RequireAuthenticated()(okHandler()))
	req := withCookie(httptest.NewRequest(http.MethodGet, "/", nil), token)
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- RequireRole Tests ---

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		cpf        string
		wantStatus int
	}{
		{"admin allowed", sessiontest.AdminCPF, http.StatusOK},
		{"teacher rejected", sessiontest.TeacherCPF, http.StatusForbidden},
		{"unknown role rejected", sessiontest.UnknownRoleCPF, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			reg := sessiontest.NewWorld().NewRegistry(t)
			token, _ := sessiontest.SignedIn(t, reg, tt.cpf)

			handler := middleware.Session(reg, testCookie)(middleware.RequireRole(user.RoleAdmin)(okHandler()))
			req := withCookie(httptest.NewRequest(http.MethodGet, "/", nil), token)
			w := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(w, req)

			// Assert
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", errorCode(t, w))
			}
		})
	}
}

func TestRequireRole_NoSession(t *testing.T) {
	handler := middleware.RequireRole(user.RoleAdmin, user.RoleTeacher)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
