package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentokidspass/mkp/internal/session"
)

func TestProblemFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid cpf", session.ErrInvalidCPF, http.StatusBadRequest, "INVALID_CPF"},
		{"wrapped connection", fmt.Errorf("%w: %w", session.ErrConnection, errors.New("dial")), http.StatusServiceUnavailable, "CONNECTION_ERROR"},
		{"weak password", fmt.Errorf("%w: digit", session.ErrWeakPassword), http.StatusBadRequest, "WEAK_PASSWORD"},
		{
			"auto sign-in wins over its cause",
			fmt.Errorf("%w: %w", session.ErrAutoSignIn, session.ErrInvalidCredentials),
			http.StatusBadGateway, "AUTO_SIGN_IN_FAILED",
		},
		{"row update", session.ErrRowUpdate, http.StatusInternalServerError, "ROW_UPDATE_FAILED"},
		{"closed", session.ErrClosed, http.StatusUnauthorized, "SESSION_EXPIRED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := problemFor(tt.err)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantCode, p.Code)
			assert.NotEmpty(t, p.Message)
		})
	}
}
