package handler

import (
	"errors"
	"net/http"

	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/api/response"
	"github.com/momentokidspass/mkp/internal/session"
)

var sessionProblems = []struct {
	err     error
	problem response.Problem
}{
	// ErrAutoSignIn wraps the sign-in error that caused it and must match first.
	{session.ErrAutoSignIn, response.Problem{Status: http.StatusBadGateway, Code: "AUTO_SIGN_IN_FAILED", Message: "Conta criada, mas erro no login. Tente fazer login novamente."}},
	{session.ErrInvalidCPF, response.Problem{Status: http.StatusBadRequest, Code: "INVALID_CPF", Message: "CPF inválido"}},
	{session.ErrPasswordRequired, response.Problem{Status: http.StatusBadRequest, Code: "PASSWORD_REQUIRED", Message: "Digite sua senha"}},
	{session.ErrInvalidCredentials, response.Problem{Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS", Message: "CPF ou senha incorretos"}},
	{session.ErrCPFNotFound, response.Problem{Status: http.StatusNotFound, Code: "CPF_NOT_FOUND", Message: "CPF não encontrado no sistema"}},
	{session.ErrFirstAccessWrongPassword, response.Problem{Status: http.StatusUnauthorized, Code: "FIRST_ACCESS_WRONG_PASSWORD", Message: "No primeiro acesso, use seu CPF como senha"}},
	{session.ErrTeacherNotLinked, response.Problem{Status: http.StatusForbidden, Code: "PROFESSOR_NOT_LINKED", Message: "Professor não vinculado. Entre em contato com a administração."}},
	{session.ErrUserNotProvisioned, response.Problem{Status: http.StatusForbidden, Code: "USER_NOT_PROVISIONED", Message: "Usuário não encontrado no sistema"}},
	{session.ErrWeakPassword, response.Problem{Status: http.StatusBadRequest, Code: "WEAK_PASSWORD", Message: "A senha não atende todos os requisitos"}},
	{session.ErrAccountCreation, response.Problem{Status: http.StatusBadGateway, Code: "ACCOUNT_CREATION_FAILED", Message: "Erro ao criar conta. Tente novamente."}},
	{session.ErrRowUpdate, response.Problem{Status: http.StatusInternalServerError, Code: "ROW_UPDATE_FAILED", Message: "Erro ao finalizar configuração"}},
	{session.ErrConnection, response.Problem{Status: http.StatusServiceUnavailable, Code: "CONNECTION_ERROR", Message: "Erro de conexão. Tente novamente."}},
	{session.ErrNoPendingFirstAccess, response.Problem{Status: http.StatusConflict, Code: "NO_PENDING_FIRST_ACCESS", Message: "Nenhum primeiro acesso pendente. Faça login com seu CPF."}},
	{session.ErrSuperseded, response.Problem{Status: http.StatusConflict, Code: "SUPERSEDED", Message: "Outra tentativa de login está em andamento"}},
	{session.ErrClosed, response.Problem{Status: http.StatusUnauthorized, Code: "SESSION_EXPIRED", Message: "Sessão expirada. Faça login novamente."}},
}

// problemFor maps a session error to its HTTP representation.
func problemFor(err error) response.Problem {
	for _, sp := range sessionProblems {
		if errors.Is(err, sp.err) {
			return sp.problem
		}
	}
	return response.Internal
}

// writeSessionError writes err and logs it when the server is at fault.
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) response.Problem {
	p := problemFor(err)
	logger := middleware.Logger(r.Context())
	if p.Status >= http.StatusInternalServerError {
		logger.Error("session operation failed", "path", r.URL.Path, "code", p.Code, "error", err)
	} else {
		logger.Debug("session operation rejected", "path", r.URL.Path, "code", p.Code, "error", err)
	}
	response.Fail(w, p, nil, middleware.GetRequestID(r.Context()))
	return p
}
