package handler

import (
	"net/http"
	"time"

	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/cpf"
	"github.com/momentokidspass/mkp/internal/user"
)

type userResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	CPF         string  `json:"cpf"`
	TeacherID   *string `json:"teacherId"`
	FirstAccess bool    `json:"firstAccess"`
	CreatedAt   string  `json:"createdAt"`
}

// firstAccessResponse is what the password-creation screen shows. It never
// carries the row id.
type firstAccessResponse struct {
	CPF  string `json:"cpf"`
	Name string `json:"name"`
}

func toUserResponse(u *user.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Role:        string(u.Role),
		CPF:         cpf.Format(u.CPF),
		TeacherID:   u.TeacherID,
		FirstAccess: u.FirstAccess,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toFirstAccessResponse(u *user.User) *firstAccessResponse {
	if u == nil {
		return nil
	}
	return &firstAccessResponse{
		CPF:  cpf.Format(u.CPF),
		Name: u.Name,
	}
}

// currentUser returns the signed-in user of the request session, or nil.
func currentUser(r *http.Request) *user.User {
	if s := middleware.GetSession(r.Context()); s != nil {
		return s.Current()
	}
	return nil
}
