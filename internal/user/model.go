package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of user types stored in tipo_usuario.
type Role string

const (
	RoleAdmin   Role = "ADM"
	RoleTeacher Role = "PROFESSOR"
	// RoleUnknown covers every value the dashboard does not recognise.
	RoleUnknown Role = "UNKNOWN"
)

// ParseRole maps a raw tipo_usuario value to a Role. It never fails.
func ParseRole(raw string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleTeacher:
		return RoleTeacher
	default:
		return RoleUnknown
	}
}

// DefaultName is shown when a row has no nome_usuario.
const DefaultName = "Usuário"

// User represents a row in the usuarios table joined with the email of the
// identity-service account it belongs to.
type User struct {
	ID          uuid.UUID
	Email       string
	Name        string
	Role        Role
	RawRole     string
	CPF         string
	TeacherID   *string // nil when the teacher record is not linked
	FirstAccess bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsTeacherLinked reports whether the row carries a linked teacher id.
func (u *User) IsTeacherLinked() bool {
	return u.TeacherID != nil && strings.TrimSpace(*u.TeacherID) != ""
}

// WithEmail returns a copy of u carrying the identity email.
func (u *User) WithEmail(email string) *User {
	c := *u
	if u.TeacherID != nil {
		id := *u.TeacherID
		c.TeacherID = &id
	}
	c.Email = email
	return &c
}
