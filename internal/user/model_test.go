package user_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentokidspass/mkp/internal/user"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw  string
		want user.Role
	}{
		{"ADM", user.RoleAdmin},
		{"adm", user.RoleAdmin},
		{" PROFESSOR ", user.RoleTeacher},
		{"professor", user.RoleTeacher},
		{"", user.RoleUnknown},
		{"ALUNO", user.RoleUnknown},
		{"UNKNOWN", user.RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, user.ParseRole(tt.raw))
		})
	}
}

func TestIsTeacherLinked(t *testing.T) {
	empty := "  "
	linked := "prof-42"

	assert.False(t, (&user.User{}).IsTeacherLinked())
	assert.False(t, (&user.User{TeacherID: &empty}).IsTeacherLinked())
	assert.True(t, (&user.User{TeacherID: &linked}).IsTeacherLinked())
}

func TestWithEmail_CopiesRow(t *testing.T) {
	teacherID := "prof-42"
	u := &user.User{Name: "Ana", TeacherID: &teacherID}

	c := u.WithEmail("52998224725@mkp.local")

	assert.Equal(t, "52998224725@mkp.local", c.Email)
	assert.Empty(t, u.Email)
	*c.TeacherID = "other"
	assert.Equal(t, "prof-42", *u.TeacherID)
}
