package dashboard_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentokidspass/mkp/internal/dashboard"
	"github.com/momentokidspass/mkp/internal/user"
)

func strPtr(s string) *string { return &s }

func sectionKeys(v dashboard.View) []string {
	keys := make([]string, len(v.Sections))
	for i, s := range v.Sections {
		keys[i] = s.Key
	}
	return keys
}

func TestBuild_Admin(t *testing.T) {
	v := dashboard.Build(&user.User{ID: uuid.New(), Name: "Ana", Role: user.RoleAdmin, RawRole: "ADM"})

	assert.Equal(t, dashboard.KindAdmin, v.Kind)
	assert.Equal(t, dashboard.Header{Name: "Ana", Role: "ADM"}, v.Header)
	assert.Equal(t, []string{"quick_actions", "recent_activity"}, sectionKeys(v))
	assert.True(t, v.Permissions.CanManageSystem)

	require.Len(t, v.Sections[0].Actions, 4)
	assert.Equal(t, "manage_users", v.Sections[0].Actions[0].Key)
}

func TestBuild_Teacher(t *testing.T) {
	v := dashboard.Build(&user.User{Name: "Bruno", Role: user.RoleTeacher, RawRole: "PROFESSOR", TeacherID: strPtr("42")})

	assert.Equal(t, dashboard.KindTeacher, v.Kind)
	assert.Equal(t, "42", v.TeacherID)
	assert.Contains(t, v.AccessLabel, "42")
	assert.Equal(t, []string{"today_schedule", "week_progress"}, sectionKeys(v))
	assert.False(t, v.Permissions.CanManageUsers)
}

func TestBuild_TeacherWithoutLinkIsRestricted(t *testing.T) {
	for _, id := range []*string{nil, strPtr(""), strPtr("  ")} {
		v := dashboard.Build(&user.User{Name: "Carla", Role: user.RoleTeacher, RawRole: "PROFESSOR", TeacherID: id})

		assert.Equal(t, dashboard.KindRestricted, v.Kind)
		assert.Empty(t, v.Sections)
		assert.NotEmpty(t, v.Message)
	}
}

func TestBuild_UnknownRole(t *testing.T) {
	v := dashboard.Build(&user.User{Name: "Davi", Role: user.RoleUnknown, RawRole: "COORDENADOR"})

	assert.Equal(t, dashboard.KindInvalidRole, v.Kind)
	assert.Equal(t, "COORDENADOR", v.Header.Role)
	assert.Empty(t, v.Sections)
	assert.False(t, v.Permissions.CanCreateEvents)
}
