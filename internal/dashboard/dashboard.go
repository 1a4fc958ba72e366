// Package dashboard selects what the signed-in user sees.
package dashboard

import (
	"github.com/momentokidspass/mkp/internal/access"
	"github.com/momentokidspass/mkp/internal/user"
)

// Kind is the dashboard variant.
type Kind string

const (
	KindAdmin       Kind = "admin"
	KindTeacher     Kind = "teacher"
	KindRestricted  Kind = "restricted"
	KindInvalidRole Kind = "invalid_role"
)

// Header identifies the user in the page chrome.
type Header struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Action is a shortcut offered in a section.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Section is one block of the dashboard.
type Section struct {
	Key      string   `json:"key"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Actions  []Action `json:"actions,omitempty"`
}

// View is the dashboard for one user.
type View struct {
	Kind        Kind               `json:"kind"`
	Title       string             `json:"title"`
	Subtitle    string             `json:"subtitle,omitempty"`
	AccessLabel string             `json:"accessLabel,omitempty"`
	Message     string             `json:"message,omitempty"`
	TeacherID   string             `json:"teacherId,omitempty"`
	Header      Header             `json:"header"`
	Permissions access.Permissions `json:"permissions"`
	Sections    []Section          `json:"sections"`
}

type sectionDef struct {
	Section
	kind    Kind
	allowed func(access.Permissions) bool
}

type actionDef struct {
	Action
	allowed func(access.Permissions) bool
}

var adminActions = []actionDef{
	{Action{"manage_users", "Gerenciar Usuários"}, func(p access.Permissions) bool { return p.CanManageUsers }},
	{Action{"activities", "Atividades"}, func(p access.Permissions) bool { return p.CanEditAllEvents }},
	{Action{"reports", "Relatórios"}, func(p access.Permissions) bool { return p.CanViewReports }},
	{Action{"settings", "Configurações"}, func(p access.Permissions) bool { return p.CanManageSystem }},
}

var sections = []sectionDef{
	{
		Section: Section{Key: "quick_actions", Title: "Ações Rápidas", Subtitle: "Funcionalidades administrativas principais"},
		kind:    KindAdmin,
		allowed: func(p access.Permissions) bool { return p.CanManageUsers || p.CanManageSystem },
	},
	{
		Section: Section{Key: "recent_activity", Title: "Atividade Recente", Subtitle: "Últimas movimentações no sistema"},
		kind:    KindAdmin,
		allowed: func(p access.Permissions) bool { return p.CanViewAllUsers },
	},
	{
		Section: Section{Key: "today_schedule", Title: "Cronograma de Hoje", Subtitle: "Suas atividades programadas"},
		kind:    KindTeacher,
		allowed: func(p access.Permissions) bool { return p.CanCreateEvents },
	},
	{
		Section: Section{Key: "week_progress", Title: "Progresso da Semana", Subtitle: "Acompanhamento das atividades realizadas"},
		kind:    KindTeacher,
		allowed: func(p access.Permissions) bool { return p.CanEditOwnEvents },
	},
}

// Build returns the dashboard for u. u must be non-nil.
func Build(u *user.User) View {
	perms := access.For(u)
	v := View{
		Header:      Header{Name: u.Name, Role: headerRole(u)},
		Permissions: perms,
		Sections:    []Section{},
	}

	switch {
	case access.IsAdmin(u):
		v.Kind = KindAdmin
		v.Title = "PAINEL ADMINISTRATIVO"
		v.Subtitle = "Bem-vindo ao sistema de gestão da plataforma Momento Kids Pass"
		v.AccessLabel = "ACESSO TOTAL - Administrador"
	case access.IsTeacher(u) && !u.IsTeacherLinked():
		v.Kind = KindRestricted
		v.Title = "Acesso Restrito"
		v.Message = "Seu perfil de professor não está vinculado ao sistema. Entre em contato com a administração para resolver esta situação."
		return v
	case access.IsTeacher(u):
		v.Kind = KindTeacher
		v.Title = "MEU DASHBOARD"
		v.Subtitle = "Acompanhe suas atividades e o progresso dos seus alunos"
		v.TeacherID = access.TeacherID(u)
		v.AccessLabel = "ACESSO RESTRITO - Professor ID: " + v.TeacherID
	default:
		v.Kind = KindInvalidRole
		v.Title = "Tipo de Usuário Inválido"
		v.Message = "Entre em contato com a administração."
		return v
	}

	for _, def := range sections {
		if def.kind != v.Kind || !def.allowed(perms) {
			continue
		}
		s := def.Section
		if s.Key == "quick_actions" {
			s.Actions = actionsFor(perms)
		}
		v.Sections = append(v.Sections, s)
	}
	return v
}

func actionsFor(perms access.Permissions) []Action {
	var out []Action
	for _, a := range adminActions {
		if a.allowed(perms) {
			out = append(out, a.Action)
		}
	}
	return out
}

// headerRole shows the stored tipo_usuario, falling back to the parsed role.
func headerRole(u *user.User) string {
	if u.RawRole != "" {
		return u.RawRole
	}
	return string(u.Role)
}
