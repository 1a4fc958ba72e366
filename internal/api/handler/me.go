package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/momentokidspass/mkp/internal/access"
	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/api/response"
	"github.com/momentokidspass/mkp/internal/dashboard"
)

type permissionsResponse struct {
	access.Permissions
	IsAdmin          bool   `json:"isAdmin"`
	IsTeacher        bool   `json:"isTeacher"`
	CanAccessAllData bool   `json:"canAccessAllData"`
	TeacherID        string `json:"teacherId,omitempty"`
}

type teacherAccessResponse struct {
	TeacherID string `json:"teacherId"`
	Allowed   bool   `json:"allowed"`
}

// MeHandler serves the signed-in user, their permissions and dashboard.
// Routes must be behind RequireAuthenticated.
type MeHandler struct{}

// NewMeHandler creates a new MeHandler.
func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

// Get handles GET /me.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	u := currentUser(r)
	if u == nil {
		response.Fail(w, response.Unauthenticated, nil, requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Permissions handles GET /me/permissions.
func (h *MeHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	u := currentUser(r)
	if u == nil {
		response.Fail(w, response.Unauthenticated, nil, requestID)
		return
	}

	response.Success(w, http.StatusOK, permissionsResponse{
		Permissions:      access.For(u),
		IsAdmin:          access.IsAdmin(u),
		IsTeacher:        access.IsTeacher(u),
		CanAccessAllData: access.CanAccessAllData(u),
		TeacherID:        access.TeacherID(u),
	}, requestID)
}

// TeacherAccess handles GET /me/teachers/{teacherId}/access.
func (h *MeHandler) TeacherAccess(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	u := currentUser(r)
	if u == nil {
		response.Fail(w, response.Unauthenticated, nil, requestID)
		return
	}

	teacherID := chi.URLParam(r, "teacherId")
	response.Success(w, http.StatusOK, teacherAccessResponse{
		TeacherID: teacherID,
		Allowed:   access.CanAccessTeacherData(u, teacherID),
	}, requestID)
}

// Dashboard handles GET /dashboard.
func (h *MeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	u := currentUser(r)
	if u == nil {
		response.Fail(w, response.Unauthenticated, nil, requestID)
		return
	}

	response.Success(w, http.StatusOK, dashboard.Build(u), requestID)
}
