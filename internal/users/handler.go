package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mathshelp/mathshelp25/internal/auth"
	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

// Handler manages the authenticated account endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authmw   auth.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		authmw:   authmw,
		validate: validator.New(),
	}
}

// MountAuthRoutes registers the /api/auth account routes.
func (h *Handler) MountAuthRoutes(r chi.Router) {
	r.Use(h.authmw.RequireAuth)
	r.Get("/me", h.me)
	r.Put("/profile", h.updateProfile)
	r.Put("/role", h.updateOwnRole)
	r.Get("/stats", h.stats)
	r.Delete("/account", h.deactivateAccount)
	r.Get("/verify", h.verify)
}

// MountUserRoutes registers the /api/users admin routes.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Use(h.authmw.RequireRole(auth.RoleAdmin))
		r.Put("/{id}/role", h.adminChangeRole)
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	user, err := h.service.Get(r.Context(), principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Name             *string      `json:"name" validate:"omitempty,max=100"`
	MathsSpecialties []string     `json:"mathsSpecialties" validate:"omitempty,dive,max=50"`
	Preferences      *Preferences `json:"preferences"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	user, err := h.service.UpdateProfile(r.Context(), principal.ID, UpdateProfileInput{
		Name:             req.Name,
		MathsSpecialties: req.MathsSpecialties,
		Preferences:      req.Preferences,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, user, "Profile updated successfully")
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) updateOwnRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	user, err := h.service.ChangeRole(r.Context(), principal, principal.ID, auth.Role(req.Role))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, map[string]any{"role": user.Role}, "Role updated successfully")
}

func (h *Handler) adminChangeRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	user, err := h.service.ChangeRole(r.Context(), principal, targetID, auth.Role(req.Role))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, map[string]any{"id": user.ID, "role": user.Role}, "Role updated successfully")
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	stats, err := h.service.StatsFor(r.Context(), principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), principal.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, nil, "Account deactivated successfully")
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	httpx.JSONMessage(w, http.StatusOK, map[string]any{
		"id":       principal.ID,
		"name":     principal.Name,
		"email":    principal.Email,
		"role":     principal.Role,
		"isActive": principal.IsActive,
	}, "Token verified successfully")
}
