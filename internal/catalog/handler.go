package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mathshelp/mathshelp25/internal/auth"
	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

// Handler manages catalog endpoints. Reads are public with optional
// identity; writes are role gated, topic updates additionally check
// ownership.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authmw   auth.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authmw: authmw, validate: validator.New()}
}

// MountSubjectRoutes registers /api/subjects.
func (h *Handler) MountSubjectRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.OptionalAuth)
		r.Get("/", h.listSubjects)
		r.Get("/categories/list", h.listCategories)
		r.Get("/{id}", h.showSubject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Use(h.authmw.RequireRole(auth.RoleAdmin, auth.RoleDepartmentHead))
		r.Post("/", h.createSubject)
		r.Put("/{id}", h.updateSubject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Use(h.authmw.RequireRole(auth.RoleAdmin))
		r.Delete("/{id}", h.deleteSubject)
	})
}

// MountYearGroupRoutes registers /api/year-groups.
func (h *Handler) MountYearGroupRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.OptionalAuth)
		r.Get("/", h.listYearGroups)
		r.Get("/subject/{subjectID}", h.listYearGroupsBySubject)
		r.Get("/{id}", h.showYearGroup)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Use(h.authmw.RequireRole(auth.RoleAdmin, auth.RoleDepartmentHead))
		r.Post("/", h.createYearGroup)
		r.Put("/{id}", h.updateYearGroup)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Use(h.authmw.RequireRole(auth.RoleAdmin))
		r.Delete("/{id}", h.deleteYearGroup)
	})
}

// MountTopicRoutes registers /api/topics.
func (h *Handler) MountTopicRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.OptionalAuth)
		r.Get("/", h.listTopics)
		r.Get("/popular", h.popularTopics)
		r.Get("/strands/list", h.listStrands)
		r.Get("/year-group/{yearGroupID}", h.listTopicsByYearGroup)
		r.Get("/{id}", h.showTopic)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Post("/", h.createTopic)
		r.Put("/{id}", h.updateTopic)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Use(h.authmw.RequireRole(auth.RoleAdmin, auth.RoleDepartmentHead))
		r.Delete("/{id}", h.deleteTopic)
	})
}

// ----------------------------------------------------------------------------
// Subjects

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, subjects)
}

func (h *Handler) showSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	subject, err := h.service.GetSubject(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, subject)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, SubjectCategories)
}

type subjectRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"required,max=500"`
	IconType     string `json:"iconType" validate:"required"`
	ColorTheme   string `json:"colorTheme"`
	Category     string `json:"category" validate:"required"`
	DisplayOrder int    `json:"displayOrder" validate:"gte=0"`
}

func (h *Handler) createSubject(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[subjectRequest](h, w, r)
	if !ok {
		return
	}
	principal := auth.PrincipalFromContext(r.Context())
	subject := &Subject{
		Name:         req.Name,
		Description:  req.Description,
		IconType:     req.IconType,
		ColorTheme:   req.ColorTheme,
		Category:     req.Category,
		DisplayOrder: req.DisplayOrder,
		CreatedBy:    principal.ID,
	}
	if err := h.service.CreateSubject(r.Context(), subject); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusCreated, subject, "Subject created successfully")
}

func (h *Handler) updateSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeValid[subjectRequest](h, w, r)
	if !ok {
		return
	}
	existing, err := h.service.GetSubject(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	existing.Name = req.Name
	existing.Description = req.Description
	existing.IconType = req.IconType
	if req.ColorTheme != "" {
		existing.ColorTheme = req.ColorTheme
	}
	existing.Category = req.Category
	existing.DisplayOrder = req.DisplayOrder
	if err := h.service.UpdateSubject(r.Context(), existing); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, existing, "Subject updated successfully")
}

func (h *Handler) deleteSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteSubject(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, nil, "Subject deleted successfully")
}

// ----------------------------------------------------------------------------
// Year groups

func (h *Handler) listYearGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListYearGroups(r.Context(), 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) listYearGroupsBySubject(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := pathID(w, r, "subjectID")
	if !ok {
		return
	}
	groups, err := h.service.ListYearGroups(r.Context(), subjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) showYearGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	yg, err := h.service.GetYearGroup(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, yg)
}

type yearGroupRequest struct {
	Subject      int64  `json:"subject" validate:"required"`
	Name         string `json:"name" validate:"required,max=100"`
	YearLevel    int    `json:"yearLevel" validate:"gte=0,lte=13"`
	AgeRange     string `json:"ageRange" validate:"max=50"`
	Description  string `json:"description" validate:"max=500"`
	DisplayOrder int    `json:"displayOrder" validate:"gte=0"`
}

func (h *Handler) createYearGroup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[yearGroupRequest](h, w, r)
	if !ok {
		return
	}
	principal := auth.PrincipalFromContext(r.Context())
	yg := &YearGroup{
		SubjectID:    req.Subject,
		Name:         req.Name,
		YearLevel:    req.YearLevel,
		AgeRange:     req.AgeRange,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
		CreatedBy:    principal.ID,
	}
	if err := h.service.CreateYearGroup(r.Context(), yg); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusCreated, yg, "Year group created successfully")
}

func (h *Handler) updateYearGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeValid[yearGroupRequest](h, w, r)
	if !ok {
		return
	}
	existing, err := h.service.GetYearGroup(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	existing.Name = req.Name
	existing.YearLevel = req.YearLevel
	existing.AgeRange = req.AgeRange
	existing.Description = req.Description
	existing.DisplayOrder = req.DisplayOrder
	if err := h.service.UpdateYearGroup(r.Context(), existing); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, existing, "Year group updated successfully")
}

func (h *Handler) deleteYearGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteYearGroup(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, nil, "Year group deleted successfully")
}

// ----------------------------------------------------------------------------
// Topics

func (h *Handler) listTopics(w http.ResponseWriter, r *http.Request) {
	filter := TopicFilter{
		Difficulty: r.URL.Query().Get("difficulty"),
		Strand:     r.URL.Query().Get("strand"),
	}
	if raw := r.URL.Query().Get("yearGroup"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid year group id")
			return
		}
		filter.YearGroupID = id
	}
	topics, err := h.service.ListTopics(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, topics)
}

func (h *Handler) listTopicsByYearGroup(w http.ResponseWriter, r *http.Request) {
	yearGroupID, ok := pathID(w, r, "yearGroupID")
	if !ok {
		return
	}
	topics, err := h.service.ListTopics(r.Context(), TopicFilter{YearGroupID: yearGroupID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, topics)
}

func (h *Handler) showTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	topic, err := h.service.GetTopic(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, topic)
}

func (h *Handler) popularTopics(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 50 {
			limit = v
		}
	}
	topics, err := h.service.PopularTopics(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, topics)
}

func (h *Handler) listStrands(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, Strands)
}

type topicRequest struct {
	YearGroup          int64    `json:"yearGroup" validate:"required"`
	Name               string   `json:"name" validate:"required,max=150"`
	Description        string   `json:"description" validate:"required,max=500"`
	Difficulty         string   `json:"difficulty" validate:"required"`
	Strand             string   `json:"strand" validate:"required"`
	LearningObjectives []string `json:"learningObjectives" validate:"omitempty,dive,max=200"`
	EstimatedDuration  int      `json:"estimatedDuration" validate:"gte=0"`
}

func (h *Handler) createTopic(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[topicRequest](h, w, r)
	if !ok {
		return
	}
	principal := auth.PrincipalFromContext(r.Context())
	topic := &Topic{
		YearGroupID:        req.YearGroup,
		Name:               req.Name,
		Description:        req.Description,
		Difficulty:         req.Difficulty,
		Strand:             req.Strand,
		LearningObjectives: req.LearningObjectives,
		EstimatedDuration:  req.EstimatedDuration,
		CreatedBy:          principal.ID,
	}
	if err := h.service.CreateTopic(r.Context(), topic); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusCreated, topic, "Topic created successfully")
}

func (h *Handler) updateTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeValid[topicRequest](h, w, r)
	if !ok {
		return
	}

	// Existence is checked before ownership: a missing topic is 404,
	// never a permission denial. FindTopic skips the view counter.
	existing, err := h.service.FindTopic(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	if !auth.CanModify(principal, existing.CreatedBy, auth.RoleAdmin, auth.RoleDepartmentHead) {
		httpx.Error(w, http.StatusForbidden, auth.CodeInsufficientRole, "Insufficient permissions to update this topic")
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Difficulty = req.Difficulty
	existing.Strand = req.Strand
	existing.LearningObjectives = req.LearningObjectives
	existing.EstimatedDuration = req.EstimatedDuration
	if err := h.service.UpdateTopic(r.Context(), existing); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, existing, "Topic updated successfully")
}

func (h *Handler) deleteTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteTopic(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, nil, "Topic deleted successfully")
}

// ----------------------------------------------------------------------------
// helpers

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decodeValid[T any](h *Handler, w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}
