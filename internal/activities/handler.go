package activities

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mathshelp/mathshelp25/internal/auth"
	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
	"github.com/mathshelp/mathshelp25/internal/shared"
)

// Handler manages activity endpoints. Creation is limited to teaching
// roles; updates and deletes belong to the creator or an elevated role.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	authmw      auth.Middleware
	idempotency *shared.IdempotencyStore
	validate    *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		authmw:      authmw,
		idempotency: idempotency,
		validate:    validator.New(),
	}
}

// MountRoutes registers /api/activities.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.OptionalAuth)
		r.Get("/", h.list)
		r.Get("/types/list", h.listTypes)
		r.Get("/topic/{topicID}", h.listByTopic)
		r.Get("/user/{userID}", h.listByUser)
		r.Get("/{id}", h.show)
		r.Get("/{id}/ratings", h.listRatings)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Use(h.authmw.RequireRole(auth.RoleTeacher, auth.RoleAdmin))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireAuth)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
		r.Post("/{id}/rate", h.rate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filterFromQuery(w, r)
	if !ok {
		return
	}
	h.respondList(w, r, f)
}

func (h *Handler) listByTopic(w http.ResponseWriter, r *http.Request) {
	topicID, ok := pathID(w, r, "topicID")
	if !ok {
		return
	}
	f, ok := h.filterFromQuery(w, r)
	if !ok {
		return
	}
	f.TopicID = topicID
	h.respondList(w, r, f)
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	f, ok := h.filterFromQuery(w, r)
	if !ok {
		return
	}
	f.CreatedBy = userID
	h.respondList(w, r, f)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, f Filter) {
	items, total, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Paginated(w, http.StatusOK, items, shared.NewPagination(f.Page, f.Limit, int(total)))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail := struct {
		*Activity
		MyRating *Rating `json:"myRating,omitempty"`
	}{Activity: a}
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
		if own, err := h.service.UserRating(r.Context(), id, principal.ID); err == nil {
			detail.MyRating = own
		}
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, ActivityTypes)
}

func (h *Handler) listRatings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ratings, err := h.service.Ratings(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ratings)
}

type activityRequest struct {
	Topic           int64      `json:"topic" validate:"required"`
	Title           string     `json:"title" validate:"required,max=150"`
	Description     string     `json:"description" validate:"required,max=1000"`
	ActivityType    string     `json:"activityType" validate:"required"`
	Difficulty      string     `json:"difficulty" validate:"required"`
	DurationMinutes int        `json:"durationMinutes" validate:"gte=0,lte=600"`
	ClassSize       int        `json:"classSize" validate:"gte=0,lte=200"`
	Resources       []Resource `json:"resources" validate:"omitempty,dive"`
	Materials       []string   `json:"materials" validate:"omitempty,dive,max=150"`
	Outcomes        []string   `json:"learningOutcomes" validate:"omitempty,dive,max=300"`
	Tags            []string   `json:"tags" validate:"omitempty,dive,max=50"`
	Status          string     `json:"status"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[activityRequest](h, w, r)
	if !ok {
		return
	}
	principal := auth.PrincipalFromContext(r.Context())

	// The Idempotency-Key header, when present, makes retried creates
	// safe. The claim is released again if the insert fails.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "activities:create")
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Fail(w, http.StatusConflict, "request already processed")
			return
		}
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	a := &Activity{
		TopicID:         req.Topic,
		Title:           req.Title,
		Description:     req.Description,
		ActivityType:    req.ActivityType,
		Difficulty:      req.Difficulty,
		DurationMinutes: req.DurationMinutes,
		ClassSize:       req.ClassSize,
		Resources:       req.Resources,
		Materials:       req.Materials,
		Outcomes:        req.Outcomes,
		Tags:            req.Tags,
		Status:          req.Status,
		CreatedBy:       principal.ID,
	}
	if err := h.service.Create(r.Context(), a); err != nil {
		if idemKey != "" {
			if derr := h.idempotency.Delete(r.Context(), idemKey); derr != nil {
				h.logger.Warn("release idempotency key", "key", idemKey, "error", derr)
			}
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusCreated, a, "Activity created successfully")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeValid[activityRequest](h, w, r)
	if !ok {
		return
	}

	existing, err := h.service.Find(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	if !auth.CanModify(principal, existing.CreatedBy, auth.RoleAdmin, auth.RoleDepartmentHead) {
		httpx.Error(w, http.StatusForbidden, auth.CodeInsufficientRole, "Insufficient permissions to update this activity")
		return
	}

	existing.Title = req.Title
	existing.Description = req.Description
	existing.ActivityType = req.ActivityType
	existing.Difficulty = req.Difficulty
	existing.DurationMinutes = req.DurationMinutes
	existing.ClassSize = req.ClassSize
	existing.Resources = req.Resources
	existing.Materials = req.Materials
	existing.Outcomes = req.Outcomes
	existing.Tags = req.Tags
	if req.Status != "" {
		existing.Status = req.Status
	}
	if err := h.service.Update(r.Context(), existing); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, existing, "Activity updated successfully")
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	existing, err := h.service.Find(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	if !auth.CanModify(principal, existing.CreatedBy, auth.RoleAdmin, auth.RoleDepartmentHead) {
		httpx.Error(w, http.StatusForbidden, auth.CodeInsufficientRole, "Insufficient permissions to delete this activity")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, nil, "Activity deleted successfully")
}

type rateRequest struct {
	Score   int    `json:"score" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=500"`
}

func (h *Handler) rate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeValid[rateRequest](h, w, r)
	if !ok {
		return
	}
	principal := auth.PrincipalFromContext(r.Context())
	a, err := h.service.Rate(r.Context(), id, principal.ID, req.Score, req.Comment)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, a, "Rating recorded")
}

func (h *Handler) filterFromQuery(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	page, limit := shared.PageQuery(r)
	f := Filter{
		ActivityType: q.Get("type"),
		Difficulty:   q.Get("difficulty"),
		Status:       q.Get("status"),
		Search:       q.Get("search"),
		Sort:         q.Get("sort"),
		Page:         page,
		Limit:        limit,
	}
	if raw := q.Get("topic"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid topic id")
			return f, false
		}
		f.TopicID = id
	}
	return f, true
}

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
