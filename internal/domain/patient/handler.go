package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/validate"
	"github.com/carebook/carebook/pkg/pagination"
	"github.com/carebook/carebook/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(protected *echo.Group) {
	g := protected.Group("/patients")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Replace)
	g.PATCH("/:id", h.Patch)
	g.DELETE("/:id", h.Delete)
}

type createRequest struct {
	Title          string `json:"title" validate:"omitempty,oneof=Mr Mrs Ms Dr Prof"`
	FirstName      string `json:"first_name" validate:"notblank,max=100"`
	LastName       string `json:"last_name" validate:"notblank,max=100"`
	Relation       string `json:"relation" validate:"required,oneof=self father mother spouse son daughter brother sister other"`
	Gender         string `json:"gender" validate:"required,oneof=male female other"`
	Age            int    `json:"age" validate:"gte=1,lte=150"`
	MedicalHistory string `json:"medical_history" validate:"max=5000"`
}

func (r *createRequest) patch() Patch {
	rel := Relation(r.Relation)
	return Patch{
		Title: &r.Title, FirstName: &r.FirstName, LastName: &r.LastName, Relation: &rel,
		Gender: &r.Gender, Age: &r.Age, MedicalHistory: &r.MedicalHistory,
	}
}

type patchRequest struct {
	Title          *string `json:"title" validate:"omitempty,oneof=Mr Mrs Ms Dr Prof"`
	FirstName      *string `json:"first_name" validate:"omitempty,notblank,max=100"`
	LastName       *string `json:"last_name" validate:"omitempty,notblank,max=100"`
	Relation       *string `json:"relation" validate:"omitempty,oneof=self father mother spouse son daughter brother sister other"`
	Gender         *string `json:"gender" validate:"omitempty,oneof=male female other"`
	Age            *int    `json:"age" validate:"omitempty,gte=1,lte=150"`
	MedicalHistory *string `json:"medical_history" validate:"omitempty,max=5000"`
}

func (r *patchRequest) patch() Patch {
	p := Patch{Title: r.Title, FirstName: r.FirstName, LastName: r.LastName, Gender: r.Gender,
		Age: r.Age, MedicalHistory: r.MedicalHistory}
	if r.Relation != nil {
		rel := Relation(*r.Relation)
		p.Relation = &rel
	}
	return p
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("id", "invalid id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse("Patients retrieved successfully", items, total, pg))
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	var p Patient
	p.apply(req.patch())
	if err := h.svc.Create(c.Request().Context(), actor, &p); err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, "Patient created successfully", p)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Patient retrieved successfully", p)
}

func (h *Handler) Replace(c echo.Context) error {
	var req createRequest
	return h.update(c, &req, req.patch)
}

func (h *Handler) Patch(c echo.Context) error {
	var req patchRequest
	return h.update(c, &req, req.patch)
}

func (h *Handler) update(c echo.Context, req any, patch func() Patch) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := validate.Bind(c, req); err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), actor, id, patch())
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Patient updated successfully", p)
}

func (h *Handler) Delete(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
