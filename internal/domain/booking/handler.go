package booking

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

// RegisterRoutes mounts the appointment endpoints on protected and the hard
// delete on admin. Both groups must already authenticate; admin must also
// restrict to administrators.
func (h *Handler) RegisterRoutes(protected, admin *echo.Group) {
	g := protected.Group("/appointments")
	g.GET("", h.List)
	g.POST("", h.Book)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Replace)
	g.PATCH("/:id", h.Patch)
	g.DELETE("/:id", h.Cancel)
	g.POST("/:id/cancel", h.Cancel)

	admin.DELETE("/appointments/:id", h.Delete)
}

type bookRequest struct {
	PatientID       string   `json:"patient_id" validate:"required,uuid"`
	AvailabilityID  string   `json:"availability_id" validate:"required,uuid"`
	Symptoms        string   `json:"symptoms" validate:"notblank,max=5000"`
	AdditionalNotes string   `json:"additional_notes" validate:"max=5000"`
	AppointmentFee  *float64 `json:"appointment_fee" validate:"omitempty,gte=0,lte=99999999.99"`
}

type replaceRequest struct {
	Symptoms        string  `json:"symptoms" validate:"notblank,max=5000"`
	AdditionalNotes string  `json:"additional_notes" validate:"max=5000"`
	Status          *string `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED COMPLETED NO_SHOW"`
}

func (r *replaceRequest) changes() Changes {
	ch := Changes{Symptoms: &r.Symptoms, Notes: &r.AdditionalNotes}
	if r.Status != nil {
		st := Status(*r.Status)
		ch.Status = &st
	}
	return ch
}

type patchRequest struct {
	Symptoms        *string `json:"symptoms" validate:"omitempty,max=5000"`
	AdditionalNotes *string `json:"additional_notes" validate:"omitempty,max=5000"`
	Status          *string `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED COMPLETED NO_SHOW"`
}

func (r *patchRequest) changes() Changes {
	ch := Changes{Symptoms: r.Symptoms, Notes: r.AdditionalNotes}
	if r.Status != nil {
		st := Status(*r.Status)
		ch.Status = &st
	}
	return ch
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("id", "invalid id")
	}
	return id, nil
}

func queryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperr.Validation(name, "must be a valid UUID")
	}
	return &id, nil
}

func (h *Handler) List(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	f := Filter{Status: Status(c.QueryParam("status"))}
	if f.DoctorID, err = queryUUID(c, "doctor_id"); err != nil {
		return err
	}
	if f.PatientID, err = queryUUID(c, "patient_id"); err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse("Appointments retrieved successfully", items, total, pg))
}

func (h *Handler) Book(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	var req bookRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	a, err := h.svc.Book(c.Request().Context(), actor, BookRequest{
		PatientID: uuid.MustParse(req.PatientID),
		SlotID:    uuid.MustParse(req.AvailabilityID),
		Symptoms:  req.Symptoms,
		Notes:     req.AdditionalNotes,
		Fee:       req.AppointmentFee,
	})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, "Appointment booked successfully", a)
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
	a, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Appointment retrieved successfully", a)
}

func (h *Handler) Replace(c echo.Context) error {
	var req replaceRequest
	return h.update(c, &req, req.changes)
}

func (h *Handler) Patch(c echo.Context) error {
	var req patchRequest
	return h.update(c, &req, req.changes)
}

func (h *Handler) update(c echo.Context, req any, changes func() Changes) error {
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
	a, err := h.svc.Update(c.Request().Context(), actor, id, changes())
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Appointment updated successfully", a)
}

// Cancel serves both DELETE /appointments/:id and POST .../cancel. Neither
// removes the record.
func (h *Handler) Cancel(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Appointment cancelled successfully", a)
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
