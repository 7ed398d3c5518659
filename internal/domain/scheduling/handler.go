package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/validate"
	"github.com/carebook/carebook/pkg/civil"
	"github.com/carebook/carebook/pkg/pagination"
	"github.com/carebook/carebook/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public catalogue on public and the management
// endpoints on protected, which must already authenticate.
func (h *Handler) RegisterRoutes(public, protected *echo.Group) {
	public.GET("/doctors", h.ListDoctors)
	public.GET("/doctors/:id", h.GetDoctor)
	public.GET("/doctors/availability", h.ListAvailability)
	public.GET("/doctors/availability/:id", h.GetSlot)

	manage := protected.Group("", auth.RequireRole(auth.RoleDoctor))
	manage.POST("/doctors", h.CreateDoctor)
	manage.PUT("/doctors/:id", h.UpdateDoctor)

	admin := protected.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/doctors/availability", h.CreateSlot)
}

type doctorRequest struct {
	UserID          *uuid.UUID `json:"user_id"`
	FirstName       string     `json:"first_name" validate:"notblank,max=100"`
	LastName        string     `json:"last_name" validate:"notblank,max=100"`
	Email           string     `json:"email" validate:"required,email,max=254"`
	Phone           string     `json:"phone" validate:"max=20"`
	Specialization  string     `json:"specialization" validate:"required,oneof=cardiology dermatology neurology pediatrics psychiatry orthopedics gynecology ophthalmology ent general"`
	Qualification   string     `json:"qualification" validate:"max=200"`
	LicenseNumber   string     `json:"license_number" validate:"notblank,max=50"`
	ExperienceYears int        `json:"experience_years" validate:"gte=0,lte=60"`
	Age             int        `json:"age" validate:"gte=25,lte=80"`
	ConsultationFee *float64   `json:"consultation_fee" validate:"omitempty,gte=0,lte=99999999.99"`
	IsActive        *bool      `json:"is_active"`
}

func (r *doctorRequest) apply(d *Doctor) {
	d.UserID = r.UserID
	d.FirstName = r.FirstName
	d.LastName = r.LastName
	d.Email = r.Email
	d.Phone = r.Phone
	d.Specialization = Specialization(r.Specialization)
	d.Qualification = r.Qualification
	d.LicenseNumber = r.LicenseNumber
	d.ExperienceYears = r.ExperienceYears
	d.Age = r.Age
	if r.ConsultationFee != nil {
		d.ConsultationFee = *r.ConsultationFee
	}
	if r.IsActive != nil {
		d.IsActive = *r.IsActive
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("id", "invalid id")
	}
	return id, nil
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	doctors, total, err := h.svc.ListDoctors(c.Request().Context(), Specialization(c.QueryParam("specialization")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse("Doctors retrieved successfully", doctors, total, pg))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Doctor retrieved successfully", d)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	var req doctorRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	var d Doctor
	req.apply(&d)
	if err := h.svc.CreateDoctor(c.Request().Context(), actor, &d, req.ConsultationFee); err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, "Doctor created successfully", d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req doctorRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	d, err := h.svc.GetDoctorAny(c.Request().Context(), id)
	if err != nil {
		return err
	}
	req.apply(d)
	if err := h.svc.UpdateDoctor(c.Request().Context(), actor, d); err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Doctor updated successfully", d)
}

type slotRequest struct {
	DoctorID  uuid.UUID   `json:"doctor_id" validate:"required"`
	Date      *civil.Date `json:"date" validate:"required"`
	StartTime *civil.Time `json:"start_time" validate:"required"`
	EndTime   *civil.Time `json:"end_time" validate:"required"`
}

func (h *Handler) CreateSlot(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	var req slotRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	sl := Slot{DoctorID: req.DoctorID, Date: *req.Date, StartTime: *req.StartTime, EndTime: *req.EndTime}
	if err := h.svc.CreateSlot(c.Request().Context(), actor, &sl); err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, "Availability slot created successfully", sl)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Availability slot retrieved successfully", sl)
}

// ListAvailability accepts doctor_id, date (a single day) or date_from and
// date_to.
func (h *Handler) ListAvailability(c echo.Context) error {
	var q SlotQuery
	fields := map[string]string{}

	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			fields["doctor_id"] = "must be a valid UUID"
		} else {
			q.DoctorID = &id
		}
	}
	parseDate := func(param string, dst *civil.Date) {
		if v := c.QueryParam(param); v != "" {
			d, err := civil.ParseDate(v)
			if err != nil {
				fields[param] = err.Error()
				return
			}
			*dst = d
		}
	}
	parseDate("date_from", &q.From)
	parseDate("date_to", &q.To)
	if c.QueryParam("date") != "" {
		parseDate("date", &q.From)
		q.To = q.From
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}

	pg := pagination.FromContext(c)
	slots, total, err := h.svc.ListAvailableSlots(c.Request().Context(), q, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse("Available slots retrieved successfully", slots, total, pg))
}
