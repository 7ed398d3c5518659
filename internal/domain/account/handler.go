package account

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/validate"
	"github.com/carebook/carebook/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(protected, admin *echo.Group) {
	protected.GET("/me", h.Me)
	admin.POST("/users", h.Create)
}

type createRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	FirstName   string `json:"first_name" validate:"max=150"`
	LastName    string `json:"last_name" validate:"max=150"`
	PhoneNumber string `json:"phone_number" validate:"max=17"`
	Role        string `json:"role" validate:"omitempty,oneof=admin doctor patient"`
	IsStaff     bool   `json:"is_staff"`
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
	acct, err := h.svc.Create(c.Request().Context(), actor, NewUser{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.PhoneNumber,
		Role:      auth.Role(req.Role),
		Staff:     req.IsStaff,
	})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, "User created successfully", acct)
}

func (h *Handler) Me(c echo.Context) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	acct, err := h.svc.Get(c.Request().Context(), actor.UserID)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Profile retrieved successfully", acct)
}
