package template

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labflow/labflow/internal/platform/apperr"
	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/templates", auth.RequireRole("client", "front_desk", "testing", "qa", "admin"))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/templates", auth.RequireRole("admin"))
	write.POST("", h.Create)
	write.PUT("/:id", h.Update)
	write.DELETE("/:id", h.Deactivate)
}

type createRequest struct {
	Name       string       `json:"name"`
	SampleType *string      `json:"sampleType"`
	Rows       []AnalyteRow `json:"rows"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	t, err := h.svc.Create(c.Request().Context(), CreateInput{
		Name:       req.Name,
		SampleType: req.SampleType,
		Rows:       req.Rows,
	}, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"

	items, total, err := h.svc.List(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type updateRequest struct {
	Name            *string      `json:"name"`
	SampleType      *string      `json:"sampleType"`
	Rows            []AnalyteRow `json:"rows"`
	Active          *bool        `json:"active"`
	ExpectedVersion *int         `json:"expectedVersion"`
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ExpectedVersion == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expectedVersion is required")
	}

	t, err := h.svc.Update(c.Request().Context(), id, UpdateInput{
		Name:            req.Name,
		SampleType:      req.SampleType,
		Rows:            req.Rows,
		Active:          req.Active,
		ExpectedVersion: *req.ExpectedVersion,
	}, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}
	var req struct {
		ExpectedVersion *int `json:"expectedVersion"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ExpectedVersion == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expectedVersion is required")
	}

	t, err := h.svc.Deactivate(c.Request().Context(), id, *req.ExpectedVersion,
		auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func httpError(err error) error {
	var conflict *apperr.ConflictError
	if errors.As(err, &conflict) {
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"message":         conflict.Error(),
			"expectedVersion": conflict.ExpectedVersion,
			"currentVersion":  conflict.CurrentVersion,
		})
	}
	var validation *apperr.ValidationError
	if errors.As(err, &validation) {
		return echo.NewHTTPError(http.StatusBadRequest, validation.Error())
	}
	var notFound *apperr.NotFoundError
	if errors.As(err, &notFound) {
		return echo.NewHTTPError(http.StatusNotFound, notFound.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
