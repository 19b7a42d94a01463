package report

import (
	"errors"
	"net/http"
	"time"

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
	role := auth.RequireRole(string(RoleClient), string(RoleFrontDesk),
		string(RoleTesting), string(RoleQA), string(RoleAdmin))

	g := api.Group("/reports", role)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.PatchFields)
	g.PATCH("/:id/status", h.ChangeStatus)
	g.POST("/:id/corrections", h.CreateCorrections)
	g.GET("/:id/corrections", h.ListCorrections)
	g.PATCH("/:id/corrections/:correctionId", h.ResolveCorrection)
	g.POST("/:id/corrections/resolve-field", h.ResolveField)
}

type createRequest struct {
	TemplateID     *uuid.UUID `json:"templateId"`
	SampleName     *string    `json:"sampleName"`
	SampleType     *string    `json:"sampleType"`
	LotBatchNo     *string    `json:"lotBatchNo"`
	CollectionDate *string    `json:"collectionDate"`
	Comments       *string    `json:"comments"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := CreateInput{
		TemplateID: req.TemplateID,
		SampleName: req.SampleName,
		SampleType: req.SampleType,
		LotBatchNo: req.LotBatchNo,
		Comments:   req.Comments,
	}
	if req.CollectionDate != nil && *req.CollectionDate != "" {
		t, err := time.Parse("2006-01-02", *req.CollectionDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "collectionDate must be formatted YYYY-MM-DD")
		}
		in.CollectionDate = &t
	}

	rep, err := h.svc.Create(c.Request().Context(), in, auth.UserIDFromContext(c.Request().Context()), callerRole(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rep)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	rep, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	var status *Status
	if raw := c.QueryParam("status"); raw != "" {
		parsed, err := ParseStatus(raw)
		if err != nil {
			return httpError(err)
		}
		status = &parsed
	}

	items, total, err := h.svc.List(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type patchRequest struct {
	ExpectedVersion *int                   `json:"expectedVersion"`
	Fields          map[string]interface{} `json:"fields"`
}

type patchResponse struct {
	Report  *Report  `json:"report"`
	Applied []string `json:"applied"`
}

func (h *Handler) PatchFields(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	var req patchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ExpectedVersion == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expectedVersion is required")
	}

	rep, applied, err := h.svc.PatchFields(c.Request().Context(), id, *req.ExpectedVersion,
		req.Fields, auth.UserIDFromContext(c.Request().Context()), callerRole(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, patchResponse{Report: rep, Applied: applied})
}

type statusRequest struct {
	Status          string `json:"status"`
	Reason          string `json:"reason"`
	ESignPassword   string `json:"eSignPassword"`
	ExpectedVersion *int   `json:"expectedVersion"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ExpectedVersion == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expectedVersion is required")
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		return httpError(err)
	}

	rep, err := h.svc.ChangeStatus(c.Request().Context(), id, ChangeStatusInput{
		Target:          target,
		Reason:          req.Reason,
		ESignPassword:   req.ESignPassword,
		ExpectedVersion: *req.ExpectedVersion,
	}, auth.UserIDFromContext(c.Request().Context()), callerRole(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

type correctionsRequest struct {
	TargetStatus    string `json:"targetStatus"`
	Reason          string `json:"reason"`
	ExpectedVersion *int   `json:"expectedVersion"`
	Items           []struct {
		FieldKey string `json:"fieldKey"`
		Message  string `json:"message"`
	} `json:"items"`
}

type correctionsResponse struct {
	Report *Report           `json:"report"`
	Items  []*CorrectionItem `json:"items"`
}

func (h *Handler) CreateCorrections(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	var req correctionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ExpectedVersion == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expectedVersion is required")
	}
	target, err := ParseStatus(req.TargetStatus)
	if err != nil {
		return httpError(err)
	}

	in := CreateCorrectionsInput{
		TargetStatus:    target,
		Reason:          req.Reason,
		ExpectedVersion: *req.ExpectedVersion,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, CorrectionInput{FieldKey: item.FieldKey, Message: item.Message})
	}

	rep, items, err := h.svc.CreateCorrections(c.Request().Context(), id, in,
		auth.UserIDFromContext(c.Request().Context()), callerRole(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, correctionsResponse{Report: rep, Items: items})
}

func (h *Handler) ListCorrections(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	onlyOpen := c.QueryParam("status") == "open"

	items, err := h.svc.ListCorrections(c.Request().Context(), id, onlyOpen)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*CorrectionItem{}
	}
	return c.JSON(http.StatusOK, items)
}

type resolveRequest struct {
	Note string `json:"resolutionNote"`
}

func (h *Handler) ResolveCorrection(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	correctionID, err := uuid.Parse(c.Param("correctionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid correction id")
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	item, err := h.svc.ResolveCorrection(c.Request().Context(), id, correctionID,
		req.Note, auth.UserIDFromContext(c.Request().Context()), callerRole(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

type resolveFieldRequest struct {
	FieldKey string `json:"fieldKey"`
	Note     string `json:"resolutionNote"`
}

func (h *Handler) ResolveField(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	var req resolveFieldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	items, err := h.svc.ResolveField(c.Request().Context(), id, req.FieldKey,
		req.Note, auth.UserIDFromContext(c.Request().Context()), callerRole(c))
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*CorrectionItem{}
	}
	return c.JSON(http.StatusOK, items)
}

func callerRole(c echo.Context) Role {
	return Role(auth.RoleFromContext(c.Request().Context()))
}

// httpError maps domain errors onto HTTP statuses. Version conflicts carry
// the server's current version so clients can reload and resubmit.
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
	var authn *apperr.AuthenticationError
	if errors.As(err, &authn) {
		return echo.NewHTTPError(http.StatusUnauthorized, authn.Error())
	}
	var forbidden *apperr.ForbiddenError
	if errors.As(err, &forbidden) {
		return echo.NewHTTPError(http.StatusForbidden, forbidden.Error())
	}
	var notFound *apperr.NotFoundError
	if errors.As(err, &notFound) {
		return echo.NewHTTPError(http.StatusNotFound, notFound.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
