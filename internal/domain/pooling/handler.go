package pooling

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/sites/:site/estimate", h.PublishEstimate)
	api.GET("/sites/:site/estimate", h.GetEstimate)
	api.DELETE("/sites/:site/estimate", h.RetractEstimate)
	api.GET("/sites/estimates", h.ListEstimates)
	api.POST("/pooled-estimate", h.PoolAll)
}

func (h *Handler) PublishEstimate(c echo.Context) error {
	var est SiteEstimate
	if err := c.Bind(&est); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	est.Site = c.Param("site")

	if err := h.svc.PublishEstimate(c.Request().Context(), &est); err != nil {
		var ice *InvalidCovarianceError
		if errors.As(err, &ice) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, ice.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, est)
}

func (h *Handler) GetEstimate(c echo.Context) error {
	est, err := h.svc.GetEstimate(c.Request().Context(), c.Param("site"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no estimate published for site")
	}
	return c.JSON(http.StatusOK, est)
}

func (h *Handler) RetractEstimate(c echo.Context) error {
	if err := h.svc.RetractEstimate(c.Request().Context(), c.Param("site")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no estimate published for site")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListEstimates(c echo.Context) error {
	estimates, err := h.svc.ListEstimates(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, estimates)
}

func (h *Handler) PoolAll(c echo.Context) error {
	pooled, err := h.svc.PoolAll(c.Request().Context())
	if err != nil {
		var (
			empty *EmptyPoolError
			ice   *InvalidCovarianceError
		)
		switch {
		case errors.As(err, &empty):
			return echo.NewHTTPError(http.StatusConflict, empty.Error())
		case errors.As(err, &ice):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, ice.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pooled)
}
