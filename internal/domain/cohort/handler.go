package cohort

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinpipe/clinpipe/pkg/pagination"
)

type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/runs", h.StartRun)
	api.GET("/runs/:id", h.GetRun)
	api.GET("/runs/:id/attrition", h.GetAttrition)

	api.GET("/encounters/:id/stays", h.GetStays)
	api.GET("/encounters/:id/episodes", h.GetEpisodes)
	api.GET("/encounters/:id/doses", h.GetDoses)
	api.GET("/encounters/:id/scores", h.GetScores)
}

// StartRun launches a derivation run in the background. The run id is minted
// here, before the goroutine starts, so the 202 response always carries the
// id the caller polls via GetRun and GetAttrition.
func (h *Handler) StartRun(c echo.Context) error {
	runID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	runCh := make(chan *Run, 1)
	go func() {
		defer cancel()
		run, err := h.svc.ExecuteRun(ctx, runID)
		if err != nil {
			h.log.Error().Err(err).Str("run_id", runID.String()).Msg("background derivation run failed")
		}
		runCh <- run
	}()

	select {
	case run := <-runCh:
		// Tiny cohorts finish before the response goes out.
		if run == nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "derivation run failed")
		}
		return c.JSON(http.StatusOK, run)
	case <-time.After(200 * time.Millisecond):
		return c.JSON(http.StatusAccepted, map[string]string{
			"id":     runID.String(),
			"status": "started",
		})
	}
}

func (h *Handler) GetRun(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}
	run, err := h.svc.GetRun(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}

func (h *Handler) GetAttrition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}
	log, err := h.svc.AttritionLog(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "attrition log not found")
	}
	return c.JSON(http.StatusOK, log)
}

func (h *Handler) GetStays(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	stays, err := h.svc.Stays(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stays)
}

func (h *Handler) GetEpisodes(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	episodes, err := h.svc.Episodes(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, episodes)
}

func (h *Handler) GetDoses(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	doses, err := h.svc.Doses(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doses)
}

// GetScores returns the encounter's score windows. Long stays produce one
// window per hour, so the response is paginated.
func (h *Handler) GetScores(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	scores, err := h.svc.Scores(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	p := pagination.FromContext(c)
	total := len(scores)
	lo := p.Offset
	if lo > total {
		lo = total
	}
	hi := lo + p.Limit
	if hi > total {
		hi = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(scores[lo:hi], total, p.Limit, p.Offset))
}
