package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/askweb/internal/store"
)

// RunLister reads the search run log.
type RunLister interface {
	ListRuns(ctx context.Context, subject string, limit int) ([]store.Run, error)
}

// RunsHandler exposes the search run log. A nil store answers 503.
type RunsHandler struct {
	store RunLister
}

func NewRunsHandler(st RunLister) *RunsHandler { return &RunsHandler{store: st} }

func (h *RunsHandler) Register(g *echo.Group) {
	g.GET("", h.listRuns)
}

// listRuns
//
//	@Summary	Recent searches of the caller
//	@Tags		searches
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		limit	query	int	false	"Maximum runs (default 20, max 100)"
//	@Produce	json
//	@Success	200	{object}	RunsResponse
//	@Failure	503	{object}	HTTPError
//	@Router		/api/searches [get]
func (h *RunsHandler) listRuns(c echo.Context) error {
	if h.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, store.ErrNoStore.Error())
	}
	limit := 0
	if v := strings.TrimSpace(c.QueryParam("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	userID, _ := c.Get("user_id").(string)
	runs, err := h.store.ListRuns(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, RunsResponse{Runs: runs})
}
