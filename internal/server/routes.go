package server

import (
	"net/http"
	"strconv"
	"time"

	coreactor "github.com/berfenger/switch2mqtt/internal/core/actor"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/core/switchtile"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type TileResponse struct {
	Title    string                        `json:"title"`
	SubTitle string                        `json:"subTitle"`
	Series   []switchtile.NormalizedSeries `json:"series"`
}

type ActionRequest struct {
	Label *string `json:"label"`
	Args  *bool   `json:"args"`
}

type SeriesValueRequest struct {
	Value *string `json:"value"`
}

type SeriesChange struct {
	Label    string           `json:"label"`
	Selected switchtile.State `json:"selected"`
	New      bool             `json:"new,omitempty"`
}

type SeriesValueResponse struct {
	Changes []SeriesChange `json:"changes"`
}

type VersionResponse struct {
	Version  string    `json:"version"`
	Revision string    `json:"revision"`
	Dirty    bool      `json:"dirty"`
	Commit   time.Time `json:"lastCommit"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api")
	api.GET("/version", s.VersionHandler)
	api.GET("/tile", s.GetTileHandler)
	api.POST("/tile/actions", s.ActionHandler)
	api.PUT("/tile/series/:index/value", s.SeriesValueHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, VersionResponse{
		Version:  versioninfo.Version,
		Revision: versioninfo.Revision,
		Dirty:    versioninfo.DirtyBuild,
		Commit:   versioninfo.LastCommit,
	})
}

func (s *Server) GetTileHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetTileRequest{}, actorRequestTimeout).Result()
	if err != nil {
		return unavailable(c, err)
	}
	resp, ok := res.(domain.GetTileResponse)
	if !ok || resp.HasResponseError() {
		return unavailable(c, resp.GetResponseError())
	}
	series := resp.Series
	if series == nil {
		series = []switchtile.NormalizedSeries{}
	}
	return c.JSON(http.StatusOK, TileResponse{
		Title:    resp.Title,
		SubTitle: resp.SubTitle,
		Series:   series,
	})
}

func (s *Server) ActionHandler(c echo.Context) error {
	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed action"})
	}
	if req.Label == nil || req.Args == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "label and args are required"})
	}

	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ToggleSwitchRequest{
		Label:    *req.Label,
		Selected: *req.Args,
	}, actorRequestTimeout).Result()
	if err != nil {
		return unavailable(c, err)
	}
	resp, ok := res.(domain.ToggleSwitchResponse)
	switch {
	case !ok:
		return unavailable(c, nil)
	case coreactor.IsUnknownSwitch(resp):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: resp.GetResponseError().Error()})
	case resp.HasResponseError():
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: resp.GetResponseError().Error()})
	}
	return c.JSON(http.StatusOK, resp.Payload)
}

func (s *Server) SeriesValueHandler(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid series index"})
	}
	var req SeriesValueRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed value"})
	}

	res, err := s.rootContext.RequestFuture(s.masterActor, domain.UpdateSeriesValueRequest{
		Index:  index,
		Value:  req.Value,
		Source: "http",
	}, actorRequestTimeout).Result()
	if err != nil {
		return unavailable(c, err)
	}
	resp, ok := res.(domain.UpdateSeriesValueResponse)
	switch {
	case !ok:
		return unavailable(c, nil)
	case coreactor.IsUnknownSeries(resp):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: resp.GetResponseError().Error()})
	case resp.HasResponseError():
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: resp.GetResponseError().Error()})
	}

	changes := make([]SeriesChange, 0, len(resp.Changes))
	for _, change := range resp.Changes {
		changes = append(changes, SeriesChange{
			Label:    change.Series.Label,
			Selected: change.Series.Selected,
			New:      change.New,
		})
	}
	return c.JSON(http.StatusOK, SeriesValueResponse{Changes: changes})
}

func unavailable(c echo.Context, err error) error {
	msg := "actor system unavailable"
	if err != nil {
		msg = err.Error()
	}
	return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: msg})
}
