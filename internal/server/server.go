// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
	"docrag/internal/metrics"
	"docrag/internal/service"
)

// Querier is the service surface the HTTP API needs.
type Querier interface {
	Query(ctx context.Context, query string) (service.Answer, error)
	Stats(ctx context.Context) (service.Stats, error)
}

type QueryRequest struct {
	Question string `json:"question"`
}

type QueryResponse struct {
	Status   string           `json:"status"`
	Query    string           `json:"query"`
	Response string           `json:"response"`
	Contexts []string         `json:"contexts"`
	Sources  []string         `json:"sources,omitempty"`
	Meta     service.Metadata `json:"meta"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type Server struct {
	addr string
	echo *echo.Echo
	svc  Querier
}

func New(addr string, svc Querier, rec *metrics.Recorder) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("http request")
			return nil
		},
	}))

	s := &Server{addr: addr, echo: e, svc: svc}
	e.GET("/health", s.health)
	e.POST("/query", s.query)
	e.GET("/stats", s.stats)
	e.GET("/metrics", echo.WrapHandler(rec.Handler()))
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Status: "error", Error: "invalid request body"})
	}
	ans, err := s.svc.Query(c.Request().Context(), strings.TrimSpace(req.Question))
	if errors.Is(err, domain.ErrEmptyQuery) {
		return c.JSON(http.StatusBadRequest, errorResponse{Status: "error", Error: "question must not be empty"})
	}
	if err != nil {
		log.Error().Err(err).Msg("query failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Status: "error", Error: err.Error()})
	}
	return c.JSON(http.StatusOK, QueryResponse{
		Status:   "success",
		Query:    ans.Query,
		Response: ans.Response,
		Contexts: ans.Contexts,
		Sources:  ans.Sources,
		Meta:     ans.Metadata,
	})
}

func (s *Server) stats(c echo.Context) error {
	st, err := s.svc.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Status: "error", Error: err.Error()})
	}
	return c.JSON(http.StatusOK, st)
}
