package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/netmode"
	"github.com/sekolahmbg/mbg-client/core/offline"
	"github.com/sekolahmbg/mbg-client/core/session"
)

type (
	// statusServer exposes the agent's state on a loopback port: queue
	// contents, network mode, and manual sync/mode-toggle triggers.
	statusServer struct {
		app  *echo.Echo
		deps serverDeps
	}

	serverDeps struct {
		Conf     *core.Config
		Logger   core.Logger
		Sessions *session.Store
		Resolver *netmode.Resolver
		Engine   *offline.Engine
	}
)

func newStatusServer(deps serverDeps) *statusServer {
	deps.Logger = core.OrNopLogger(deps.Logger)
	s := &statusServer{app: echo.New(), deps: deps}
	s.setup()
	return s
}

func (s *statusServer) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.Conf.Debug {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.HTTPErrorHandler = s.errorHandler

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)
	s.app.GET("/queue", s.queue)
	s.app.POST("/sync", s.syncNow)
	s.app.POST("/mode", s.setMode)
}

func (s *statusServer) Start() error {
	return s.app.Start(s.deps.Conf.Agent.StatusAddr)
}

func (s *statusServer) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *statusServer) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, s.deps.Conf.AppName+" sync agent")
}

func (s *statusServer) health(ctx echo.Context) error {
	sess := s.deps.Sessions.Get()
	return ctx.JSON(http.StatusOK, echo.Map{
		"status": "ok",
		"build":  s.deps.Conf.Build,
		"mode":   s.deps.Resolver.Mode(),
		"queue":  s.deps.Engine.Queue().Len(),
		"role":   sess.RoleOrUnknown(),
	})
}

func (s *statusServer) queue(ctx echo.Context) error {
	items := s.deps.Engine.Queue().All()
	if items == nil {
		items = []offline.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (s *statusServer) syncNow(ctx echo.Context) error {
	ok := s.deps.Engine.Sync(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, echo.Map{"synced": ok})
}

func (s *statusServer) setMode(ctx echo.Context) error {
	var body struct {
		Mode string `json:"mode"`
		Host string `json:"host,omitempty"`
	}
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	role := s.deps.Sessions.Get().RoleOrUnknown()
	if body.Host != "" {
		s.deps.Resolver.SetLocalHost(body.Host)
	}
	if err := s.deps.Resolver.SetMode(netmode.Mode(strings.ToUpper(body.Mode)), role); err != nil {
		if errors.Cause(err) == netmode.ErrLocalModeNotAllowed {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return ctx.JSON(http.StatusOK, echo.Map{"mode": s.deps.Resolver.Mode()})
}

func (s *statusServer) errorHandler(err error, ctx echo.Context) {
	code := http.StatusInternalServerError
	message := interface{}(http.StatusText(code))

	if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
		code = herr.Code
		message = herr.Message
	} else {
		s.deps.Logger.Error("status server error", err, s.deps.Sessions.Get())
	}

	if !ctx.Response().Committed {
		_ = ctx.JSON(code, echo.Map{"error": message})
	}
}
