package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/autosave-fi/autosave/config"
	"github.com/autosave-fi/autosave/internal/ledger"
	"github.com/autosave-fi/autosave/service"
	"github.com/autosave-fi/autosave/storage"
)

type customValidator struct {
	validator *validator.Validate
}

func (cv *customValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Server exposes the ledger over HTTP. The relayer's local mirror is
// optional: when present it backs the execution-history endpoint.
type Server struct {
	cfg      config.Config
	echo     *echo.Echo
	ledger   *ledger.Ledger
	redis    storage.SchedulerStorage
	auth     *service.AuthService
	sdClient *statsd.Client
	logger   *logrus.Logger
}

func NewServer(cfg config.Config, ledgerService *ledger.Ledger, redis storage.SchedulerStorage, auth *service.AuthService, sdClient *statsd.Client) *Server {
	return &Server{
		cfg:      cfg,
		echo:     echo.New(),
		ledger:   ledgerService,
		redis:    redis,
		auth:     auth,
		sdClient: sdClient,
		logger:   logrus.WithField("service", "api").Logger,
	}
}

func (s *Server) StartServer() error {
	e := s.echo
	e.HideBanner = true
	e.Validator = &customValidator{validator: validator.New()}
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/ping", s.Ping)

	v1 := e.Group("/v1")
	v1.POST("/plans", s.CreatePlan)
	v1.POST("/permits", s.ApplyPermit)
	v1.GET("/plans/:id", s.GetPlan)
	v1.GET("/plans/:id/history", s.GetPlanHistory)
	v1.GET("/owners/:owner/plans", s.ListPlans)
	v1.GET("/nonces/:owner", s.GetNonce)
	v1.GET("/balances/:account/:token", s.GetBalance)
	v1.GET("/events", s.GetEvents)
	v1.GET("/height", s.GetHeight)
	v1.GET("/policies/tokens/:token", s.GetTokenPolicy)
	v1.GET("/policies/fee", s.GetFeePolicy)

	authd := v1.Group("", authMiddleware(s.auth))
	authd.DELETE("/plans/:id", s.CancelPlan)
	authd.POST("/owners/:owner/cancel", s.CancelFor, requireRole(service.RoleAdmin, service.RoleRelayer))
	authd.POST("/plans/:id/execute", s.ExecutePlan, requireRole(service.RoleRelayer))
	authd.GET("/relayer/credit", s.GetRelayerCredit, requireRole(service.RoleRelayer))
	authd.POST("/relayer/credit/withdraw", s.WithdrawCredit, requireRole(service.RoleRelayer))
	authd.POST("/deposits", s.Deposit, requireRole(service.RoleAdmin))

	admin := authd.Group("/admin", requireRole(service.RoleAdmin))
	admin.PUT("/policies/tokens", s.SetTokenPolicy)
	admin.PUT("/policies/fee", s.SetFeePolicy)
	admin.PUT("/relayers", s.SetRelayerRole)

	return e.Start(fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Autosave ledger is running")
}

func (s *Server) incCounter(name string, tags []string) {
	if s.sdClient == nil {
		return
	}
	if err := s.sdClient.Count(name, 1, tags, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}
}
