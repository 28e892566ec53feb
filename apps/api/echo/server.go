package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/certificate"
	"github.com/Gokulakrishnan610/chicken-dinner/core/dashboard"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
	"github.com/Gokulakrishnan610/chicken-dinner/core/report"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	"github.com/Gokulakrishnan610/chicken-dinner/core/volunteering"
	"github.com/Gokulakrishnan610/chicken-dinner/services/metrics"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Metrics    *metrics.Metrics
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc         *user.Service
		ProfileSvc      *profile.Service
		SubmissionSvc   *submission.Service
		AchievementSvc  *achievement.Service
		CertificateSvc  *certificate.Service
		VolunteeringSvc *volunteering.Service
		NotificationSvc *notification.Service
		ReportSvc       *report.Service
		DashboardSvc    *dashboard.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Logger.SetLevel(log.INFO)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(metricsMiddleware(s.deps.Metrics))
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(jwtConfig(conf)),
		authUserMiddleware(s.deps.UserSvc),
	}
	limiter := newRateLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateBurst)

	registerUserAPI(v1, authed, limiter, s.deps)
	registerProfileAPI(v1, authed, s.deps)
	registerAchievementAPI(v1, authed, s.deps)
	registerCertificateAPI(v1, authed, s.deps)
	registerVolunteeringAPI(v1, authed, s.deps)
	registerNotificationAPI(v1, authed, s.deps)
	registerReportAPI(v1, authed, s.deps)
	registerDashboardAPI(v1, authed, s.deps)
}

// Start serves until the server is shut down; a failure is sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to EduPortal API!")
}
