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

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/announcement"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/expense"
	"github.com/trezcool/agape/core/grade"
	"github.com/trezcool/agape/core/portal"
	"github.com/trezcool/agape/core/user"
)

type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc         user.Service
	EnrollmentSvc   enrollment.Service
	BillingSvc      billing.Service
	ExpenseSvc      expense.Service
	GradeSvc        grade.Service
	AnnouncementSvc announcement.Service
	PortalSvc       portal.Service
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = conf.TestMode
	s.app.Debug = conf.Debug
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	} else {
		s.app.Logger.SetLevel(log.INFO)
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	staff := staffMiddleware(conf)

	registerUserAPI(g, staff, s.deps.UserSvc, s.deps.Validate, conf)
	registerEnrollmentAPI(g, staff, s.deps.EnrollmentSvc, s.deps.GradeSvc)
	registerBillingAPI(g, staff, s.deps.BillingSvc, s.deps.Logger, s.deps.Translator, conf)
	registerExpenseAPI(g, staff, s.deps.ExpenseSvc)
	registerGradeAPI(g, staff, s.deps.GradeSvc)
	registerAnnouncementAPI(g, staff, s.deps.AnnouncementSvc)
	registerPortalAPI(g, s.deps.PortalSvc, conf)
}

// Start blocks until the server stops; failures are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }

func (s *Server) Close() error { return s.app.Close() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
