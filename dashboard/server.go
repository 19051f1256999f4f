package dashboard

import (
	"context"
	"discord-moderator/feed"
	"discord-moderator/model"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

// Controller is the bot lifecycle as seen by the dashboard.
type Controller interface {
	Start() error
	Stop() error
	Status() model.Status
}

type RuleStore interface {
	GetRules() []model.Rule
	UpdateRule(id string, patch model.RulePatch) (model.Rule, error)
	GetSettings() model.Settings
	UpdateSettings(patch model.SettingsPatch) (model.Settings, error)
}

type AuditReader interface {
	Query(q model.AuditQuery) ([]model.AuditEntry, error)
	Stats(since time.Time) (model.AuditStats, error)
}

type BanLister interface {
	Pending() []model.PendingBanRequest
}

type WarningLedger interface {
	Snapshot() map[string]int
	Reset(userID string) bool
}

// Deps are the parts of the bot the dashboard reads and controls.
type Deps struct {
	Bot      Controller
	Rules    RuleStore
	Audit    AuditReader
	Bans     BanLister
	Warnings WarningLedger
	Feed     *feed.Broker
}

type Config struct {
	Addr      string
	Password  string
	JWTSecret string
	TokenTTL  time.Duration
	// Registerer receives the HTTP metrics; defaults to the global registry.
	Registerer prometheus.Registerer
}

type Server struct {
	echo  *echo.Echo
	httpd *http.Server
	deps  Deps

	passwordHash []byte
	secret       []byte
	tokenTTL     time.Duration

	// closed on Shutdown so open event streams end
	done      chan struct{}
	closeOnce sync.Once
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if cfg.Password == "" || cfg.JWTSecret == "" {
		return nil, errors.New("dashboard requires a password and a JWT secret")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash dashboard password: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	srv := &Server{
		deps:         deps,
		passwordHash: hash,
		secret:       []byte(cfg.JWTSecret),
		tokenTTL:     cfg.TokenTTL,
		done:         make(chan struct{}),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "moderator",
		Subsystem:  "dashboard",
		Registerer: cfg.Registerer,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.POST("/api/login", srv.handleLogin)

	api := e.Group("/api", srv.checkAuth)
	api.GET("/status", srv.handleStatus)
	api.GET("/rules", srv.handleGetRules)
	api.PATCH("/rules/:id", srv.handleUpdateRule)
	api.GET("/settings", srv.handleGetSettings)
	api.PATCH("/settings", srv.handleUpdateSettings)
	api.GET("/logs", srv.handleLogs)
	api.GET("/stats", srv.handleStats)
	api.GET("/bans", srv.handleBans)
	api.GET("/warnings", srv.handleWarnings)
	api.DELETE("/warnings/:userId", srv.handleResetWarnings)
	api.POST("/bot/start", srv.handleBotStart)
	api.POST("/bot/stop", srv.handleBotStop)
	api.GET("/events", srv.handleEvents)

	srv.echo = e
	srv.httpd = &http.Server{
		Addr:              cfg.Addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, nil
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var msg any = "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = he.Message
	}
	if code >= 500 {
		log.Printf("[Dashboard] %s %s: %v", c.Request().Method, c.Path(), err)
	}
	if c.Response().Committed {
		return
	}
	if err := c.JSON(code, map[string]any{"error": msg}); err != nil {
		log.Printf("[Dashboard] Failed to write http error: %v", err)
	}
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Start serves until Shutdown is called.
func (srv *Server) Start() error {
	log.Printf("[Dashboard] Listening on %s", srv.httpd.Addr)
	err := srv.httpd.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *Server) Shutdown(ctx context.Context) error {
	log.Println("[Dashboard] Shutting down")
	srv.closeOnce.Do(func() { close(srv.done) })
	return srv.httpd.Shutdown(ctx)
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
