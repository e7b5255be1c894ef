package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/petmatch/clinic-api/internal/handler"
	accounthandler "github.com/petmatch/clinic-api/internal/handler/account"
	invitehandler "github.com/petmatch/clinic-api/internal/handler/invite"
	patienthandler "github.com/petmatch/clinic-api/internal/handler/patient"
	"github.com/petmatch/clinic-api/internal/handler/prometheus"
	"github.com/petmatch/clinic-api/internal/middleware"
)

type Config struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	Timeout          middleware.TimeoutConfig
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	accounts *accounthandler.Handler
	invites  *invitehandler.Handler
	patients *patienthandler.Handler
	base     *handler.Handler
	metrics  *prometheus.Handler
	config   Config
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	accounts *accounthandler.Handler,
	invites *invitehandler.Handler,
	patients *patienthandler.Handler,
	base *handler.Handler,
	metrics *prometheus.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:   gin.New(),
		auth:     auth,
		accounts: accounts,
		invites:  invites,
		patients: patients,
		base:     base,
		metrics:  metrics,
		config:   config,
	}
	r.setup()
	return r
}

func (r *Router) setup() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.ErrorHandler())
	r.engine.Use(middleware.CORS(r.config.CORSConfig))
	r.engine.Use(middleware.Timeout(r.config.Timeout))
	r.engine.Use(r.metrics.Middleware())

	if r.config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		r.engine.Use(limiter.RateLimit())
	}

	r.engine.GET("/health", r.base.HealthCheck)
	r.engine.GET("/health/live", r.base.LivenessCheck)
	r.engine.GET("/health/ready", r.base.ReadinessCheck)
	r.engine.GET("/metrics", r.metrics.Handler())

	v1 := r.engine.Group("/api/v1")
	authed := r.engine.Group("/api/v1")
	authed.Use(r.auth.Authenticate())

	r.accounts.RegisterRoutes(v1, authed)
	r.invites.RegisterRoutes(authed)

	staff := r.engine.Group("/api/v1/clinic")
	staff.Use(r.auth.Authenticate(), r.auth.RequireClinic())
	r.patients.RegisterRoutes(staff)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
