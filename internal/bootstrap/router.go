package bootstrap

import (
	"database/sql"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/config"
	httpapi "github.com/studymate/study-mate-backend/internal/api/http"
	"github.com/studymate/study-mate-backend/internal/api/http/middleware"
	authhttp "github.com/studymate/study-mate-backend/internal/auth/http"
	authmw "github.com/studymate/study-mate-backend/internal/auth/middleware"
	authrepo "github.com/studymate/study-mate-backend/internal/auth/repository"
	authservice "github.com/studymate/study-mate-backend/internal/auth/service"
	"github.com/studymate/study-mate-backend/internal/auth/session"
	connhttp "github.com/studymate/study-mate-backend/internal/connections/http"
	connrepo "github.com/studymate/study-mate-backend/internal/connections/repository"
	connservice "github.com/studymate/study-mate-backend/internal/connections/service"
	partnercache "github.com/studymate/study-mate-backend/internal/partners/cache"
	partnerhttp "github.com/studymate/study-mate-backend/internal/partners/http"
	partnerrepo "github.com/studymate/study-mate-backend/internal/partners/repository"
	partnerservice "github.com/studymate/study-mate-backend/internal/partners/service"
)

type RouterDeps struct {
	Config   *config.Config
	Log      *zap.Logger
	SQL      *sql.DB
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Sessions *session.Issuer
	// Verifier is nil when Firebase is not configured.
	Verifier authservice.IdentityVerifier
	Gatherer prometheus.Gatherer
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	cfg := dep.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(dep.Log))
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	var dbPinger, cachePinger httpapi.Pinger
	if dep.Pool != nil {
		dbPinger = dep.Pool
	}
	if dep.Redis != nil {
		cachePinger = redisPinger{client: dep.Redis}
	}
	healthHandler := httpapi.NewHealthHandler(cfg.App.ServiceName, cfg.App.Version, dbPinger, cachePinger)
	healthHandler.RegisterRoutes(r)

	if dep.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(dep.Gatherer, promhttp.HandlerOpts{})))
	}

	timeout := cfg.Requests.StoreTimeout

	userRepo := authrepo.NewUserRepository(dep.SQL)
	partnerRepo := partnerrepo.NewPartnerRepository(dep.SQL)
	requestRepo := connrepo.NewRequestRepository(dep.SQL)
	directoryCache := partnercache.New(dep.Redis, cfg.Directory.CacheTTL, dep.Log)

	authSvc := authservice.NewAuthService(userRepo, dep.Verifier, dep.Sessions, dep.Log, authservice.Options{
		StoreTimeout:      timeout,
		MinPasswordLength: cfg.Auth.MinPasswordLn,
	})
	partnerSvc := partnerservice.NewPartnerService(partnerRepo, directoryCache, userRepo, dep.Log, timeout)
	engine := connservice.NewEngine(requestRepo, userRepo, partnerRepo, directoryCache, dep.Log, timeout)

	requireSession := authmw.RequireSession(dep.Sessions)
	limiter := middleware.NewIPRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst)

	api := r.Group("/api")

	authPublic := api.Group("/auth", middleware.RateLimit(limiter))
	authProtected := api.Group("/auth", requireSession)
	authhttp.New(authSvc, dep.Log).RegisterRoutes(authPublic, authProtected)
	connhttp.New(engine, dep.Log).RegisterRoutes(authProtected)

	partnersPublic := api.Group("/partners")
	partnersProtected := api.Group("/partners", requireSession)
	partnerhttp.New(partnerSvc, dep.Log).RegisterRoutes(partnersPublic, partnersProtected)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", middleware.HeaderRequestID)
	c.ExposeHeaders = []string{middleware.HeaderRequestID}
	c.MaxAge = 12 * time.Hour

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
