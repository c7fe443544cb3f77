package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/ipinfo/go/v2/ipinfo"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/gymtracker/internal/admin"
	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/geoip"
	"github.com/2beens/gymtracker/internal/levels"
	"github.com/2beens/gymtracker/internal/middleware"
	"github.com/2beens/gymtracker/internal/misc"
	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/web"
	"github.com/2beens/gymtracker/internal/workouts"
)

const sessionsCleanupInterval = 8 * time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config     *config.Config
	location   *time.Location
	sessionTTL time.Duration
	dbPool     *pgxpool.Pool
	locator    *geoip.Locator
	templates  *web.Templates

	redisClient  *redis.Client
	loginChecker *auth.LoginChecker
	authService  *auth.Service

	usersService     *users.Service
	levelsRepo       *levels.Repo
	workoutsService  *workouts.Service
	progressService  *progress.Service
	analyticsService *admin.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config      *config.Config
	Secrets     *config.Secrets
	VersionInfo string
}

// NewServer connects storage and builds every service. On error, whatever
// was opened so far is closed again.
func NewServer(
	ctx context.Context,
	params NewServerParams,
) (_ *Server, err error) {
	cfg := params.Config
	secrets := params.Secrets

	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	sessionTTL, err := cfg.SessionTTLDuration()
	if err != nil {
		return nil, err
	}
	analyticsCacheTTL, err := cfg.AnalyticsCacheTTLDuration()
	if err != nil {
		return nil, err
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     secrets.PostgresPassword,
		TracingEnabled: secrets.HoneycombEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}
	defer func() {
		if err != nil {
			dbPool.Close()
		}
	}()

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}
	if err := db.Migrate(ctx, dbPool); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("gymtracker", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: secrets.RedisPassword,
		DB:       0, // use default DB
	})
	defer func() {
		if err != nil {
			if closeErr := rdb.Close(); closeErr != nil {
				log.Errorf("close redis client: %s", closeErr)
			}
		}
	}()

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	tokens := auth.NewTokenIssuer(secrets.JWTSecret)
	authService := auth.NewAuthService(sessionTTL, tokens, rdb)

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(secrets.HoneycombEnabled, "gymtracker-backend", rdb)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			otelShutdown()
		}
	}()

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   10 * time.Second,
	}

	var ipinfoClient *ipinfo.Client
	if secrets.IPInfoToken != "" {
		ipinfoClient = ipinfo.NewClient(tracedHttpClient, nil, secrets.IPInfoToken)
	} else {
		log.Warnln("IPINFO_TOKEN not set, login locations disabled")
	}
	locator := geoip.NewLocator(ipinfoClient, rdb)

	templates, err := web.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	levelsRepo := levels.NewRepo(dbPool)
	workoutsRepo := workouts.NewRepo(dbPool)
	usersService := users.NewService(users.NewRepo(dbPool), authService, locator, metricsManager)
	if err := usersService.EnsureAdmin(ctx, secrets.AdminEmail, secrets.AdminPasswordHash); err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	go func() {
		ticker := time.NewTicker(sessionsCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.ScanAndClean(ctx)
			}
		}
	}()

	return &Server{
		config:      cfg,
		location:    location,
		sessionTTL:  sessionTTL,
		dbPool:      dbPool,
		locator:     locator,
		templates:   templates,
		versionInfo: params.VersionInfo,

		redisClient:  rdb,
		authService:  authService,
		loginChecker: auth.NewLoginChecker(sessionTTL, tokens, rdb),

		usersService:     usersService,
		levelsRepo:       levelsRepo,
		workoutsService:  workouts.NewService(workoutsRepo, levelsRepo, metricsManager),
		progressService:  progress.NewService(workoutsRepo, levelsRepo, location),
		analyticsService: admin.NewService(admin.NewRepo(dbPool), analyticsCacheTTL, location),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("gymtracker-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	loginRateLimit := middleware.RateLimit(
		reqRateLimiter,
		"login",
		s.config.LoginRateLimitAllowedPerMin,
		s.metricsManager,
	)

	miscHandler := misc.NewHandler(s.locator, s.versionInfo)
	r.HandleFunc("/health", miscHandler.HandleHealth).Methods("GET").Name("health")
	r.HandleFunc("/version", miscHandler.HandleVersion).Methods("GET").Name("version")
	r.HandleFunc("/whereami", miscHandler.HandleWhereAmI).Methods("GET").Name("whereami")

	usersHandler := users.NewHandler(s.usersService, s.sessionTTL, s.config.SecureCookies)
	r.HandleFunc("/api/auth/register", usersHandler.HandleRegister).Methods("POST", "OPTIONS").Name("register")
	r.Handle("/api/auth/login", loginRateLimit(http.HandlerFunc(usersHandler.HandleLogin))).Methods("POST", "OPTIONS").Name("login")
	r.HandleFunc("/api/auth/logout", usersHandler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")
	r.HandleFunc("/api/me", usersHandler.HandleMe).Methods("GET", "OPTIONS").Name("me")
	r.HandleFunc("/api/me", usersHandler.HandleUpdateMe).Methods("PUT", "OPTIONS").Name("update-me")
	r.HandleFunc("/api/me/password", usersHandler.HandleChangePassword).Methods("PUT", "OPTIONS").Name("change-password")

	levelsHandler := levels.NewHandler(s.levelsRepo)
	r.HandleFunc("/api/levels", levelsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-levels")
	r.HandleFunc("/api/levels/{id:[0-9]+}", levelsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-level")

	workoutsHandler := workouts.NewHandler(s.workoutsService)
	r.HandleFunc("/api/workouts", workoutsHandler.HandleCreate).Methods("POST", "OPTIONS").Name("new-workout")
	r.HandleFunc("/api/workouts", workoutsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-workouts")
	r.HandleFunc("/api/workouts/exercises", workoutsHandler.HandleExerciseNames).Methods("GET", "OPTIONS").Name("exercise-names")
	r.HandleFunc("/api/workouts/{id:[0-9]+}", workoutsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-workout")
	r.HandleFunc("/api/workouts/{id:[0-9]+}", workoutsHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-workout")
	r.HandleFunc("/api/workouts/{id:[0-9]+}", workoutsHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-workout")

	progressHandler := progress.NewHandler(s.progressService, s.usersService)
	r.HandleFunc("/api/dashboard", progressHandler.HandleDashboard).Methods("GET", "OPTIONS").Name("dashboard")
	r.HandleFunc("/api/progress/exercises", progressHandler.HandleExercises).Methods("GET", "OPTIONS").Name("exercises-summary")
	r.HandleFunc("/api/progress/exercises/{name}", progressHandler.HandleExerciseProgress).Methods("GET", "OPTIONS").Name("exercise-progress")
	r.HandleFunc("/api/progress/volume", progressHandler.HandleWeeklyVolume).Methods("GET", "OPTIONS").Name("weekly-volume")

	adminRouter := r.PathPrefix("/api/admin").Subrouter()
	adminRouter.Use(middleware.RequireRole(auth.RoleAdmin))

	usersAdminHandler := users.NewAdminHandler(s.usersService)
	adminRouter.HandleFunc("/users", usersAdminHandler.HandleList).Methods("GET", "OPTIONS").Name("admin-list-users")
	adminRouter.HandleFunc("/users", usersAdminHandler.HandleCreate).Methods("POST", "OPTIONS").Name("admin-new-user")
	adminRouter.HandleFunc("/users/{id:[0-9]+}", usersAdminHandler.HandleGet).Methods("GET", "OPTIONS").Name("admin-get-user")
	adminRouter.HandleFunc("/users/{id:[0-9]+}/role", usersAdminHandler.HandleSetRole).Methods("PUT", "OPTIONS").Name("admin-set-role")
	adminRouter.HandleFunc("/users/{id:[0-9]+}/level", usersAdminHandler.HandleAssignLevel).Methods("PUT", "OPTIONS").Name("admin-assign-level")
	adminRouter.HandleFunc("/users/{id:[0-9]+}", usersAdminHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("admin-delete-user")
	adminRouter.HandleFunc("/users/{id:[0-9]+}/dashboard", progressHandler.HandleUserDashboard).Methods("GET", "OPTIONS").Name("admin-user-dashboard")
	adminRouter.HandleFunc("/users/{id:[0-9]+}/progress/{name}", progressHandler.HandleUserExerciseProgress).Methods("GET", "OPTIONS").Name("admin-user-progress")

	adminRouter.HandleFunc("/levels", levelsHandler.HandleCreate).Methods("POST", "OPTIONS").Name("admin-new-level")
	adminRouter.HandleFunc("/levels/{id:[0-9]+}", levelsHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("admin-update-level")
	adminRouter.HandleFunc("/levels/{id:[0-9]+}", levelsHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("admin-delete-level")

	analyticsHandler := admin.NewHandler(s.analyticsService)
	adminRouter.HandleFunc("/analytics/overview", analyticsHandler.HandleOverview).Methods("GET", "OPTIONS").Name("admin-overview")
	adminRouter.HandleFunc("/analytics/users", analyticsHandler.HandleUserActivity).Methods("GET", "OPTIONS").Name("admin-user-activity")

	webHandler := web.NewHandler(
		s.templates,
		s.usersService,
		s.progressService,
		s.analyticsService,
		s.sessionTTL,
		s.config.SecureCookies,
	)
	r.HandleFunc("/", webHandler.HandleRoot).Methods("GET").Name("web-root")
	r.HandleFunc("/login", webHandler.HandleLoginPage).Methods("GET").Name("web-login-page")
	r.Handle("/login", loginRateLimit(http.HandlerFunc(webHandler.HandleLogin))).Methods("POST").Name("web-login")
	r.HandleFunc("/register", webHandler.HandleRegisterPage).Methods("GET").Name("web-register-page")
	r.HandleFunc("/register", webHandler.HandleRegister).Methods("POST").Name("web-register")
	r.HandleFunc("/logout", webHandler.HandleLogout).Methods("POST").Name("web-logout")
	r.HandleFunc("/app/dashboard", webHandler.HandleDashboard).Methods("GET").Name("web-dashboard")
	r.HandleFunc("/app/progress", webHandler.HandleProgress).Methods("GET").Name("web-progress")
	r.HandleFunc("/app/admin", webHandler.HandleAdmin).Methods("GET").Name("web-admin")
	r.HandleFunc("/app/admin/users/{id:[0-9]+}", webHandler.HandleAdminUser).Methods("GET").Name("web-admin-user")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
