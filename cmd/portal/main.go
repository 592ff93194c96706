package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/cache"
	"github.com/tablewise/portal/pkg/config/v2"
	"github.com/tablewise/portal/pkg/database"
	"github.com/tablewise/portal/pkg/dbcheck"
	"github.com/tablewise/portal/pkg/notify"
	"github.com/tablewise/portal/pkg/remote"
	"github.com/tablewise/portal/pkg/requestlogger"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/service/core"
	apiclients "github.com/tablewise/portal/pkg/service/core/api"
	"github.com/tablewise/portal/pkg/service/core/handlers"
	"github.com/tablewise/portal/pkg/service/core/routes"
	"github.com/tablewise/portal/pkg/service/core/storage"
	"github.com/tablewise/portal/pkg/syncers/sessioncleaner"
)

var configFilePath = flag.String("config", "config.yaml", "path to config file")

var promVerificationOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tablewise_portal",
	Name:      "verification_operations_total",
	Help:      "Verification gateway operations by outcome.",
}, []string{"operation", "outcome"})

const (
	SessionCleanerDelay = 10 * time.Second
	ShutdownTimeout     = 5 * time.Second
)

func main() {
	flag.Parse()

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileParts, err := config.ProcessConfigPath(*configFilePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("processing config path")
	}

	cfg, err := config.NewFileSystemLoader().Load(fileParts.FileName, fileParts.Path, "TABLEWISE", config.NewDefaultEnvBinder())
	if err != nil {
		zlog.Fatal().Err(err).Msg("loading config")
	}

	err = cfg.Validate()
	if err != nil {
		zlog.Fatal().Err(err).Msg("validating config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("parsing log level")
	}

	zerolog.SetGlobalLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	repo, err := database.New(
		cfg.Postgres.ConnectionString(),
		cfg.Postgres.Configuration.MaxIdleConnections,
		cfg.Postgres.Configuration.MaxOpenConnections,
		cfg.Debug,
		zlog.With().Str("subsystem", "repo").Logger(),
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("setting up database")
	}

	httpClient := &http.Client{
		Timeout: cfg.RemoteAPI.Timeout(),
	}

	fetcher := remote.New(cfg.RemoteAPI.URL, httpClient)

	cacher := cache.New(
		time.Duration(cfg.CacheDurationSeconds)*time.Second,
		repo.Querier,
		zlog.With().Str("subsystem", "cache").Logger(),
	)

	stores := storage.NewStores(repo)
	apiClients := apiclients.NewClients(cacher, fetcher, cfg, zlog.With().Str("subsystem", "api_clients").Logger())

	maxQueued := cfg.MaxQueuedToasts
	if maxQueued == 0 {
		maxQueued = notify.DefaultMaxQueued
	}

	toasts := notify.New(maxQueued)
	teamNotifier := core.NewTeamNotifier(apiClients.SlackAPI)

	verificationService := core.NewVerificationService(
		apiClients.VerificationAPI,
		toasts,
		teamNotifier,
		promVerificationOps,
		zlog.With().Str("subsystem", "verification").Logger(),
		core.WithSaveBeforeVerify(cfg.Verification.SaveBeforeVerify),
		core.WithIdleTTL(cfg.Verification.IdleTTL()),
		core.WithProgressInvalidator(apiClients.ProgressCache),
	)

	var checker service.CredentialsChecker
	if cfg.CredentialCheck.Enabled {
		checker = dbcheck.New(
			time.Duration(cfg.CredentialCheck.TimeoutSeconds)*time.Second,
			zlog.With().Str("subsystem", "dbcheck").Logger(),
		)
	}

	services := core.NewServices(
		core.NewAccountService(
			apiClients.AccountAPI,
			stores.SessionStorage,
			zlog.With().Str("subsystem", "account").Logger(),
			core.WithLogoutHook(verificationService.CloseAll),
			core.WithLogoutHook(toasts.Forget),
		),
		core.NewRequestService(
			apiClients.RequestsAPI,
			checker,
			toasts,
			teamNotifier,
			zlog.With().Str("subsystem", "requests").Logger(),
		),
		verificationService,
		toasts,
	)

	go sessioncleaner.New(
		stores.SessionStorage,
		verificationService,
		zlog.With().Str("subsystem", "sessioncleaner").Logger(),
	).Run(ctx, SessionCleanerDelay, time.Duration(cfg.SessionCleanupFrequencySeconds)*time.Second)

	sessionCookie := auth.CookieSettings{
		Name:     cfg.Cookies.Session.Name,
		MaxAge:   cfg.Cookies.Session.MaxAge,
		Path:     cfg.Cookies.Session.Path,
		Domain:   cfg.Cookies.Session.Domain,
		SameSite: cfg.Cookies.Session.GetSameSite(),
		Secure:   cfg.Cookies.Session.Secure,
		HttpOnly: cfg.Cookies.Session.HttpOnly,
	}

	authenticator := auth.NewMiddleware(
		services.AccountService,
		sessionCookie.Name,
		zlog.With().Str("subsystem", "auth").Logger(),
	).Handler
	requireUser := auth.RequireUser(zlog)

	h := handlers.NewHandlers(services, sessionCookie)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestlogger.Middleware(zlog.With().Str("subsystem", "requests").Logger(), "/internal/metrics"))
	router.Use(middleware.Recoverer)

	routes.Add(router, cfg.Server.AllowedOrigins,
		routes.NewAccountRoutes(routes.NewAccountEndpoints(zlog, h.AccountHandler), authenticator, requireUser),
		routes.NewProjectsRoutes(routes.NewProjectsEndpoints(zlog, h.ProjectsHandler), authenticator, requireUser),
		routes.NewVerificationRoutes(routes.NewVerificationEndpoints(zlog, h.VerificationHandler), authenticator, requireUser),
		routes.NewNotificationsRoutes(routes.NewNotificationsEndpoints(zlog, h.NotificationsHandler), authenticator, requireUser),
		routes.NewMetricsRoutes(routes.NewMetricsEndpoints(prom(collectors.NewDBStatsCollector(repo.GetDB(), "portal")))),
	)

	if cfg.Debug {
		err = routes.Print(router, os.Stdout)
		if err != nil {
			zlog.Warn().Err(err).Msg("printing routes")
		}
	}

	server := http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Address, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zlog.Info().Msgf("listening on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("serving http")
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Err(err).Msg("shutdown error")
	}

	if err := repo.Close(); err != nil {
		zlog.Warn().Err(err).Msg("closing database")
	}
}

func prom(cols ...prometheus.Collector) *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(promVerificationOps)
	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(cols...)

	return r
}
