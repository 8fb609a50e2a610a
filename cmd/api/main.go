package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "ratecascade/internal/adapters/http_server"
	"ratecascade/internal/adapters/observability"
	"ratecascade/internal/adapters/pms"
	"ratecascade/internal/adapters/redisqueue"
	"ratecascade/internal/app"
	"ratecascade/internal/cascade"
	"ratecascade/internal/pricing"
	"ratecascade/internal/shared"
	mysqlrepo "ratecascade/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	providers := mysqlrepo.NewProviders(db)
	queue := redisqueue.NewQueue(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	snapshots := redisqueue.NewSnapshots(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.SnapshotTTL)

	gateway, err := pms.New(cfg.PMSBase, cfg.PMSKey, cfg.PMSRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PMS client")
	}

	deps := cascade.Deps{
		Repo:        repo,
		Inventory:   providers,
		FeatureRate: providers,
		Adjustments: providers,
		Taxes:       providers,
		Snapshots:   snapshots,
	}
	ctrl := cascade.NewController(
		repo,
		pricing.NewRegistry(),
		cascade.NewResolver(repo, log.Logger),
		cascade.NewFilter(log.Logger),
		queue,
		log.Logger,
	)
	svc := app.NewCascadeService(deps, gateway, ctrl, log.Logger)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Svc: svc})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
