package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"entrepo/internal/api"
	"entrepo/internal/config"
	"entrepo/internal/dsl"
	"entrepo/internal/metrics"
	"entrepo/internal/pg"
	"entrepo/internal/repo"
	"entrepo/internal/schema"
	"entrepo/internal/seed"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.NewEntry(logger)

	// 0. Конфиг: config.json/.yaml, .env, ENTREPO_*, флаги
	cfg, err := config.LoadWithPath("config.json", os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	// 1. Загружаем DSL-сущности и собираем реестр
	entities, err := dsl.LoadAllEntities(cfg.SchemaDir)
	if err != nil {
		log.WithError(err).Fatal("DSL load")
	}
	reg, err := dsl.Registry(entities)
	if err != nil {
		log.WithError(err).Fatal("schema")
	}
	if issues := schema.Lint(reg); len(issues) > 0 {
		for _, it := range issues {
			log.Error(it.String())
		}
		log.WithField("issues", len(issues)).Fatal("schema has blocking issues")
	}
	log.WithField("entities", len(entities)).Info("schema loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. PostgreSQL
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db, err := pg.Open(startCtx, cfg.DBURL)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer db.Close()

	if cfg.AutoMigrate {
		ddl, err := pg.GenerateDDL(reg)
		if err != nil {
			log.WithError(err).Fatal("DDL")
		}
		if err := pg.ApplyDDL(startCtx, db, ddl, log); err != nil {
			log.WithError(err).Fatal("migrate")
		}
		log.WithField("statements", len(ddl)).Info("schema migrated")
	}

	m := metrics.NewCollector("entrepo")
	store := repo.NewStore(db, reg,
		repo.WithLogger(log),
		repo.WithMetrics(m),
		repo.WithMaxIncludeDepth(cfg.MaxIncludeDepth),
	)

	// 3. Сиды
	if cfg.SeedDir != "" {
		fixtures, err := seed.Load(cfg.SeedDir)
		if err != nil {
			log.WithError(err).Fatal("seed load")
		}
		if err := seed.Apply(startCtx, store, fixtures, log); err != nil {
			log.WithError(err).Fatal("seed")
		}
	}

	// 4. REST API
	router := api.NewRouter(store, m, log)
	errc := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("starting server")
		errc <- api.RunServer(":"+cfg.Port, router)
	}()

	select {
	case err := <-errc:
		log.WithError(err).Fatal("server stopped")
	case <-ctx.Done():
		log.Info("shutting down")
	}
}
