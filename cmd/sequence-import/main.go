package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"outreach_backend/internal/outreach/catalog"
	"outreach_backend/internal/outreach/channels"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/migrations"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

func main() {
	file := flag.String("file", "", "path to the sequence catalog YAML")
	dryRun := flag.Bool("dry-run", false, "validate the catalog without activating it")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: sequence-import -file catalog.yaml [-dry-run]")
		os.Exit(2)
	}

	cfg, err := config.Load(false)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting sequence catalog import", "file", *file, "dryRun", *dryRun)

	templates, err := channels.NewTemplates(cfg.GetAppBaseURL())
	if err != nil {
		log.Error("failed to load message templates", "error", err)
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Error("failed to open catalog", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if *dryRun {
		doc, err := catalog.Parse(f)
		if err == nil {
			err = catalog.New(nil, nil, templates, validator.New(), log).Validate(doc)
		}
		if err != nil {
			log.Error("catalog is invalid", "error", err)
			os.Exit(1)
		}
		log.Info("catalog is valid", "steps", len(doc.Steps))
		return
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrations.FS); err != nil {
		log.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}

	repo := repository.New(pool)
	version, err := catalog.New(repo, repo, templates, validator.New(), log).ImportYAML(ctx, f)
	if err != nil {
		log.Error("catalog import failed", "error", err)
		os.Exit(1)
	}
	log.Info("catalog imported", "version", version)
}
