package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"autoshorts/internal/config"
	"autoshorts/internal/domain"
	"autoshorts/internal/domain/ports/repository"
	"autoshorts/internal/infra/db/sqlite"
	red "autoshorts/internal/infra/redis"
	"autoshorts/internal/usecase"
)

var force = flag.Bool("force", false, "overwrite an existing automation config")

func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo repository.AutomationRepository
	switch cfg.Storage.Driver {
	case "postgres":
		// Automation state lives in Redis next to the Postgres ledger.
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
		repo = red.NewAutomationRepo(rc)
	default:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		defer db.Close()
		repo = sqlite.NewAutomationRepo(db)
	}

	existing, err := repo.Load(ctx)
	switch {
	case err == nil && !*force:
		fmt.Printf("automation config already present (active=%t, morning=%s, evening=%s). No changes.\n",
			existing.Active, existing.MorningSlot, existing.EveningSlot)
		return
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		log.Fatalf("load automation config: %v", err)
	}

	defaults, err := usecase.AutomationDefaults(cfg.Automation.IsActive(), cfg.Automation.MorningSlot, cfg.Automation.EveningSlot)
	if err != nil {
		log.Fatalf("automation defaults: %v", err)
	}
	if err := repo.Save(ctx, &defaults); err != nil {
		log.Fatalf("save automation config: %v", err)
	}
	fmt.Printf("seeded automation config: active=%t morning=%s evening=%s\n", defaults.Active, defaults.MorningSlot, defaults.EveningSlot)
}
