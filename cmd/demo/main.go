package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"autoshorts/internal/config"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/infra/adapters/ai"
	tele "autoshorts/internal/infra/adapters/telegram"
	"autoshorts/internal/infra/db/sqlite"
	"autoshorts/internal/infra/i18n"
	"autoshorts/internal/infra/logging"
	"autoshorts/internal/infra/storage"
	"autoshorts/internal/rotation"
	"autoshorts/internal/usecase"
)

// demo runs one generation offline: fake studio, throwaway SQLite store.
func main() {
	category := flag.String("category", string(model.CategoryMotivation), "category to generate")
	viral := flag.Bool("viral", true, "viral mode")
	rotate := flag.Bool("rotate", true, "start on a spent key to show rotation")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)

	dir, err := os.MkdirTemp("", "autoshorts-demo-*")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := sqlite.Open(dir)
	if err != nil {
		log.Fatalf("sqlite: %v", err)
	}
	defer db.Close()
	artifacts, err := storage.NewFSStore(filepath.Join(dir, "artifacts"))
	if err != nil {
		log.Fatalf("artifacts: %v", err)
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "fr")
	if err != nil {
		log.Fatalf("i18n: %v", err)
	}

	studio := ai.NewFakeStudio()
	studio.Latency = 50 * time.Millisecond
	keys := []string{"demo-key-b"}
	if *rotate {
		studio.QuotaKeys = map[string]bool{"demo-key-a": true}
		keys = []string{"demo-key-a", "demo-key-b"}
	}
	exec := rotation.NewExecutor(rotation.NewKeyPool(keys), 200*time.Millisecond, logger)

	cat, err := model.ParseCategory(*category)
	if err != nil {
		log.Fatalf("category: %v", err)
	}

	jobs := sqlite.NewJobRepo(db)
	counters := sqlite.NewCounterRepo(db)
	pipeline := usecase.NewPipelineUseCase(usecase.PipelineDeps{
		ScriptExec: exec,
		Scripts:    studio,
		Voice:      studio,
		Video:      studio,
		Clips:      studio,
		Jobs:       jobs,
		Ledger:     usecase.NewLedgerUseCase(jobs, counters, sqlite.NewTxManager(db), 3, logger),
		Counters:   counters,
		Artifacts:  artifacts,
		Notifier:   tele.NewLogNotifier(logger),
		Messages:   tr,
	}, usecase.PipelineSettings{PollInterval: 100 * time.Millisecond, PollMaxAttempts: 10, AdFrequency: 3, RewardNormal: 50, RewardViral: 75}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	job, err := pipeline.Generate(ctx, usecase.GenerateRequest{Category: cat, ViralMode: *viral})
	if err != nil {
		log.Printf("generation failed: %v", err)
	}
	if job == nil {
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(struct {
		ID       string        `json:"id"`
		Category string        `json:"category"`
		Stage    model.Stage   `json:"stage"`
		Topic    string        `json:"topic"`
		Scenes   []model.Scene `json:"scenes"`
		Audio    *string       `json:"audio"`
		Clips    []string      `json:"clips"`
	}{job.ID, job.Category.DisplayName(), job.Stage, job.Topic, job.Scenes, job.AudioArtifact, job.VideoArtifacts}, "", "  ")
	fmt.Println(string(out))
}
