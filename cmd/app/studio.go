package main

import (
	"github.com/rs/zerolog"

	"autoshorts/internal/config"
	"autoshorts/internal/domain/ports/adapter"
	"autoshorts/internal/infra/adapters/ai"
	"autoshorts/internal/infra/metrics"
	"autoshorts/internal/rotation"
)

// offlineKey stands in for a credential when the fake studio runs without any.
const offlineKey = "offline"

type studio struct {
	Scripts    adapter.ScriptGenerator
	Media      ai.Studio
	Clips      adapter.ClipFetcher
	ScriptExec *rotation.Executor
	MediaExec  *rotation.Executor
}

func buildStudio(cfg *config.Config, logger *zerolog.Logger) *studio {
	var poolOpts []rotation.PoolOption
	if cfg.AI.RandomStart {
		poolOpts = append(poolOpts, rotation.RandomStart())
	}
	newExec := func(keys []string) *rotation.Executor {
		return rotation.NewExecutor(rotation.NewKeyPool(keys, poolOpts...), cfg.Pipeline.RotationBackoff, logger,
			rotation.WithObserver(metrics.Rotation{}))
	}

	if cfg.AI.ScriptProvider == "fake" {
		fake := ai.NewFakeStudio()
		keys := cfg.AI.Keys
		if len(keys) == 0 {
			keys = []string{offlineKey}
		}
		exec := newExec(keys)
		logger.Warn().Msg("fake studio selected: nothing is generated upstream")
		return &studio{Scripts: fake, Media: ai.NewLimitedStudio(fake, cfg.AI.MaxConcurrent), Clips: fake, ScriptExec: exec, MediaExec: exec}
	}

	gemini := ai.NewGeminiStudio(ai.GeminiOptions{
		BaseURL:    cfg.AI.GeminiURL,
		TextModel:  cfg.AI.TextModel,
		TTSModel:   cfg.AI.TTSModel,
		VideoModel: cfg.AI.VideoModel,
		Voice:      cfg.AI.Voice,
	}, logger)
	media := ai.NewLimitedStudio(gemini, cfg.AI.MaxConcurrent)
	mediaExec := newExec(cfg.AI.Keys)
	if mediaExec.Pool().Empty() {
		logger.Warn().Msg("configuration: no API credentials (set API_KEYS or API_KEY); every generation will fail until they are added")
	}

	s := &studio{
		Scripts:    media,
		Media:      media,
		Clips:      ai.NewHTTPClipFetcher(cfg.Pipeline.DownloadTimeout),
		ScriptExec: mediaExec,
		MediaExec:  mediaExec,
	}
	if cfg.AI.ScriptProvider == "openai" {
		s.Scripts = ai.NewOpenAIScript(cfg.AI.OpenAIModel, cfg.AI.OpenAIBaseURL, metrics.Tokens{}, logger)
		s.ScriptExec = newExec(cfg.AI.OpenAIKeys)
	}
	logger.Info().
		Str("script_provider", cfg.AI.ScriptProvider).
		Int("keys", mediaExec.Pool().Size()).
		Int("max_concurrent", cfg.AI.MaxConcurrent).
		Msg("studio ready")
	return s
}
