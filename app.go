package main

import (
	"context"
	"fmt"
	"strings"

	"eino_voice_shop/internal/config"
	"eino_voice_shop/internal/core"
	"eino_voice_shop/internal/nodes"
	"eino_voice_shop/internal/services"
	"eino_voice_shop/internal/storage"
	"eino_voice_shop/src"
	"eino_voice_shop/src/conversation"
	"eino_voice_shop/src/llm"
	"eino_voice_shop/src/llm/structure"
	"eino_voice_shop/src/logger"
	redisstore "eino_voice_shop/src/storage"
)

// application holds everything a command needs after wiring
type application struct {
	cfg        *src.Config
	assistant  *config.AssistantConfig
	controller *core.Controller
	structurer *structure.Pipeline
	sessions   *conversation.Service
	journal    storage.Journal
	redis      *redisstore.RedisStorage
}

func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := src.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.LogConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	assistant, err := config.LoadConfig(cfg.ConversationConfig.ConfigPath)
	if err != nil {
		return nil, err
	}

	app := &application{cfg: cfg, assistant: assistant}
	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *application) wire(ctx context.Context) error {
	router, err := a.assistant.BuildRouter()
	if err != nil {
		return err
	}

	policy, err := services.PolicyByName(a.cfg.CommerceConfig.MatchPolicy)
	if err != nil {
		return err
	}
	executor := services.NewExecutor(
		services.NewHTTPCommerceClient(a.cfg.CommerceConfig, nil),
		a.cfg.CommerceConfig,
		services.WithMatchPolicy(policy),
		services.WithClearCartContext(a.assistant.ClearCartContext(a.cfg.CommerceConfig)),
	)

	// an unusable provider still boots; every turn then reports the configuration error
	completer, err := llm.NewCompleter(ctx, a.cfg.LLMConfig)
	if err != nil {
		logger.Warn().Err(err).Str("provider", a.cfg.LLMConfig.Provider).Msg("Completion model unavailable")
	}

	structureCfg := a.cfg.LLMConfig
	structureCfg.Temperature = a.cfg.LLMConfig.StructureTemperature
	structureCfg.MaxTokens = a.cfg.LLMConfig.StructureMaxTokens
	if chatModel, err := llm.NewChatModel(ctx, structureCfg, structureCfg.StructureModelName()); err != nil {
		logger.Warn().Err(err).Msg("Structure model unavailable, replies will use the fallback")
	} else if a.structurer, err = structure.NewPipeline(ctx, chatModel, structureCfg.Timeout); err != nil {
		return err
	}

	processor, err := nodes.NewTurnGraph(nodes.Dependencies{
		Classifier: router,
		Executor:   executor,
		Completer:  completer,
		Strategy:   conversation.NewChatHistoryStrategy(a.cfg.ConversationConfig.MaxTurns),
		Persona:    a.assistant.Persona,
		Guidelines: a.assistant.Guidelines,
	})
	if err != nil {
		return err
	}

	var (
		repo conversation.Repository
		gate storage.TurnGate
	)
	conv := a.cfg.ConversationConfig
	switch strings.ToLower(conv.Store) {
	case "redis":
		a.redis, err = redisstore.NewRedisStorage(ctx, conv.RedisURL, "")
		if err != nil {
			return err
		}
		repo = conversation.NewRedisRepository(a.redis, conv.TTL)
		gate = storage.NewRedisTurnGate(a.redis, 0)
	default:
		repo = storage.NewMemorySessionRepository(conv.TTL)
		gate = storage.NewLocalTurnGate()
	}
	a.sessions = conversation.NewService(repo)
	a.controller = core.NewController(processor, core.WithTurnGate(gate))

	if conv.JournalDir != "" {
		a.journal = storage.NewJSONJournal(conv.JournalDir)
	}

	logger.Info().
		Str("provider", a.cfg.LLMConfig.Provider).
		Str("model", a.cfg.LLMConfig.Model).
		Str("store", conv.Store).
		Bool("journal", a.journal != nil).
		Int("intent_rules", len(a.assistant.Intents)).
		Msg("Assistant wired")
	return nil
}

func (a *application) healthCheck(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx)
}

func (a *application) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Redis")
		}
	}
}
