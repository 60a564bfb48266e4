package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/run-bigpig/healthchat/pkg/chatbot"
	"github.com/run-bigpig/healthchat/pkg/config"
	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/llm/provider"
	"github.com/run-bigpig/healthchat/pkg/logging"
	"github.com/run-bigpig/healthchat/pkg/memory"
	"github.com/run-bigpig/healthchat/pkg/tracing"
)

// app holds the process-wide collaborators shared by all sessions
type app struct {
	cfg        *config.Config
	logger     logging.Logger
	model      interfaces.ChatModel
	transcript interfaces.Memory
	tracing    *tracing.Tracing
	closers    []io.Closer
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.provider != "" {
		cfg.LLM.Provider = flags.provider
	}
	if flags.model != "" {
		cfg.LLM.Model = flags.model
	}
	if flags.logLevel != "" {
		cfg.App.LogLevel = flags.logLevel
	}
	if flags.tone != "" {
		cfg.Chat.Tone = flags.tone
	}
	return cfg, cfg.Validate()
}

// newApp wires configuration, logging, tracing, the model and the
// transcript store. logOut receives log output; the REPL keeps it off
// stdout.
func newApp(ctx context.Context, flags *globalFlags, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger := logging.New(
		logging.WithLevel(cfg.App.LogLevel),
		logging.WithOutput(logOut),
		logging.WithJSON(cfg.App.LogJSON),
	)

	a := &app{cfg: cfg, logger: logger}

	a.tracing, err = tracing.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	model, err := provider.New(ctx, cfg, logger)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if c, ok := model.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.model = a.tracing.WrapModel(model)

	transcript, err := a.openTranscript(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.transcript = a.tracing.WrapMemory(transcript)

	if !a.model.IsAvailable() {
		logger.Warn(ctx, "LLM is not configured; answers will report a connection problem", map[string]interface{}{
			"provider": cfg.LLM.Provider,
		})
	}
	return a, nil
}

func (a *app) openTranscript(ctx context.Context) (interfaces.Memory, error) {
	tc := a.cfg.Transcript
	switch tc.Backend {
	case config.TranscriptNone, "":
		return nil, nil
	case config.TranscriptMemory:
		return memory.NewConversationBuffer(), nil
	case config.TranscriptRedis:
		store, err := memory.NewRedisMemoryFromConfig(ctx, memory.RedisConfig{
			URL:      tc.RedisURL,
			Password: tc.RedisPassword,
			DB:       tc.RedisDB,
		}, memory.WithTTL(tc.TTL))
		if err != nil {
			return nil, fmt.Errorf("failed to open redis transcript: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	case config.TranscriptPostgres:
		store, err := memory.NewPostgresMemoryFromURL(ctx, tc.DatabaseURL, memory.WithTable(tc.Table))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres transcript: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	}
	return nil, fmt.Errorf("%w: unknown transcript backend %q", config.ErrInvalidConfig, tc.Backend)
}

// newChatbot builds one session
func (a *app) newChatbot(id string) (*chatbot.Chatbot, error) {
	opts := []chatbot.Option{chatbot.WithLogger(a.logger)}
	if id != "" {
		opts = append(opts, chatbot.WithID(id))
	}
	if a.transcript != nil {
		opts = append(opts, chatbot.WithTranscript(a.transcript))
	}
	return chatbot.NewFromConfig(a.cfg, a.model, opts...)
}

func (a *app) close(ctx context.Context) {
	var errs []error
	if err := a.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn(ctx, "Shutdown finished with errors", map[string]interface{}{"error": err.Error()})
	}
}
