package tracing

import (
	"context"

	"github.com/run-bigpig/healthchat/pkg/config"
	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/logging"
)

// Tracing holds the configured tracers
type Tracing struct {
	otel     *OTelTracer
	langfuse *LangfuseTracer
	logger   logging.Logger
}

// Setup creates the tracers enabled in cfg. With nothing enabled the
// returned value wraps nothing.
func Setup(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Tracing, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	ot, err := NewOTelTracer(ctx, OTelConfig{
		Enabled:           cfg.Tracing.OTelEnabled,
		ServiceName:       cfg.Tracing.ServiceName,
		CollectorEndpoint: cfg.Tracing.CollectorEndpoint,
	})
	if err != nil {
		return nil, err
	}

	lf, err := NewLangfuseTracer(ctx, LangfuseConfig{
		Enabled:     cfg.Tracing.LangfuseEnabled,
		SecretKey:   cfg.Tracing.LangfuseSecretKey,
		PublicKey:   cfg.Tracing.LangfusePublicKey,
		Host:        cfg.Tracing.LangfuseHost,
		Environment: cfg.App.Environment,
	})
	if err != nil {
		_ = ot.Shutdown(ctx)
		return nil, err
	}

	return &Tracing{otel: ot, langfuse: lf, logger: logger}, nil
}

// WrapModel layers the enabled middlewares around model. Langfuse sits
// inside the OTel span so its export time is part of the span.
func (t *Tracing) WrapModel(model interfaces.ChatModel) interfaces.ChatModel {
	if t == nil {
		return model
	}
	if t.langfuse.Enabled() {
		model = NewModelLangfuseMiddleware(model, t.langfuse, t.logger)
	}
	if t.otel.Enabled() {
		model = NewModelOTelMiddleware(model, t.otel)
	}
	return model
}

// WrapMemory adds spans around transcript writes when OTel is enabled
func (t *Tracing) WrapMemory(mem interfaces.Memory) interfaces.Memory {
	if t == nil || mem == nil || !t.otel.Enabled() {
		return mem
	}
	return NewMemoryOTelMiddleware(mem, t.otel)
}

// Shutdown flushes both tracers
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.langfuse.Flush(ctx)
	return t.otel.Shutdown(ctx)
}
