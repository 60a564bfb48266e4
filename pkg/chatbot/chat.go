package chatbot

import (
	"context"
	"fmt"

	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/memory"
	"github.com/run-bigpig/healthchat/pkg/safety"
)

// Chat answers one message. It never fails: problems are reported through
// Success and ErrorMessage, and the visible content is always a safe reply.
func (c *Chatbot) Chat(ctx context.Context, input string) (resp *ChatResponse) {
	ctx = memory.WithConversationID(ctx, c.id)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			c.logger.Error(ctx, "Unexpected error in chat", map[string]interface{}{"error": err.Error()})
			resp = failure(UnexpectedErrorMessage, err)
		}
	}()

	resp, err := c.chat(ctx, input)
	if err != nil {
		c.logger.Error(ctx, "Unexpected error in chat", map[string]interface{}{"error": err.Error()})
		return failure(UnexpectedErrorMessage, err)
	}
	return resp
}

func (c *Chatbot) chat(ctx context.Context, input string) (*ChatResponse, error) {
	clean := c.sanitizer.Sanitize(input)
	if clean == "" {
		return failure(RephraseMessage, nil), nil
	}

	c.logger.Info(ctx, "Processing query", map[string]interface{}{"query": preview(clean)})

	in := c.filter.CheckInput(ctx, clean)

	if in.RiskLevel == safety.RiskEmergency {
		reply := c.filter.EmergencyResponse(in.Flags)
		c.record(ctx, clean, reply, riskMetadata(in.RiskLevel, in.Flags))
		return &ChatResponse{
			Content:     reply,
			Success:     true,
			RiskLevel:   safety.RiskEmergency,
			Flags:       in.Flags,
			WasFiltered: true,
		}, nil
	}

	messages, err := c.compose(ctx, clean)
	if err != nil {
		return nil, err
	}

	text, err := c.llm.Generate(ctx, messages, c.params())
	if err != nil {
		if !llm.IsTransportError(err) {
			return nil, err
		}
		c.logger.Error(ctx, "LLM error", map[string]interface{}{"error": err.Error()})
		return failure(ConnectionFailureMessage, err), nil
	}

	out := c.filter.CheckOutput(ctx, text)

	modified := false
	if c.guardrails != nil {
		processed, err := c.guardrails.ProcessOutput(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("output guardrails: %w", err)
		}
		modified = processed != text
		text = processed
	}

	risk := safety.MaxRisk(in.RiskLevel, out.RiskLevel)
	flags := safety.MergeFlags(in.Flags, out.Flags)
	final := c.filter.AddDisclaimer(text, risk)

	c.record(ctx, clean, final, riskMetadata(risk, flags))

	return &ChatResponse{
		Content:     final,
		Success:     true,
		RiskLevel:   risk,
		Flags:       flags,
		WasFiltered: !out.IsSafe || modified,
	}, nil
}
