package chatbot

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/run-bigpig/healthchat/pkg/memory"
	"github.com/run-bigpig/healthchat/pkg/safety"
)

// Stream is an answer delivered in fragments. Fragments may be ranged over
// once; Response is available after the range completes.
type Stream struct {
	run      func(yield func(string) bool)
	consumed bool
	response *ChatResponse
}

// Fragments yields the answer as it is produced. Breaking out of the range
// abandons the turn: nothing further is recorded and Response stays nil.
func (s *Stream) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		if s.consumed {
			return
		}
		s.consumed = true
		s.run(yield)
	}
}

// Response returns the summary of the completed turn, or nil if the stream
// has not run to completion.
func (s *Stream) Response() *ChatResponse {
	return s.response
}

// Text drains the stream and returns the concatenated fragments
func (s *Stream) Text() string {
	var sb strings.Builder
	for fragment := range s.Fragments() {
		sb.WriteString(fragment)
	}
	return sb.String()
}

// ChatStream answers one message incrementally. Work starts when Fragments
// is ranged over.
//
// Model fragments are forwarded as they arrive and are neither classified
// nor passed through output guardrails, so redaction applies to Chat only.
// The trailing disclaimer follows the input's risk level. A transport panic
// ends the stream with an interruption note.
func (c *Chatbot) ChatStream(ctx context.Context, input string) *Stream {
	s := &Stream{}
	s.run = func(yield func(string) bool) {
		c.stream(memory.WithConversationID(ctx, c.id), input, s, yield)
	}
	return s
}

func (c *Chatbot) stream(ctx context.Context, input string, s *Stream, yield func(string) bool) {
	var (
		clean     string
		sb        strings.Builder
		inYield   bool
		abandoned bool
	)

	// emit tracks whether control is inside the consumer's loop body, whose
	// panics belong to the consumer and are not absorbed here.
	emit := func(fragment string) bool {
		inYield = true
		ok := yield(fragment)
		inYield = false
		if !ok {
			abandoned = true
		}
		return ok
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if inYield {
			panic(r)
		}

		err := fmt.Errorf("panic: %v", r)
		c.logger.Error(ctx, "Unexpected error in stream", map[string]interface{}{"error": err.Error()})
		if abandoned || s.response != nil {
			return
		}

		note := StreamInterruptedNote
		if sb.Len() == 0 {
			note = UnexpectedErrorMessage
		}
		content := sb.String() + note

		if clean != "" {
			metadata := riskMetadata(safety.RiskLow, safety.Flags{})
			metadata["error"] = err.Error()
			c.record(ctx, clean, content, metadata)
		}

		s.response = failure(content, err)
		emit(note)
	}()

	clean = c.sanitizer.Sanitize(input)
	if clean == "" {
		s.response = failure(RephraseMessage, nil)
		emit(RephraseMessage)
		return
	}

	c.logger.Info(ctx, "Streaming query", map[string]interface{}{"query": preview(clean)})

	in := c.filter.CheckInput(ctx, clean)

	if in.RiskLevel == safety.RiskEmergency {
		reply := c.filter.EmergencyResponse(in.Flags)
		c.record(ctx, clean, reply, riskMetadata(in.RiskLevel, in.Flags))
		s.response = &ChatResponse{
			Content:     reply,
			Success:     true,
			RiskLevel:   safety.RiskEmergency,
			Flags:       in.Flags,
			WasFiltered: true,
		}
		emit(reply)
		return
	}

	messages, err := c.compose(ctx, clean)
	if err != nil {
		c.logger.Error(ctx, "Unexpected error in stream", map[string]interface{}{"error": err.Error()})
		s.response = failure(UnexpectedErrorMessage, err)
		emit(UnexpectedErrorMessage)
		return
	}

	var streamErr error
	for fragment, err := range c.llm.GenerateStream(ctx, messages, c.params()) {
		if err != nil {
			streamErr = err
			break
		}
		if fragment == "" {
			continue
		}
		sb.WriteString(fragment)
		if !emit(fragment) {
			c.logger.Debug(ctx, "Stream abandoned by consumer", nil)
			return
		}
	}

	if streamErr != nil {
		c.logger.Error(ctx, "LLM stream error", map[string]interface{}{"error": streamErr.Error()})

		note := StreamInterruptedNote
		if sb.Len() == 0 {
			note = ConnectionFailureMessage
		}
		content := sb.String() + note

		metadata := riskMetadata(safety.RiskLow, safety.Flags{})
		metadata["error"] = streamErr.Error()
		c.record(ctx, clean, content, metadata)

		s.response = failure(content, streamErr)
		emit(note)
		return
	}

	text := sb.String()
	full := c.filter.AddDisclaimer(text, in.RiskLevel)
	if suffix := full[len(text):]; suffix != "" {
		if !emit(suffix) {
			c.logger.Debug(ctx, "Stream abandoned by consumer", nil)
			return
		}
	}

	c.record(ctx, clean, full, riskMetadata(in.RiskLevel, in.Flags))
	s.response = &ChatResponse{
		Content:   full,
		Success:   true,
		RiskLevel: in.RiskLevel,
		Flags:     in.Flags,
	}
}
