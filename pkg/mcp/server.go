// Package mcp exposes a conversation session as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"sync"

	mcplib "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport"

	"github.com/run-bigpig/healthchat/pkg/chatbot"
	"github.com/run-bigpig/healthchat/pkg/logging"
)

// Tool names
const (
	AskToolName   = "ask_health_assistant"
	ClearToolName = "clear_conversation"
)

// AskArgs are the arguments of the ask tool
type AskArgs struct {
	Question string `json:"question" jsonschema:"required,description=A general health question"`
}

// ClearArgs are the (empty) arguments of the clear tool
type ClearArgs struct{}

// ToolServer serves one chatbot session over MCP. Calls are serialized.
type ToolServer struct {
	mu     sync.Mutex
	bot    *chatbot.Chatbot
	logger logging.Logger
	server *mcplib.Server
}

// NewToolServer registers the tools on a server bound to t
func NewToolServer(bot *chatbot.Chatbot, t transport.Transport, logger logging.Logger) (*ToolServer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &ToolServer{
		bot:    bot,
		logger: logger,
		server: mcplib.NewServer(t,
			mcplib.WithName("healthchat"),
			mcplib.WithInstructions("General health information with safety screening. Not a substitute for professional care."),
		),
	}

	if err := s.server.RegisterTool(AskToolName,
		"Answers a general health question with safety screening. Emergencies receive emergency guidance instead of an answer.",
		s.Ask); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", AskToolName, err)
	}
	if err := s.server.RegisterTool(ClearToolName,
		"Forgets the conversation so far",
		s.Clear); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", ClearToolName, err)
	}
	return s, nil
}

// Serve starts handling requests; it returns once the transport is running
func (s *ToolServer) Serve() error {
	return s.server.Serve()
}

// Ask answers a question on the shared session
func (s *ToolServer) Ask(args AskArgs) (*mcplib.ToolResponse, error) {
	s.mu.Lock()
	resp := s.bot.Chat(context.Background(), args.Question)
	s.mu.Unlock()

	s.logger.Info(context.Background(), "MCP question answered", map[string]interface{}{
		"risk_level": resp.RiskLevel.String(),
		"success":    resp.Success,
	})

	return mcplib.NewToolResponse(mcplib.NewTextContent(resp.Content)), nil
}

// Clear resets the session history
func (s *ToolServer) Clear(ClearArgs) (*mcplib.ToolResponse, error) {
	s.mu.Lock()
	s.bot.ClearHistory(context.Background())
	s.mu.Unlock()

	return mcplib.NewToolResponse(mcplib.NewTextContent("Conversation cleared.")), nil
}
