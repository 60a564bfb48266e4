package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/run-bigpig/healthchat/pkg/interfaces"
)

// MessageRequest is the body of message and stream requests
type MessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) health(c *gin.Context) {
	model := "unknown"
	if namer, ok := s.model.(interfaces.ModelNamer); ok {
		model = namer.ModelName()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"llm_available": s.model.IsAvailable(),
		"model":         model,
	})
}

func (s *Server) createSession(c *gin.Context) {
	id, err := s.registry.Create()
	if err != nil {
		if errors.Is(err, ErrTooManySessions) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Too many active sessions"})
			return
		}
		s.logger.Error(c.Request.Context(), "Failed to create session", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.registry.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// session looks up the path session, writing 404 when absent
func (s *Server) session(c *gin.Context) (*session, bool) {
	sess, err := s.registry.get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return sess, true
}

func bindMessage(c *gin.Context) (MessageRequest, bool) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return req, false
	}
	return req, true
}

func (s *Server) sendMessage(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	req, ok := bindMessage(c)
	if !ok {
		return
	}

	sess.mu.Lock()
	resp := sess.bot.Chat(c.Request.Context(), req.Content)
	sess.mu.Unlock()

	c.JSON(http.StatusOK, resp)
}

// streamMessage sends one SSE "message" event per fragment, then a "done"
// event carrying the response. A client that goes away abandons the turn.
func (s *Server) streamMessage(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	req, ok := bindMessage(c)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx := c.Request.Context()
	stream := sess.bot.ChatStream(ctx, req.Content)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for fragment := range stream.Fragments() {
		if ctx.Err() != nil {
			break
		}
		c.SSEvent("message", fragment)
		c.Writer.Flush()
	}

	if resp := stream.Response(); resp != nil {
		c.SSEvent("done", resp)
		c.Writer.Flush()
	}
}

func (s *Server) getHistory(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	sess.mu.Lock()
	history := sess.bot.History()
	sess.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"messages": history})
}

func (s *Server) clearHistory(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	sess.mu.Lock()
	sess.bot.ClearHistory(c.Request.Context())
	sess.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "History cleared"})
}
