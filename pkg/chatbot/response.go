package chatbot

import "github.com/run-bigpig/healthchat/pkg/safety"

// ChatResponse is the outcome of one exchange
type ChatResponse struct {
	Content      string           `json:"content"`
	Success      bool             `json:"success"`
	RiskLevel    safety.RiskLevel `json:"risk_level"`
	Flags        safety.Flags     `json:"flags"`
	WasFiltered  bool             `json:"was_filtered"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

func failure(content string, err error) *ChatResponse {
	resp := &ChatResponse{
		Content:   content,
		Success:   false,
		RiskLevel: safety.RiskLow,
		Flags:     safety.Flags{},
	}
	if err != nil {
		resp.ErrorMessage = err.Error()
	}
	return resp
}
