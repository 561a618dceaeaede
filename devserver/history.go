package devserv

import "time"

// systemPrompt opens every conversation history.
const systemPrompt = `You are Veloce AI, Volkswagen's intelligent vehicle assistant. You help users with:
- Vehicle information and status
- Voice commands for vehicle controls

Always maintain a helpful, professional tone focusing on Volkswagen vehicles and their features.`

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

// ChatMessage is one turn of the backend's conversation history.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func newHistory() []ChatMessage {
	return []ChatMessage{{Role: roleSystem, Content: systemPrompt, Timestamp: time.Now()}}
}

// respond answers transcript and records both turns. Exchanges are
// serialized so the history alternates user and assistant.
func (s *Server) respond(transcript string) string {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()

	now := time.Now()
	answer := s.responder.Respond(transcript)
	s.history = append(s.history,
		ChatMessage{Role: roleUser, Content: transcript, Timestamp: now},
		ChatMessage{Role: roleAssistant, Content: answer, Timestamp: time.Now()},
	)
	return answer
}

// History returns a copy of the conversation, system prompt first.
func (s *Server) History() []ChatMessage {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	out := make([]ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}
