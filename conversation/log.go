package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Class is the presentation tag for entries of this role.
func (r Role) Class() string {
	return "chat-message " + string(r)
}

type Entry struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Renderer displays entries as they are appended.
type Renderer interface {
	Render(Entry)
}

// Log is the append-only conversation. Entries are never edited or removed.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	renderer Renderer
}

// NewLog returns an empty log. A nil renderer only records.
func NewLog(renderer Renderer) *Log {
	return &Log{renderer: renderer}
}

func (l *Log) ShowUserTurn(text string) Entry {
	return l.append(RoleUser, text)
}

func (l *Log) ShowAssistantTurn(text string) Entry {
	return l.append(RoleAssistant, text)
}

// Rendering happens under the lock so display order matches log order.
func (l *Log) append(role Role, text string) Entry {
	e := Entry{
		ID:   uuid.New(),
		Role: role,
		Text: text,
		At:   time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if l.renderer != nil {
		l.renderer.Render(e)
	}
	return e
}

// Entries returns a copy of the log in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
