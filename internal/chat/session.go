package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Roles of chat messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Greeting is the first message of every conversation.
const Greeting = `👋 Hi! I'm your sustainability analysis assistant. I can help you understand companies' ESG (Environmental, Social, Governance) performance.

**Just talk to me naturally! I can:**
✅ **Analyze companies**: "Check out Tesla"
✅ **Compare**: "Compare Tesla and Apple"
✅ **Get scores**: "What's Tesla's environmental score?"
✅ **Ask questions**: "How does Tesla handle carbon emissions?" (I'll use scraped data!)
✅ **Find strengths**: "What is Apple good at?"
✅ **Get details**: "Tell me more about Microsoft"
✅ **Download reports**: "Download a report for Tesla"
✅ **Manage**: "Delete Tesla", "List companies" or "Clear everything"

I use real web data and AI to answer your questions! 🚀`

// Message is one entry of a conversation.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
	// Files lists report files produced by this message, if any.
	Files []string `json:"files,omitempty"`
}

// Session is one conversation. It serializes turns so a session handles
// one message at a time.
type Session struct {
	ID string

	turn sync.Mutex // held for a whole turn

	mu       sync.Mutex
	messages []Message
	now      func() time.Time
}

// NewSession starts a conversation with the greeting.
func NewSession() *Session {
	s := &Session{ID: uuid.NewString(), now: time.Now}
	s.reset()
	return s
}

// Messages returns a copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) add(m Message) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.At.IsZero() {
		m.At = s.now().UTC()
	}
	s.messages = append(s.messages, m)
	return m
}

// reset keeps only the greeting.
func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []Message{{Role: RoleAssistant, Content: Greeting, At: s.now().UTC()}}
}

// Session registry defaults.
const (
	DefaultSessionIdle = 2 * time.Hour
	DefaultMaxSessions = 1000
)

// Sessions holds live sessions by id. A session unused for the idle window
// expires, and the least recently used one is evicted once the registry is
// full.
type Sessions struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Session]
}

// NewSessions returns an empty registry holding at most size sessions, each
// kept for idle since its last use. Non-positive values use the defaults.
func NewSessions(size int, idle time.Duration) *Sessions {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &Sessions{cache: expirable.NewLRU[string, *Session](size, nil, idle)}
}

// Get returns the session for id, creating a new one when id is empty,
// unknown or expired. Either way the session's idle timer restarts.
func (r *Sessions) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.cache.Get(id)
	if !ok {
		s = NewSession()
	}
	r.cache.Add(s.ID, s)
	return s
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	return r.cache.Len()
}
