package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vidsage/vidsage/internal/index"
	"github.com/vidsage/vidsage/internal/model"
)

const maxHistoryTurns = 50

// Session holds the per-conversation state: the retrieval index built for
// the loaded source, its summary artifact and the bounded chat history. The
// index is owned by the session and never shared across sessions.
type Session struct {
	ID        string
	SourceKey string
	Summary   model.SummaryArtifact

	mu      sync.Mutex
	idx     *index.VectorIndex
	history []model.ChatTurn
}

// Index returns the retrieval index, nil when the session has no loaded
// source yet.
func (s *Session) Index() *index.VectorIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// History returns a copy of the turn history, oldest first.
func (s *Session) History() []model.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}

// AppendExchange records one completed question/answer exchange, trimming
// the history to the most recent turns.
func (s *Session) AppendExchange(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		model.ChatTurn{Role: model.RoleUser, Content: question},
		model.ChatTurn{Role: model.RoleAssistant, Content: answer},
	)
	if len(s.history) > maxHistoryTurns {
		s.history = append([]model.ChatTurn(nil), s.history[len(s.history)-maxHistoryTurns:]...)
	}
}

// Manager tracks live sessions in an expirable LRU so abandoned sessions
// and their indexes drop out on their own.
type Manager struct {
	sessions *expirable.LRU[string, *Session]
}

func NewManager(maxSessions int, ttl time.Duration) *Manager {
	if maxSessions <= 0 {
		maxSessions = 256
	}
	return &Manager{
		sessions: expirable.NewLRU[string, *Session](maxSessions, nil, ttl),
	}
}

// Create registers a new session for a loaded source and returns it.
func (m *Manager) Create(sourceKey string, idx *index.VectorIndex, summary model.SummaryArtifact) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		SourceKey: sourceKey,
		Summary:   summary,
		idx:       idx,
	}
	m.sessions.Add(s.ID, s)
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	return m.sessions.Get(id)
}

func (m *Manager) Remove(id string) {
	m.sessions.Remove(id)
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}
