package usecase

import (
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

// Registry holds the active sessions and the identities they reserve.
type Registry interface {
	// Create registers the session and reserves its identities in one step.
	Create(session *Session) error
	Lookup(matchID string) (*Session, bool)
	// Remove releases the match id and its identities; ok is false when it was not registered.
	Remove(matchID string) (*Session, bool)
	Len() int
}

type memoryRegistry struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	identities map[string]string
}

func NewRegistry() Registry {
	return &memoryRegistry{
		sessions:   make(map[string]*Session),
		identities: make(map[string]string),
	}
}

func (that *memoryRegistry) Create(session *Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.sessions[session.ID]; ok {
		return fmt.Errorf("%w: %s", apperror.ErrDuplicateMatch, session.ID)
	}

	for _, identity := range session.Identities() {
		if _, ok := that.identities[identity]; ok {
			return fmt.Errorf("%w: %s", apperror.ErrDuplicateIdentity, identity)
		}
	}

	that.sessions[session.ID] = session
	for _, identity := range session.Identities() {
		that.identities[identity] = session.ID
	}

	return nil
}

func (that *memoryRegistry) Lookup(matchID string) (*Session, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[matchID]

	return session, ok
}

func (that *memoryRegistry) Remove(matchID string) (*Session, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[matchID]
	if !ok {
		return nil, false
	}

	delete(that.sessions, matchID)
	for _, identity := range session.Identities() {
		if that.identities[identity] == matchID {
			delete(that.identities, identity)
		}
	}

	return session, true
}

func (that *memoryRegistry) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.sessions)
}
