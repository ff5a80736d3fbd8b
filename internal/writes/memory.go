package writes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a Store for tests and local runs.
type InMemoryStore struct {
	mu        sync.Mutex
	proposals []Proposal
	messages  []Message
	now       func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

// CreateProposal implements Store.
func (s *InMemoryStore) CreateProposal(ctx context.Context, p Proposal) (*Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ID = uuid.New().String()
	p.Status = ProposalStatusSent
	p.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.proposals = append(s.proposals, p)
	s.mu.Unlock()
	return &p, nil
}

// CreateMessage implements Store.
func (s *InMemoryStore) CreateMessage(ctx context.Context, m Message) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.ID = uuid.New().String()
	m.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	return &m, nil
}

// Proposals returns a copy of the stored proposals in insertion order.
func (s *InMemoryStore) Proposals() []Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Proposal(nil), s.proposals...)
}

// Messages returns a copy of the stored messages in insertion order.
func (s *InMemoryStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}
