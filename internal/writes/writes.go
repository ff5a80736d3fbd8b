// Package writes persists the user actions that sit behind the abuse guard:
// job proposals and chat messages.
package writes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/freelamatch/internal/validate"
)

// Validation limits, in characters.
const (
	MaxProposalMessageLength = validate.MaxProposalMessageLength
	MaxMessageTextLength     = validate.MaxMessageTextLength
	MaxDurationLength        = validate.MaxDurationLength
)

// Sentinel errors.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrReferenceAbsent = errors.New("referenced record does not exist")
)

// ProposalStatusSent is the status of a freshly submitted proposal.
const ProposalStatusSent = "ENVIADA"

// Proposal is a freelancer's offer on a job.
type Proposal struct {
	ID           string    `json:"id"`
	JobID        string    `json:"jobId"`
	FreelancerID string    `json:"freelaId"`
	Message      string    `json:"message"`
	Price        *float64  `json:"price,omitempty"`
	Duration     *string   `json:"duration,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Validate checks the caller supplied fields.
func (p *Proposal) Validate() error {
	if _, err := validate.Identifier(p.JobID); err != nil {
		return fmt.Errorf("%w: jobId: %w", ErrInvalidInput, err)
	}
	if _, err := validate.ProposalMessage(p.Message); err != nil {
		return fmt.Errorf("%w: message: %w", ErrInvalidInput, err)
	}
	if p.Price != nil && *p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if p.Duration != nil {
		if _, err := validate.Duration(*p.Duration); err != nil {
			return fmt.Errorf("%w: duration: %w", ErrInvalidInput, err)
		}
	}
	return nil
}

// Message is one chat message inside a thread.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the caller supplied fields.
func (m *Message) Validate() error {
	if _, err := validate.Identifier(m.ThreadID); err != nil {
		return fmt.Errorf("%w: threadId: %w", ErrInvalidInput, err)
	}
	if _, err := validate.MessageText(m.Text); err != nil {
		return fmt.Errorf("%w: text: %w", ErrInvalidInput, err)
	}
	return nil
}

// Store persists proposals and messages. Implementations assign ID,
// CreatedAt and (for proposals) Status, and return the stored row.
type Store interface {
	CreateProposal(ctx context.Context, p Proposal) (*Proposal, error)
	CreateMessage(ctx context.Context, m Message) (*Message, error)
}
