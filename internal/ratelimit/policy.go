package ratelimit

import "time"

// Policy names used as metric labels.
const (
	PolicyNameProposal = "proposal"
	PolicyNameMessage  = "message"
)

// proposalPolicy allows 5 proposals per user per day.
var proposalPolicy = Policy{
	Name:           PolicyNameProposal,
	MaxTokens:      5,
	RefillInterval: 24 * time.Hour,
	RefillAmount:   5,
}

// messagePolicy allows 10 messages per thread and user per minute.
var messagePolicy = Policy{
	Name:           PolicyNameMessage,
	MaxTokens:      10,
	RefillInterval: time.Minute,
	RefillAmount:   10,
}

// ProposalPolicy returns a copy of the proposal submission policy.
func ProposalPolicy() Policy {
	return proposalPolicy
}

// MessagePolicy returns a copy of the chat message policy.
func MessagePolicy() Policy {
	return messagePolicy
}
