package storage

import "context"

// Storage is the durable home of program start dates. Dates travel as
// YYYY-MM-DD strings; interpreting them is the caller's job.
type Storage interface {
	GetStartDate(ctx context.Context, conversationID string) (string, bool, error)
	SaveStartDate(ctx context.Context, conversationID, date string) error
	Close() error
}

// Lister is implemented by backends that can enumerate known conversations.
type Lister interface {
	ListConversations(ctx context.Context) ([]string, error)
}
