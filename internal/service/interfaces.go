package service

import (
	"context"

	"github.com/segyhp/jaryq-library/internal/domain"
)

// BooksClient is the loans service's view of the books service. Fetches
// return nil when the book does not exist.
type BooksClient interface {
	FetchBook(ctx context.Context, isbn string) (*domain.Book, error)
	LoanBook(ctx context.Context, isbn string) (bool, error)
	ReturnBook(ctx context.Context, isbn string) (bool, error)
}

// MembersClient is the loans service's view of the members service
type MembersClient interface {
	FetchByIIN(ctx context.Context, iin string) (*domain.Member, error)
}

// EventEmitter publishes domain events without blocking the caller
type EventEmitter interface {
	Emit(ctx context.Context, topic string, payload interface{})
}
