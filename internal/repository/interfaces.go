package repository

import (
	"context"
	"time"

	"github.com/segyhp/jaryq-library/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// WithTx runs fn in a transaction carried by the context it receives
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Create inserts a loan. A second BORROWED loan for the same book fails
	// with ALREADY_BORROWED.
	Create(ctx context.Context, loan *domain.Loan) error

	// Update persists due date, return date and status of a loan
	Update(ctx context.Context, loan *domain.Loan) error

	// ExistsActiveForBook reports whether the book has a BORROWED loan
	ExistsActiveForBook(ctx context.Context, bookISBN string) (bool, error)

	// FindByBook lists every loan of a book, oldest first
	FindByBook(ctx context.Context, bookISBN string) ([]*domain.Loan, error)

	// FindByMember lists every loan of a member, oldest first
	FindByMember(ctx context.Context, memberIIN string) ([]*domain.Loan, error)

	// FindActive returns the BORROWED loan of (book, member), locking the row
	// when called inside WithTx. Returns sql.ErrNoRows when there is none.
	FindActive(ctx context.Context, bookISBN, memberIIN string) (*domain.Loan, error)

	// FindDueOn lists BORROWED loans whose due date is the given day
	FindDueOn(ctx context.Context, day time.Time) ([]*domain.Loan, error)

	// MarkCommunicated sets communication_sent on the latest loan of (book, member)
	MarkCommunicated(ctx context.Context, bookISBN, memberIIN string) (bool, error)
}

// BookRepository defines the interface for book data operations
type BookRepository interface {
	FindByISBN(ctx context.Context, isbn string) (*domain.Book, error)

	Create(ctx context.Context, book *domain.Book) error

	// DecrementAvailable takes one copy out of stock. It returns false when no
	// copy is available or the book is unknown.
	DecrementAvailable(ctx context.Context, isbn string) (bool, error)

	// IncrementAvailable puts one copy back. It returns false when all copies
	// are already in stock or the book is unknown.
	IncrementAvailable(ctx context.Context, isbn string) (bool, error)

	// Update replaces the details of the book with book.ISBN. It returns
	// false when the book is unknown.
	Update(ctx context.Context, book *domain.Book) (bool, error)

	Delete(ctx context.Context, isbn string) (bool, error)
}

// MemberRepository defines the interface for member data operations
type MemberRepository interface {
	FindByCardNumber(ctx context.Context, cardNumber string) (*domain.Member, error)

	FindByIIN(ctx context.Context, iin string) (*domain.Member, error)

	ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error)

	Create(ctx context.Context, member *domain.Member) error

	// MarkCommunicated sets communication_status of the member
	MarkCommunicated(ctx context.Context, iin string) (bool, error)

	// Update rewrites name and contact details of the member with
	// member.IIN. Card number and communication status are kept.
	Update(ctx context.Context, member *domain.Member) (bool, error)

	DeleteByCardNumber(ctx context.Context, cardNumber string) (bool, error)

	DeleteByIIN(ctx context.Context, iin string) (bool, error)
}
