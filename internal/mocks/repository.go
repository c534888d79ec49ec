package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/segyhp/jaryq-library/internal/domain"
)

type MockLoanRepository struct {
	mock.Mock
}

// WithTx runs fn directly; no expectation needs to be set for it.
func (m *MockLoanRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) ExistsActiveForBook(ctx context.Context, bookISBN string) (bool, error) {
	args := m.Called(ctx, bookISBN)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoanRepository) FindByBook(ctx context.Context, bookISBN string) ([]*domain.Loan, error) {
	args := m.Called(ctx, bookISBN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) FindByMember(ctx context.Context, memberIIN string) ([]*domain.Loan, error) {
	args := m.Called(ctx, memberIIN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) FindActive(ctx context.Context, bookISBN, memberIIN string) (*domain.Loan, error) {
	args := m.Called(ctx, bookISBN, memberIIN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) FindDueOn(ctx context.Context, day time.Time) ([]*domain.Loan, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) MarkCommunicated(ctx context.Context, bookISBN, memberIIN string) (bool, error) {
	args := m.Called(ctx, bookISBN, memberIIN)
	return args.Bool(0), args.Error(1)
}

type MockBookRepository struct {
	mock.Mock
}

func (m *MockBookRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	args := m.Called(ctx, isbn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Book), args.Error(1)
}

func (m *MockBookRepository) Create(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *MockBookRepository) DecrementAvailable(ctx context.Context, isbn string) (bool, error) {
	args := m.Called(ctx, isbn)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookRepository) IncrementAvailable(ctx context.Context, isbn string) (bool, error) {
	args := m.Called(ctx, isbn)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookRepository) Update(ctx context.Context, book *domain.Book) (bool, error) {
	args := m.Called(ctx, book)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookRepository) Delete(ctx context.Context, isbn string) (bool, error) {
	args := m.Called(ctx, isbn)
	return args.Bool(0), args.Error(1)
}

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) FindByCardNumber(ctx context.Context, cardNumber string) (*domain.Member, error) {
	args := m.Called(ctx, cardNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) FindByIIN(ctx context.Context, iin string) (*domain.Member, error) {
	args := m.Called(ctx, iin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error) {
	args := m.Called(ctx, cardNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberRepository) Create(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberRepository) MarkCommunicated(ctx context.Context, iin string) (bool, error) {
	args := m.Called(ctx, iin)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberRepository) Update(ctx context.Context, member *domain.Member) (bool, error) {
	args := m.Called(ctx, member)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberRepository) DeleteByCardNumber(ctx context.Context, cardNumber string) (bool, error) {
	args := m.Called(ctx, cardNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberRepository) DeleteByIIN(ctx context.Context, iin string) (bool, error) {
	args := m.Called(ctx, iin)
	return args.Bool(0), args.Error(1)
}
