package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/repository"
	"github.com/segyhp/jaryq-library/internal/saga"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
	"github.com/segyhp/jaryq-library/pkg/utils"
	"github.com/segyhp/jaryq-library/pkg/validation"
)

// LoanService coordinates the loan lifecycle across the loan store, the
// books service and the members service.
type LoanService struct {
	LoanRepo repository.LoanRepository
	books    BooksClient
	members  MembersClient
	emitter  EventEmitter
	validate *validator.Validate
	clock    clock.Clock
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	books BooksClient,
	members MembersClient,
	emitter EventEmitter,
	clk clock.Clock,
) *LoanService {
	return &LoanService{
		LoanRepo: loanRepo,
		books:    books,
		members:  members,
		emitter:  emitter,
		validate: validation.New(),
		clock:    clk,
	}
}

// FetchByBook lists every loan of a book as flattened views
func (s *LoanService) FetchByBook(ctx context.Context, bookISBN string) ([]domain.LoanView, error) {
	if err := s.check(domain.BookQuery{BookISBN: bookISBN}); err != nil {
		return nil, err
	}

	loans, err := s.LoanRepo.FindByBook(ctx, bookISBN)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return s.views(ctx, loans)
}

// FetchByMember lists every loan of a member as flattened views
func (s *LoanService) FetchByMember(ctx context.Context, memberIIN string) ([]domain.LoanView, error) {
	if err := s.check(domain.MemberQuery{MemberIIN: memberIIN}); err != nil {
		return nil, err
	}

	loans, err := s.LoanRepo.FindByMember(ctx, memberIIN)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return s.views(ctx, loans)
}

// CreateLoan borrows a book for a member for LoanPeriodDays. The inventory
// decrement is undone when the loan cannot be recorded.
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.LoanRequest) (*domain.LoanDetails, error) {
	if err := s.check(request); err != nil {
		return nil, err
	}

	isbn, iin := request.BookISBN, request.MemberIIN

	// 1. One active loan per book. The partial unique index on loans closes
	// the race this check leaves open.
	active, err := s.LoanRepo.ExistsActiveForBook(ctx, isbn)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if active {
		return nil, customError.WrapAlreadyBorrowed(isbn, iin)
	}

	now := s.clock.Now()
	loanDate := utils.StartOfDay(now)
	loan := &domain.Loan{
		ID:        uuid.New(),
		BookISBN:  isbn,
		MemberIIN: iin,
		LoanDate:  loanDate,
		DueDate:   utils.AddDays(loanDate, domain.LoanPeriodDays),
		Status:    domain.LoanStatusBorrowed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var book *domain.Book
	var member *domain.Member

	err = saga.New("create-loan",
		saga.Step{
			Name: "take-copy",
			Action: func(ctx context.Context) error {
				ok, err := s.books.LoanBook(ctx, isbn)
				if err != nil {
					return customError.WrapInventoryUnavailable(isbn, iin, err)
				}
				if !ok {
					return customError.WrapNoCopiesAvailable(isbn, iin)
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.putCopyBack(ctx, isbn)
			},
		},
		saga.Step{
			Name: "resolve-views",
			Action: func(ctx context.Context) (err error) {
				book, member, err = s.resolve(ctx, isbn, iin)
				return err
			},
		},
		saga.Step{
			Name: "insert-loan",
			Action: func(ctx context.Context) error {
				return storeError(s.LoanRepo.Create(ctx, loan))
			},
		},
	).Run(ctx)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, domain.TopicLoanCreated, domain.NewLoanMessage(loan, book, member))

	slog.InfoContext(ctx, "loan created",
		"loan_id", loan.ID,
		"book_isbn", isbn,
		"member_iin", iin,
		"due_date", loan.DueDate.Format("2006-01-02"),
	)

	return domain.NewLoanDetails(loan, book, member), nil
}

// ReturnBook closes the active loan of (book, member) and puts the copy back
// in stock. The loan is restored when the books service cannot be reached.
func (s *LoanService) ReturnBook(ctx context.Context, request *domain.LoanRequest) (*domain.LoanDetails, error) {
	if err := s.check(request); err != nil {
		return nil, err
	}

	isbn, iin := request.BookISBN, request.MemberIIN
	var loan *domain.Loan

	err := saga.New("return-book",
		saga.Step{
			Name: "mark-returned",
			Action: func(ctx context.Context) error {
				return s.LoanRepo.WithTx(ctx, func(ctx context.Context) error {
					found, err := s.findActive(ctx, isbn, iin)
					if err != nil {
						return err
					}

					today := utils.StartOfDay(s.clock.Now())
					found.ReturnDate = &today
					found.Status = domain.LoanStatusReturned
					if err := s.LoanRepo.Update(ctx, found); err != nil {
						return customError.WrapDatabaseError(err)
					}

					loan = found
					return nil
				})
			},
			Compensate: func(ctx context.Context) error {
				restored := *loan
				restored.ReturnDate = nil
				restored.Status = domain.LoanStatusBorrowed
				return s.LoanRepo.Update(ctx, &restored)
			},
		},
		saga.Step{
			Name: "put-copy-back",
			Action: func(ctx context.Context) error {
				ok, err := s.books.ReturnBook(ctx, isbn)
				if err != nil {
					return err
				}
				if !ok {
					slog.WarnContext(ctx, "books service refused return, stock left unchanged",
						"book_isbn", isbn,
						"member_iin", iin,
					)
				}
				return nil
			},
		},
	).Run(ctx)
	if err != nil {
		return nil, err
	}

	book, member, err := s.resolve(ctx, isbn, iin)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "book returned", "loan_id", loan.ID, "book_isbn", isbn, "member_iin", iin)

	return domain.NewLoanDetails(loan, book, member), nil
}

// ExtendLoan pushes the due date back by LoanPeriodDays. Only allowed on
// the due date itself.
func (s *LoanService) ExtendLoan(ctx context.Context, request *domain.LoanRequest) (*domain.LoanDetails, error) {
	if err := s.check(request); err != nil {
		return nil, err
	}

	isbn, iin := request.BookISBN, request.MemberIIN
	var loan *domain.Loan

	err := s.LoanRepo.WithTx(ctx, func(ctx context.Context) error {
		found, err := s.findActive(ctx, isbn, iin)
		if err != nil {
			return err
		}

		if !utils.SameDay(s.clock.Now(), found.DueDate) {
			return customError.WrapNotExtensible(isbn, iin)
		}

		found.DueDate = utils.AddDays(found.DueDate, domain.LoanPeriodDays)
		if err := s.LoanRepo.Update(ctx, found); err != nil {
			return customError.WrapDatabaseError(err)
		}

		loan = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	book, member, err := s.resolve(ctx, isbn, iin)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "loan extended",
		"loan_id", loan.ID,
		"book_isbn", isbn,
		"member_iin", iin,
		"due_date", loan.DueDate.Format("2006-01-02"),
	)

	return domain.NewLoanDetails(loan, book, member), nil
}

// UpdateCommunicationStatus records that the member was notified about a loan
func (s *LoanService) UpdateCommunicationStatus(ctx context.Context, ack domain.LoanCommunication) error {
	updated, err := s.LoanRepo.MarkCommunicated(ctx, ack.BookISBN, ack.MemberIIN)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if !updated {
		return customError.WrapLoanNotFound(ack.BookISBN, ack.MemberIIN)
	}
	return nil
}

func (s *LoanService) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return customError.WrapValidation(errors.New(validation.Message(err)))
	}
	return nil
}

func (s *LoanService) findActive(ctx context.Context, isbn, iin string) (*domain.Loan, error) {
	loan, err := s.LoanRepo.FindActive(ctx, isbn, iin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(isbn, iin)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

// resolve fetches the book and member a loan refers to. Absent entities are
// NOT_FOUND; unreachable services are DEPENDENCY_UNAVAILABLE.
func (s *LoanService) resolve(ctx context.Context, isbn, iin string) (*domain.Book, *domain.Member, error) {
	book, err := s.books.FetchBook(ctx, isbn)
	if err != nil {
		return nil, nil, err
	}
	if book == nil {
		return nil, nil, customError.WrapNotFound("Book", "isbn", isbn)
	}

	member, err := s.members.FetchByIIN(ctx, iin)
	if err != nil {
		return nil, nil, err
	}
	if member == nil {
		return nil, nil, customError.WrapNotFound("Member", "iin", iin)
	}

	return book, member, nil
}

func (s *LoanService) views(ctx context.Context, loans []*domain.Loan) ([]domain.LoanView, error) {
	books := make(map[string]*domain.Book)
	members := make(map[string]*domain.Member)
	views := make([]domain.LoanView, 0, len(loans))

	for _, loan := range loans {
		book, ok := books[loan.BookISBN]
		member, ok2 := members[loan.MemberIIN]
		if !ok || !ok2 {
			var err error
			book, member, err = s.resolve(ctx, loan.BookISBN, loan.MemberIIN)
			if err != nil {
				return nil, err
			}
			books[loan.BookISBN] = book
			members[loan.MemberIIN] = member
		}

		views = append(views, domain.NewLoanView(loan, book, member))
	}

	return views, nil
}

func (s *LoanService) putCopyBack(ctx context.Context, isbn string) error {
	ok, err := s.books.ReturnBook(ctx, isbn)
	if err != nil {
		return err
	}
	if !ok {
		slog.WarnContext(ctx, "books service refused to restock after failed loan", "book_isbn", isbn)
	}
	return nil
}

// storeError keeps business errors raised by the store and wraps the rest
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}
	return customError.WrapDatabaseError(err)
}
