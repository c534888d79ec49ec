package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/mocks"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
	"github.com/segyhp/jaryq-library/pkg/utils"
)

const (
	testISBN = "9780141182636"
	testIIN  = "180100586526"
)

var almaty = time.FixedZone("ALMT", 5*60*60)

// memLoanRepo is an in-memory loan store that enforces one BORROWED loan per
// book the way the partial unique index does.
type memLoanRepo struct {
	mu        sync.Mutex
	loans     []*domain.Loan
	createErr error
	updateErr error
}

func (r *memLoanRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *memLoanRepo) Create(ctx context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	if r.activeFor(loan.BookISBN, "") != nil {
		return customError.WrapAlreadyBorrowed(loan.BookISBN, loan.MemberIIN)
	}

	stored := *loan
	r.loans = append(r.loans, &stored)
	return nil
}

func (r *memLoanRepo) Update(ctx context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}
	for i, l := range r.loans {
		if l.ID == loan.ID {
			stored := *loan
			r.loans[i] = &stored
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *memLoanRepo) ExistsActiveForBook(ctx context.Context, bookISBN string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeFor(bookISBN, "") != nil, nil
}

func (r *memLoanRepo) FindByBook(ctx context.Context, bookISBN string) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool { return l.BookISBN == bookISBN }), nil
}

func (r *memLoanRepo) FindByMember(ctx context.Context, memberIIN string) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool { return l.MemberIIN == memberIIN }), nil
}

func (r *memLoanRepo) FindActive(ctx context.Context, bookISBN, memberIIN string) (*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l := r.activeFor(bookISBN, memberIIN); l != nil {
		found := *l
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (r *memLoanRepo) FindDueOn(ctx context.Context, day time.Time) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool {
		return l.Status == domain.LoanStatusBorrowed && utils.SameDay(l.DueDate, day)
	}), nil
}

func (r *memLoanRepo) MarkCommunicated(ctx context.Context, bookISBN, memberIIN string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.loans) - 1; i >= 0; i-- {
		if r.loans[i].BookISBN == bookISBN && r.loans[i].MemberIIN == memberIIN {
			r.loans[i].CommunicationSent = true
			return true, nil
		}
	}
	return false, nil
}

func (r *memLoanRepo) activeFor(bookISBN, memberIIN string) *domain.Loan {
	for _, l := range r.loans {
		if l.BookISBN == bookISBN && l.Status == domain.LoanStatusBorrowed &&
			(memberIIN == "" || l.MemberIIN == memberIIN) {
			return l
		}
	}
	return nil
}

func (r *memLoanRepo) filter(keep func(*domain.Loan) bool) []*domain.Loan {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Loan, 0)
	for _, l := range r.loans {
		if keep(l) {
			c := *l
			out = append(out, &c)
		}
	}
	return out
}

func (r *memLoanRepo) borrowedCount(bookISBN string) int {
	n := 0
	for _, l := range r.filter(func(l *domain.Loan) bool { return l.BookISBN == bookISBN }) {
		if l.Status == domain.LoanStatusBorrowed {
			n++
		}
	}
	return n
}

type loanFixture struct {
	repo    *memLoanRepo
	books   *mocks.MockBooksClient
	members *mocks.MockMembersClient
	emitter *mocks.MockEmitter
	clock   *clock.Manual
	service *LoanService
}

func newLoanFixture() *loanFixture {
	f := &loanFixture{
		repo:    &memLoanRepo{},
		books:   &mocks.MockBooksClient{},
		members: &mocks.MockMembersClient{},
		emitter: &mocks.MockEmitter{},
		clock:   clock.NewManual(time.Date(2024, 3, 1, 10, 30, 0, 0, almaty)),
	}
	f.service = NewLoanService(f.repo, f.books, f.members, f.emitter, f.clock)
	return f
}

func (f *loanFixture) knowsBook(isbn string) {
	f.books.On("FetchBook", mock.Anything, isbn).Return(&domain.Book{
		Title:           "1984",
		Author:          "George Orwell",
		Genre:           "Dystopia",
		ISBN:            isbn,
		TotalCopies:     2,
		AvailableCopies: 1,
	}, nil)
}

func (f *loanFixture) knowsMember(iin string) {
	f.members.On("FetchByIIN", mock.Anything, iin).Return(&domain.Member{
		CardNumber:   "100000000042",
		FirstName:    "Aigerim",
		LastName:     "Sadykova",
		IIN:          iin,
		Email:        "aigerim@example.kz",
		MobileNumber: "+77011234567",
	}, nil)
}

// borrow creates a loan through the service with every collaborator healthy
func (f *loanFixture) borrow(t *testing.T, isbn, iin string) *domain.LoanDetails {
	t.Helper()
	f.books.On("LoanBook", mock.Anything, isbn).Return(true, nil).Once()
	f.emitter.On("Emit", mock.Anything, domain.TopicLoanCreated, mock.AnythingOfType("domain.LoanMessage")).Return().Once()

	details, err := f.service.CreateLoan(context.Background(), &domain.LoanRequest{BookISBN: isbn, MemberIIN: iin})
	require.NoError(t, err)
	return details
}

func TestCreateLoan_Success(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)

	details := f.borrow(t, testISBN, testIIN)

	assert.Equal(t, domain.LoanStatusBorrowed, details.Status)
	assert.Equal(t, domain.Date{Year: 2024, Month: time.March, Day: 1}, details.LoanDate)
	assert.Equal(t, details.LoanDate.AddDays(7), details.DueDate)
	assert.Nil(t, details.ReturnDate)
	assert.Equal(t, "1984", details.Book.Title)
	assert.Equal(t, "Aigerim Sadykova", details.Member.FullName)
	assert.Equal(t, "a*****@example.kz", details.Member.Email)
	assert.Equal(t, 1, f.repo.borrowedCount(testISBN))

	f.emitter.AssertCalled(t, "Emit", mock.Anything, domain.TopicLoanCreated, mock.MatchedBy(func(msg domain.LoanMessage) bool {
		return msg.BookISBN == testISBN && msg.MemberIIN == testIIN && msg.BookName == "1984" &&
			msg.MemberFullName == "Aigerim Sadykova" && msg.DueDate == details.DueDate
	}))
	f.books.AssertExpectations(t)
}

func TestCreateLoan_AlreadyBorrowed(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.borrow(t, testISBN, testIIN)

	_, err := f.service.CreateLoan(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: "990101300002"})

	assert.ErrorIs(t, err, customError.ErrAlreadyBorrowed)
	assert.Equal(t, 1, f.repo.borrowedCount(testISBN))
	f.books.AssertNumberOfCalls(t, "LoanBook", 1)
}

func TestCreateLoan_NoCopiesAvailable(t *testing.T) {
	f := newLoanFixture()
	f.books.On("LoanBook", mock.Anything, testISBN).Return(false, nil)

	_, err := f.service.CreateLoan(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	assert.ErrorIs(t, err, customError.ErrNoCopiesAvailable)
	assert.NotErrorIs(t, err, customError.ErrDependencyUnavailable)
	assert.Equal(t, customError.ErrCodeNoCopiesAvailable, businessCode(t, err))
	assert.Empty(t, f.repo.loans)
	f.books.AssertNotCalled(t, "ReturnBook", mock.Anything, mock.Anything)
	f.emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateLoan_InventoryUnavailableFallsBack(t *testing.T) {
	f := newLoanFixture()
	f.books.On("LoanBook", mock.Anything, testISBN).
		Return(false, customError.WrapDependencyUnavailable("Book", errors.New("circuit breaker is open")))

	_, err := f.service.CreateLoan(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	// still a no-copies failure, but distinguishable as an outage
	assert.ErrorIs(t, err, customError.ErrNoCopiesAvailable)
	assert.ErrorIs(t, err, customError.ErrDependencyUnavailable)
	assert.Equal(t, customError.ErrCodeDependencyUnavailable, businessCode(t, err))
	assert.Empty(t, f.repo.loans)
	f.emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateLoan_InsertFailurePutsCopyBack(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.repo.createErr = errors.New("connection reset")
	f.books.On("LoanBook", mock.Anything, testISBN).Return(true, nil)
	f.books.On("ReturnBook", mock.Anything, testISBN).Return(true, nil)

	_, err := f.service.CreateLoan(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	assert.ErrorIs(t, err, customError.ErrDatabase)
	f.books.AssertCalled(t, "ReturnBook", mock.Anything, testISBN)
	f.emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateLoan_UnknownMemberPutsCopyBack(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.members.On("FetchByIIN", mock.Anything, testIIN).Return(nil, nil)
	f.books.On("LoanBook", mock.Anything, testISBN).Return(true, nil)
	f.books.On("ReturnBook", mock.Anything, testISBN).Return(true, nil)

	_, err := f.service.CreateLoan(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	assert.ErrorIs(t, err, customError.ErrNotFound)
	assert.Empty(t, f.repo.loans)
	f.books.AssertCalled(t, "ReturnBook", mock.Anything, testISBN)
}

func TestCreateLoan_ValidationRejectsBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name    string
		request domain.LoanRequest
	}{
		{"short isbn", domain.LoanRequest{BookISBN: "978014118263", MemberIIN: testIIN}},
		{"letters in isbn", domain.LoanRequest{BookISBN: "97801411826AB", MemberIIN: testIIN}},
		{"oversize iin", domain.LoanRequest{BookISBN: testISBN, MemberIIN: "1801005865260"}},
		{"missing iin", domain.LoanRequest{BookISBN: testISBN}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoanFixture()

			_, err := f.service.CreateLoan(context.Background(), &tt.request)

			assert.ErrorIs(t, err, customError.ErrValidation)
			f.books.AssertNotCalled(t, "LoanBook", mock.Anything, mock.Anything)
		})
	}
}

func TestReturnBook_Success(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.borrow(t, testISBN, testIIN)
	f.clock.Advance(3 * 24 * time.Hour)
	f.books.On("ReturnBook", mock.Anything, testISBN).Return(true, nil).Once()

	details, err := f.service.ReturnBook(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})
	require.NoError(t, err)

	assert.Equal(t, domain.LoanStatusReturned, details.Status)
	require.NotNil(t, details.ReturnDate)
	assert.Equal(t, domain.DateOf(f.clock.Now()), *details.ReturnDate)
	assert.Equal(t, 0, f.repo.borrowedCount(testISBN))

	_, err = f.service.ReturnBook(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})
	assert.ErrorIs(t, err, customError.ErrNotFound)
	f.books.AssertNumberOfCalls(t, "ReturnBook", 1)
}

func TestReturnBook_RefusedRestockIsTolerated(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.borrow(t, testISBN, testIIN)
	f.books.On("ReturnBook", mock.Anything, testISBN).Return(false, nil)

	details, err := f.service.ReturnBook(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusReturned, details.Status)
}

func TestReturnBook_InventoryOutageRestoresLoan(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.borrow(t, testISBN, testIIN)
	f.books.On("ReturnBook", mock.Anything, testISBN).
		Return(false, customError.WrapDependencyUnavailable("Book", errors.New("timeout")))

	_, err := f.service.ReturnBook(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	assert.ErrorIs(t, err, customError.ErrDependencyUnavailable)
	loan, err := f.repo.FindActive(context.Background(), testISBN, testIIN)
	require.NoError(t, err)
	assert.Nil(t, loan.ReturnDate)
	assert.Equal(t, domain.LoanStatusBorrowed, loan.Status)
}

func TestReturnBook_UnknownLoan(t *testing.T) {
	f := newLoanFixture()

	_, err := f.service.ReturnBook(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	assert.ErrorIs(t, err, customError.ErrNotFound)
	f.books.AssertNotCalled(t, "ReturnBook", mock.Anything, mock.Anything)
}

func TestExtendLoan_OnDueDate(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	created := f.borrow(t, testISBN, testIIN)

	f.clock.Set(time.Date(2024, 3, 8, 18, 0, 0, 0, almaty))
	request := &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN}

	details, err := f.service.ExtendLoan(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", details.DueDate.Format("2006-01-02"))
	assert.Equal(t, created.DueDate.AddDays(7), details.DueDate)

	// the due date moved, so today no longer qualifies
	_, err = f.service.ExtendLoan(context.Background(), request)
	assert.ErrorIs(t, err, customError.ErrNotExtensible)
}

func TestExtendLoan_Boundary(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		ok    bool
	}{
		{"one day early", time.Date(2024, 3, 7, 23, 59, 0, 0, almaty), false},
		{"due date morning", time.Date(2024, 3, 8, 0, 0, 0, 0, almaty), true},
		{"due date evening", time.Date(2024, 3, 8, 23, 59, 0, 0, almaty), true},
		{"one day late", time.Date(2024, 3, 9, 0, 0, 0, 0, almaty), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoanFixture()
			f.knowsBook(testISBN)
			f.knowsMember(testIIN)
			f.borrow(t, testISBN, testIIN)
			f.clock.Set(tt.today)

			_, err := f.service.ExtendLoan(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, customError.ErrNotExtensible)
			}
		})
	}
}

func TestExtendLoan_DueDateReadBackAsUTC(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.repo.loans = []*domain.Loan{{
		BookISBN:  testISBN,
		MemberIIN: testIIN,
		LoanDate:  time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:    domain.LoanStatusBorrowed,
	}}

	details, err := f.service.ExtendLoan(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	require.NoError(t, err)
	assert.Equal(t, "2024-03-08", details.DueDate.Format("2006-01-02"))
}

func TestFetchByBook_IsIdempotent(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.borrow(t, testISBN, testIIN)

	first, err := f.service.FetchByBook(context.Background(), testISBN)
	require.NoError(t, err)
	second, err := f.service.FetchByBook(context.Background(), testISBN)
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, "100000000042", first[0].CardNumber)
	assert.Equal(t, "1984", first[0].Title)
	assert.Equal(t, 1, f.repo.borrowedCount(testISBN))
}

func TestLoanDates_RenderSameAfterReadBack(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	created := f.borrow(t, testISBN, testIIN)

	// DATE columns come back as UTC midnight
	stored := f.repo.loans[0]
	stored.LoanDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	stored.DueDate = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	views, err := f.service.FetchByBook(context.Background(), testISBN)
	require.NoError(t, err)
	require.Len(t, views, 1)

	createdJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(created)
	require.NoError(t, err)
	fetchedJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(views[0])
	require.NoError(t, err)

	assert.Contains(t, string(createdJSON), `"loanDate":"2024-03-01","dueDate":"2024-03-08"`)
	assert.Contains(t, string(fetchedJSON), `"loanDate":"2024-03-01","dueDate":"2024-03-08"`)
	assert.Equal(t, created.LoanDate, views[0].LoanDate)
	assert.Equal(t, created.DueDate, views[0].DueDate)
}

func TestFetchByMember_MissingBookIsNotFound(t *testing.T) {
	f := newLoanFixture()
	f.knowsMember(testIIN)
	f.books.On("FetchBook", mock.Anything, testISBN).Return(nil, nil)
	f.repo.loans = []*domain.Loan{{BookISBN: testISBN, MemberIIN: testIIN, Status: domain.LoanStatusReturned}}

	_, err := f.service.FetchByMember(context.Background(), testIIN)

	assert.ErrorIs(t, err, customError.ErrNotFound)
}

func TestFetchByMember_Empty(t *testing.T) {
	f := newLoanFixture()

	views, err := f.service.FetchByMember(context.Background(), testIIN)

	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRemindDueToday(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.books.On("FetchBook", mock.Anything, "9780000000001").Return(&domain.Book{ISBN: "9780000000001"}, nil).Once()
	f.borrow(t, testISBN, testIIN)
	f.borrow(t, "9780000000001", testIIN)

	// the second book disappeared from the catalogue since it was borrowed
	f.clock.Set(time.Date(2024, 3, 8, 9, 0, 0, 0, almaty))
	f.books.On("FetchBook", mock.Anything, "9780000000001").Return(nil, nil)
	f.emitter.On("Emit", mock.Anything, domain.TopicLoanDue, mock.AnythingOfType("domain.LoanMessage")).Return()

	sent, err := f.service.RemindDueToday(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	f.emitter.AssertNumberOfCalls(t, "Emit", 3)
}

func TestUpdateCommunicationStatus(t *testing.T) {
	f := newLoanFixture()
	f.knowsBook(testISBN)
	f.knowsMember(testIIN)
	f.borrow(t, testISBN, testIIN)

	err := f.service.UpdateCommunicationStatus(context.Background(), domain.LoanCommunication{BookISBN: testISBN, MemberIIN: testIIN})
	require.NoError(t, err)
	assert.True(t, f.repo.loans[0].CommunicationSent)

	err = f.service.UpdateCommunicationStatus(context.Background(), domain.LoanCommunication{BookISBN: testISBN, MemberIIN: "000000000000"})
	assert.ErrorIs(t, err, customError.ErrNotFound)
}

func TestLoanService_WithMockRepository(t *testing.T) {
	repo := &mocks.MockLoanRepository{}
	books := &mocks.MockBooksClient{}
	service := NewLoanService(repo, books, &mocks.MockMembersClient{}, &mocks.MockEmitter{}, clock.NewManual(time.Now()))

	repo.On("ExistsActiveForBook", mock.Anything, testISBN).Return(false, errors.New("db down"))

	_, err := service.CreateLoan(context.Background(), &domain.LoanRequest{BookISBN: testISBN, MemberIIN: testIIN})

	assert.ErrorIs(t, err, customError.ErrDatabase)
	books.AssertNotCalled(t, "LoanBook", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func businessCode(t *testing.T, err error) string {
	t.Helper()
	var be *customError.BusinessError
	require.ErrorAs(t, err, &be)
	return be.Code
}
