package domain

import (
	"time"

	"github.com/google/uuid"
)

type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "BORROWED"
	LoanStatusReturned LoanStatus = "RETURNED"
	// LoanStatusOverdue is part of the stored vocabulary; no workflow assigns it.
	LoanStatusOverdue LoanStatus = "OVERDUE"
)

// LoanPeriodDays is both the initial loan length and the length of one extension
const LoanPeriodDays = 7

// Loan represents a loan entity
type Loan struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	BookISBN          string     `json:"bookIsbn" db:"book_isbn"`
	MemberIIN         string     `json:"memberIin" db:"member_iin"`
	LoanDate          time.Time  `json:"loanDate" db:"loan_date"`
	DueDate           time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate        *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Status            LoanStatus `json:"status" db:"status"`
	CommunicationSent bool       `json:"communicationSent" db:"communication_sent"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
}

// DTOs for requests and responses

type LoanRequest struct {
	BookISBN  string `json:"bookIsbn" validate:"required,isbn13digits"`
	MemberIIN string `json:"memberIin" validate:"required,max=12"`
}

type BookQuery struct {
	BookISBN string `validate:"required,isbn13digits"`
}

type MemberQuery struct {
	MemberIIN string `validate:"required,max=12"`
}

// LoanView is the flattened row returned by the fetch-by-book and
// fetch-by-member listings.
type LoanView struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	ISBN       string     `json:"isbn"`
	CardNumber string     `json:"cardNumber"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	IIN        string     `json:"iin"`
	LoanDate   Date       `json:"loanDate"`
	DueDate    Date       `json:"dueDate"`
	ReturnDate *Date      `json:"returnDate,omitempty"`
	Status     LoanStatus `json:"status"`
}

// LoanDetails is returned by create, return and extend so callers need no
// further round trips.
type LoanDetails struct {
	LoanDate   Date        `json:"loanDate"`
	DueDate    Date        `json:"dueDate"`
	ReturnDate *Date       `json:"returnDate,omitempty"`
	Status     LoanStatus  `json:"status"`
	Member     *MemberView `json:"member"`
	Book       *Book       `json:"book"`
}

func NewLoanView(loan *Loan, book *Book, member *Member) LoanView {
	return LoanView{
		ID:         loan.ID,
		Title:      book.Title,
		Author:     book.Author,
		ISBN:       book.ISBN,
		CardNumber: member.CardNumber,
		FirstName:  member.FirstName,
		LastName:   member.LastName,
		IIN:        member.IIN,
		LoanDate:   DateOf(loan.LoanDate),
		DueDate:    DateOf(loan.DueDate),
		ReturnDate: DateOfPtr(loan.ReturnDate),
		Status:     loan.Status,
	}
}

func NewLoanDetails(loan *Loan, book *Book, member *Member) *LoanDetails {
	return &LoanDetails{
		LoanDate:   DateOf(loan.LoanDate),
		DueDate:    DateOf(loan.DueDate),
		ReturnDate: DateOfPtr(loan.ReturnDate),
		Status:     loan.Status,
		Member:     member.View(),
		Book:       book,
	}
}
