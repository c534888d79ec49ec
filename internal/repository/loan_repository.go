package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/jaryq-library/internal/domain"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
)

const (
	tableLoans = "loans"
	dateLayout = "2006-01-02"
)

var loanColumns = []interface{}{
	"id", "book_isbn", "member_iin", "loan_date", "due_date", "return_date",
	"status", "communication_sent", "created_at", "updated_at",
}

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (id, book_isbn, member_iin, loan_date, due_date, return_date, status, communication_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		loan.ID,
		loan.BookISBN,
		loan.MemberIIN,
		loan.LoanDate.Format(dateLayout),
		loan.DueDate.Format(dateLayout),
		dateOrNil(loan.ReturnDate),
		loan.Status,
		loan.CommunicationSent,
		loan.CreatedAt,
		loan.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return customError.WrapAlreadyBorrowed(loan.BookISBN, loan.MemberIIN)
	}

	return err
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET due_date = $2, return_date = $3, status = $4, updated_at = $5
		WHERE id = $1
	`

	loan.UpdatedAt = time.Now()
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		loan.ID,
		loan.DueDate.Format(dateLayout),
		dateOrNil(loan.ReturnDate),
		loan.Status,
		loan.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return customError.WrapAlreadyBorrowed(loan.BookISBN, loan.MemberIIN)
	}

	return err
}

func (r *loanRepository) ExistsActiveForBook(ctx context.Context, bookISBN string) (bool, error) {
	query, args, err := dialect.From(tableLoans).
		Select(goqu.L("1")).
		Where(goqu.Ex{"book_isbn": bookISBN, "status": domain.LoanStatusBorrowed}).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return false, err
	}

	var found []int
	if err := conn(ctx, r.db).SelectContext(ctx, &found, query, args...); err != nil {
		return false, err
	}

	return len(found) > 0, nil
}

func (r *loanRepository) FindByBook(ctx context.Context, bookISBN string) ([]*domain.Loan, error) {
	return r.selectLoans(ctx, goqu.Ex{"book_isbn": bookISBN})
}

func (r *loanRepository) FindByMember(ctx context.Context, memberIIN string) ([]*domain.Loan, error) {
	return r.selectLoans(ctx, goqu.Ex{"member_iin": memberIIN})
}

func (r *loanRepository) FindActive(ctx context.Context, bookISBN, memberIIN string) (*domain.Loan, error) {
	stmt := dialect.From(tableLoans).
		Select(loanColumns...).
		Where(goqu.Ex{
			"book_isbn":  bookISBN,
			"member_iin": memberIIN,
			"status":     domain.LoanStatusBorrowed,
		}).
		Limit(1)

	if txFromContext(ctx) != nil {
		stmt = stmt.ForUpdate(exp.Wait)
	}

	query, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var loan domain.Loan
	if err := conn(ctx, r.db).GetContext(ctx, &loan, query, args...); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) FindDueOn(ctx context.Context, day time.Time) ([]*domain.Loan, error) {
	return r.selectLoans(ctx, goqu.Ex{
		"due_date": day.Format(dateLayout),
		"status":   domain.LoanStatusBorrowed,
	})
}

func (r *loanRepository) MarkCommunicated(ctx context.Context, bookISBN, memberIIN string) (bool, error) {
	query := `
		UPDATE loans
		SET communication_sent = TRUE, updated_at = $3
		WHERE id = (
			SELECT id FROM loans
			WHERE book_isbn = $1 AND member_iin = $2
			ORDER BY created_at DESC
			LIMIT 1
		)
	`

	res, err := conn(ctx, r.db).ExecContext(ctx, query, bookISBN, memberIIN, time.Now())
	if err != nil {
		return false, err
	}

	return affected(res)
}

func (r *loanRepository) selectLoans(ctx context.Context, where goqu.Ex) ([]*domain.Loan, error) {
	query, args, err := dialect.From(tableLoans).
		Select(loanColumns...).
		Where(where).
		Order(goqu.I("loan_date").Asc(), goqu.I("created_at").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	loans := make([]*domain.Loan, 0)
	if err := conn(ctx, r.db).SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, err
	}

	return loans, nil
}

func dateOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}
