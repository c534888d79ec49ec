package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/jaryq-library/internal/domain"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
)

const tableMembers = "members"

var memberColumns = []interface{}{
	"card_number", "first_name", "last_name", "iin", "email", "mobile_number",
	"address", "communication_status", "created_at", "updated_at",
}

type memberRepository struct {
	db *sqlx.DB
}

func NewMemberRepository(db *sqlx.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) FindByCardNumber(ctx context.Context, cardNumber string) (*domain.Member, error) {
	return r.findOne(ctx, goqu.Ex{"card_number": cardNumber})
}

func (r *memberRepository) FindByIIN(ctx context.Context, iin string) (*domain.Member, error) {
	return r.findOne(ctx, goqu.Ex{"iin": iin})
}

func (r *memberRepository) ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error) {
	query, args, err := dialect.From(tableMembers).
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"card_number": cardNumber}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return false, err
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	query := `
		INSERT INTO members (card_number, first_name, last_name, iin, email, mobile_number, address, communication_status, created_at, updated_at)
		VALUES (:card_number, :first_name, :last_name, :iin, :email, :mobile_number, :address, :communication_status, :created_at, :updated_at)
	`

	now := time.Now()
	member.CreatedAt, member.UpdatedAt = now, now

	_, err := sqlx.NamedExecContext(ctx, r.db, query, member)
	if isUniqueViolation(err) {
		return customError.WrapAlreadyExists("Member", "iin", member.IIN)
	}

	return err
}

func (r *memberRepository) MarkCommunicated(ctx context.Context, iin string) (bool, error) {
	query := `
		UPDATE members
		SET communication_status = TRUE, updated_at = $2
		WHERE iin = $1
	`

	res, err := r.db.ExecContext(ctx, query, iin, time.Now())
	if err != nil {
		return false, err
	}

	return affected(res)
}

func (r *memberRepository) Update(ctx context.Context, member *domain.Member) (bool, error) {
	query := `
		UPDATE members
		SET first_name = :first_name, last_name = :last_name, email = :email,
			mobile_number = :mobile_number, address = :address, updated_at = :updated_at
		WHERE iin = :iin
	`

	member.UpdatedAt = time.Now()

	res, err := sqlx.NamedExecContext(ctx, r.db, query, member)
	if err != nil {
		return false, err
	}

	return affected(res)
}

func (r *memberRepository) DeleteByCardNumber(ctx context.Context, cardNumber string) (bool, error) {
	return r.delete(ctx, goqu.Ex{"card_number": cardNumber})
}

func (r *memberRepository) DeleteByIIN(ctx context.Context, iin string) (bool, error) {
	return r.delete(ctx, goqu.Ex{"iin": iin})
}

func (r *memberRepository) delete(ctx context.Context, where goqu.Ex) (bool, error) {
	query, args, err := dialect.Delete(tableMembers).
		Where(where).
		Prepared(true).
		ToSQL()
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	return affected(res)
}

func (r *memberRepository) findOne(ctx context.Context, where goqu.Ex) (*domain.Member, error) {
	query, args, err := dialect.From(tableMembers).
		Select(memberColumns...).
		Where(where).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var member domain.Member
	if err := r.db.GetContext(ctx, &member, query, args...); err != nil {
		return nil, err
	}

	return &member, nil
}
