package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/jaryq-library/internal/domain"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
)

const tableBooks = "books"

type bookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	query, args, err := dialect.From(tableBooks).
		Select("id", "title", "author", "genre", "isbn", "total_copies", "available_copies", "created_at", "updated_at").
		Where(goqu.Ex{"isbn": isbn}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var book domain.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		return nil, err
	}

	return &book, nil
}

func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	query := `
		INSERT INTO books (title, author, genre, isbn, total_copies, available_copies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	book.CreatedAt, book.UpdatedAt = now, now

	err := r.db.QueryRowxContext(ctx, query,
		book.Title,
		book.Author,
		book.Genre,
		book.ISBN,
		book.TotalCopies,
		book.AvailableCopies,
		book.CreatedAt,
		book.UpdatedAt,
	).Scan(&book.ID)
	if isUniqueViolation(err) {
		return customError.WrapAlreadyExists("Book", "isbn", book.ISBN)
	}

	return err
}

func (r *bookRepository) DecrementAvailable(ctx context.Context, isbn string) (bool, error) {
	query := `
		UPDATE books
		SET available_copies = available_copies - 1, updated_at = $2
		WHERE isbn = $1 AND available_copies > 0
	`

	res, err := r.db.ExecContext(ctx, query, isbn, time.Now())
	if err != nil {
		return false, err
	}

	return affected(res)
}

func (r *bookRepository) IncrementAvailable(ctx context.Context, isbn string) (bool, error) {
	query := `
		UPDATE books
		SET available_copies = available_copies + 1, updated_at = $2
		WHERE isbn = $1 AND available_copies < total_copies
	`

	res, err := r.db.ExecContext(ctx, query, isbn, time.Now())
	if err != nil {
		return false, err
	}

	return affected(res)
}

func (r *bookRepository) Update(ctx context.Context, book *domain.Book) (bool, error) {
	book.UpdatedAt = time.Now()

	query, args, err := dialect.Update(tableBooks).
		Set(goqu.Record{
			"title":            book.Title,
			"author":           book.Author,
			"genre":            book.Genre,
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
			"updated_at":       book.UpdatedAt,
		}).
		Where(goqu.Ex{"isbn": book.ISBN}).
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

func (r *bookRepository) Delete(ctx context.Context, isbn string) (bool, error) {
	query, args, err := dialect.Delete(tableBooks).
		Where(goqu.Ex{"isbn": isbn}).
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
