package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/repository"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
	"github.com/segyhp/jaryq-library/pkg/validation"
)

// BookService owns the book inventory
type BookService struct {
	BookRepo repository.BookRepository
	validate *validator.Validate
}

func NewBookService(bookRepo repository.BookRepository) *BookService {
	return &BookService{
		BookRepo: bookRepo,
		validate: validation.New(),
	}
}

func (s *BookService) Fetch(ctx context.Context, isbn string) (*domain.Book, error) {
	if err := s.checkISBN(isbn); err != nil {
		return nil, err
	}

	book, err := s.BookRepo.FindByISBN(ctx, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapNotFound("Book", "isbn", isbn)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return book, nil
}

func (s *BookService) Create(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	if err := s.validate.Struct(book); err != nil {
		return nil, customError.WrapValidation(errors.New(validation.Message(err)))
	}

	if err := s.BookRepo.Create(ctx, book); err != nil {
		return nil, storeError(err)
	}

	slog.InfoContext(ctx, "book created", "isbn", book.ISBN, "total_copies", book.TotalCopies)
	return book, nil
}

// LoanBook takes one copy out of stock. false means none was available.
func (s *BookService) LoanBook(ctx context.Context, isbn string) (bool, error) {
	if err := s.checkISBN(isbn); err != nil {
		return false, err
	}

	ok, err := s.BookRepo.DecrementAvailable(ctx, isbn)
	if err != nil {
		return false, customError.WrapDatabaseError(err)
	}
	return ok, nil
}

// ReturnBook puts one copy back. false means stock was already full.
func (s *BookService) ReturnBook(ctx context.Context, isbn string) (bool, error) {
	if err := s.checkISBN(isbn); err != nil {
		return false, err
	}

	ok, err := s.BookRepo.IncrementAvailable(ctx, isbn)
	if err != nil {
		return false, customError.WrapDatabaseError(err)
	}
	return ok, nil
}

// Update replaces every detail of the book identified by book.ISBN
func (s *BookService) Update(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	if err := s.validate.Struct(book); err != nil {
		return nil, customError.WrapValidation(errors.New(validation.Message(err)))
	}

	updated, err := s.BookRepo.Update(ctx, book)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if !updated {
		return nil, customError.WrapNotFound("Book", "isbn", book.ISBN)
	}

	slog.InfoContext(ctx, "book updated", "isbn", book.ISBN, "total_copies", book.TotalCopies)
	return book, nil
}

func (s *BookService) Delete(ctx context.Context, isbn string) error {
	if err := s.checkISBN(isbn); err != nil {
		return err
	}

	deleted, err := s.BookRepo.Delete(ctx, isbn)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if !deleted {
		return customError.WrapNotFound("Book", "isbn", isbn)
	}

	slog.InfoContext(ctx, "book deleted", "isbn", isbn)
	return nil
}

func (s *BookService) checkISBN(isbn string) error {
	if err := s.validate.Struct(domain.BookQuery{BookISBN: isbn}); err != nil {
		return customError.WrapValidation(errors.New(validation.Message(err)))
	}
	return nil
}
