package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/mocks"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
)

func TestBookService_Fetch(t *testing.T) {
	repo := &mocks.MockBookRepository{}
	service := NewBookService(repo)

	repo.On("FindByISBN", mock.Anything, testISBN).Return(&domain.Book{ISBN: testISBN, Title: "1984"}, nil)
	repo.On("FindByISBN", mock.Anything, "9780000000000").Return(nil, sql.ErrNoRows)

	book, err := service.Fetch(context.Background(), testISBN)
	require.NoError(t, err)
	assert.Equal(t, "1984", book.Title)

	_, err = service.Fetch(context.Background(), "9780000000000")
	assert.ErrorIs(t, err, customError.ErrNotFound)

	_, err = service.Fetch(context.Background(), "978-0141182636")
	assert.ErrorIs(t, err, customError.ErrValidation)
}

func TestBookService_Create(t *testing.T) {
	tests := []struct {
		name    string
		book    domain.Book
		wantErr error
	}{
		{
			name:    "valid",
			book:    domain.Book{Title: "1984", Author: "George Orwell", Genre: "Dystopia", ISBN: testISBN, TotalCopies: 3, AvailableCopies: 3},
			wantErr: nil,
		},
		{
			name:    "more available than total",
			book:    domain.Book{Title: "1984", Author: "George Orwell", Genre: "Dystopia", ISBN: testISBN, TotalCopies: 3, AvailableCopies: 4},
			wantErr: customError.ErrValidation,
		},
		{
			name:    "no copies at all",
			book:    domain.Book{Title: "1984", Author: "George Orwell", Genre: "Dystopia", ISBN: testISBN},
			wantErr: customError.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockBookRepository{}
			repo.On("Create", mock.Anything, mock.Anything).Return(nil)
			service := NewBookService(repo)

			book := tt.book
			_, err := service.Create(context.Background(), &book)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBookService_CreateDuplicate(t *testing.T) {
	repo := &mocks.MockBookRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(customError.WrapAlreadyExists("Book", "isbn", testISBN))
	service := NewBookService(repo)

	_, err := service.Create(context.Background(), &domain.Book{
		Title: "1984", Author: "George Orwell", Genre: "Dystopia", ISBN: testISBN, TotalCopies: 1, AvailableCopies: 1,
	})

	assert.ErrorIs(t, err, customError.ErrAlreadyExists)
}

func TestBookService_LoanAndReturn(t *testing.T) {
	repo := &mocks.MockBookRepository{}
	service := NewBookService(repo)

	repo.On("DecrementAvailable", mock.Anything, testISBN).Return(true, nil).Once()
	repo.On("DecrementAvailable", mock.Anything, testISBN).Return(false, nil).Once()
	repo.On("IncrementAvailable", mock.Anything, testISBN).Return(false, errors.New("db down"))

	ok, err := service.LoanBook(context.Background(), testISBN)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = service.LoanBook(context.Background(), testISBN)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = service.ReturnBook(context.Background(), testISBN)
	assert.ErrorIs(t, err, customError.ErrDatabase)

	repo.AssertExpectations(t)
}

func TestBookService_Update(t *testing.T) {
	repo := &mocks.MockBookRepository{}
	service := NewBookService(repo)

	book := &domain.Book{Title: "1984", Author: "George Orwell", Genre: "Classics", ISBN: testISBN, TotalCopies: 5, AvailableCopies: 4}
	repo.On("Update", mock.Anything, book).Return(true, nil).Once()

	updated, err := service.Update(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, "Classics", updated.Genre)

	repo.On("Update", mock.Anything, mock.MatchedBy(func(b *domain.Book) bool { return b.ISBN == "9780000000000" })).Return(false, nil)
	unknown := *book
	unknown.ISBN = "9780000000000"
	_, err = service.Update(context.Background(), &unknown)
	assert.ErrorIs(t, err, customError.ErrNotFound)

	invalid := *book
	invalid.AvailableCopies = 6
	_, err = service.Update(context.Background(), &invalid)
	assert.ErrorIs(t, err, customError.ErrValidation)

	repo.AssertNumberOfCalls(t, "Update", 2)
}

func TestBookService_Delete(t *testing.T) {
	repo := &mocks.MockBookRepository{}
	service := NewBookService(repo)

	repo.On("Delete", mock.Anything, testISBN).Return(true, nil)
	repo.On("Delete", mock.Anything, "9780000000000").Return(false, nil)
	repo.On("Delete", mock.Anything, "9780000000001").Return(false, errors.New("db down"))

	assert.NoError(t, service.Delete(context.Background(), testISBN))
	assert.ErrorIs(t, service.Delete(context.Background(), "9780000000000"), customError.ErrNotFound)
	assert.ErrorIs(t, service.Delete(context.Background(), "9780000000001"), customError.ErrDatabase)
	assert.ErrorIs(t, service.Delete(context.Background(), "12345"), customError.ErrValidation)

	repo.AssertNumberOfCalls(t, "Delete", 3)
}
