package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/segyhp/jaryq-library/internal/breaker"
	"github.com/segyhp/jaryq-library/internal/domain"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
)

const subjectBook = "Book"

// BooksClient talks to the books service
type BooksClient struct {
	rest *restClient
}

func NewBooksClient(baseURL string, httpClient *http.Client, b *breaker.Breaker) *BooksClient {
	return &BooksClient{rest: newRestClient(baseURL, httpClient, b)}
}

// FetchBook returns nil with no error when the book does not exist.
func (c *BooksClient) FetchBook(ctx context.Context, isbn string) (*domain.Book, error) {
	res, err := c.rest.do(ctx, http.MethodGet, "/books/fetch", url.Values{"isbn": {isbn}})
	if err != nil {
		return nil, customError.WrapDependencyUnavailable(subjectBook, err)
	}
	if !res.hasData() {
		return nil, nil
	}

	var book domain.Book
	if err := json.Unmarshal(res.data, &book); err != nil {
		return nil, customError.WrapDependencyUnavailable(subjectBook, err)
	}

	return &book, nil
}

// LoanBook takes one copy out of stock. false means no copy was available.
func (c *BooksClient) LoanBook(ctx context.Context, isbn string) (bool, error) {
	return c.mutate(ctx, "/books/loan-book", isbn)
}

// ReturnBook puts one copy back in stock.
func (c *BooksClient) ReturnBook(ctx context.Context, isbn string) (bool, error) {
	return c.mutate(ctx, "/books/return-book", isbn)
}

func (c *BooksClient) mutate(ctx context.Context, path, isbn string) (bool, error) {
	res, err := c.rest.do(ctx, http.MethodPost, path, url.Values{"isbn": {isbn}})
	if err != nil {
		return false, customError.WrapDependencyUnavailable(subjectBook, err)
	}
	if !res.hasData() {
		return false, nil
	}

	var ok bool
	if err := json.Unmarshal(res.data, &ok); err != nil {
		return false, customError.WrapDependencyUnavailable(subjectBook, err)
	}

	return ok, nil
}
