package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/events"
)

type MockBooksClient struct {
	mock.Mock
}

func (m *MockBooksClient) FetchBook(ctx context.Context, isbn string) (*domain.Book, error) {
	args := m.Called(ctx, isbn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Book), args.Error(1)
}

func (m *MockBooksClient) LoanBook(ctx context.Context, isbn string) (bool, error) {
	args := m.Called(ctx, isbn)
	return args.Bool(0), args.Error(1)
}

func (m *MockBooksClient) ReturnBook(ctx context.Context, isbn string) (bool, error) {
	args := m.Called(ctx, isbn)
	return args.Bool(0), args.Error(1)
}

type MockMembersClient struct {
	mock.Mock
}

func (m *MockMembersClient) FetchByIIN(ctx context.Context, iin string) (*domain.Member, error) {
	args := m.Called(ctx, iin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, topic string, payload interface{}) {
	m.Called(ctx, topic, payload)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
