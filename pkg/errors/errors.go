package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("resource not found")
	ErrAlreadyBorrowed       = errors.New("book is already borrowed")
	ErrNoCopiesAvailable     = errors.New("no copies available")
	ErrNotExtensible         = errors.New("loan can be extended only on its due date")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrAlreadyExists         = errors.New("resource already exists")
	ErrDatabase              = errors.New("database operation failed")
)

// BusinessError represents a business logic error. Subject names the entity
// the failure is about and Identifier the key that was used to look it up.
type BusinessError struct {
	Code       string
	Message    string
	Subject    string
	Identifier string
	Err        error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeAlreadyBorrowed       = "ALREADY_BORROWED"
	ErrCodeNoCopiesAvailable     = "NO_COPIES_AVAILABLE"
	ErrCodeNotExtensible         = "NOT_EXTENSIBLE"
	ErrCodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	ErrCodeAlreadyExists         = "ALREADY_EXISTS"
	ErrCodeDatabaseError         = "DATABASE_ERROR"
	ErrCodeInternal              = "INTERNAL_ERROR"
	ErrCodeTooManyRequests       = "TOO_MANY_REQUESTS"
	ErrCodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
)

func loanIdentifier(bookISBN, memberIIN string) string {
	return fmt.Sprintf("book isbn: %s, member iin: %s", bookISBN, memberIIN)
}

func WrapValidation(err error) *BusinessError {
	return &BusinessError{
		Code:    ErrCodeValidation,
		Message: err.Error(),
		Err:     ErrValidation,
	}
}

// WrapNotFound reports a missing subject looked up by field = value
func WrapNotFound(subject, field, value string) *BusinessError {
	return &BusinessError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found with the given input data %s : '%s'", subject, field, value),
		Subject:    subject,
		Identifier: fmt.Sprintf("%s: %s", field, value),
		Err:        ErrNotFound,
	}
}

func WrapLoanNotFound(bookISBN, memberIIN string) *BusinessError {
	return &BusinessError{
		Code:       ErrCodeNotFound,
		Message:    "no active loan",
		Subject:    "Loan",
		Identifier: loanIdentifier(bookISBN, memberIIN),
		Err:        ErrNotFound,
	}
}

func WrapAlreadyBorrowed(bookISBN, memberIIN string) *BusinessError {
	return &BusinessError{
		Code:       ErrCodeAlreadyBorrowed,
		Message:    "the book is already borrowed",
		Subject:    "Loan",
		Identifier: loanIdentifier(bookISBN, memberIIN),
		Err:        ErrAlreadyBorrowed,
	}
}

func WrapNoCopiesAvailable(bookISBN, memberIIN string) *BusinessError {
	return &BusinessError{
		Code:       ErrCodeNoCopiesAvailable,
		Message:    "no available books",
		Subject:    "Loan",
		Identifier: loanIdentifier(bookISBN, memberIIN),
		Err:        ErrNoCopiesAvailable,
	}
}

// WrapInventoryUnavailable is returned when the inventory decrement could not
// be attempted. It matches both ErrDependencyUnavailable and ErrNoCopiesAvailable.
func WrapInventoryUnavailable(bookISBN, memberIIN string, cause error) *BusinessError {
	return &BusinessError{
		Code:       ErrCodeDependencyUnavailable,
		Message:    "no available books: inventory service unavailable",
		Subject:    "Loan",
		Identifier: loanIdentifier(bookISBN, memberIIN),
		Err:        errors.Join(ErrNoCopiesAvailable, ErrDependencyUnavailable, cause),
	}
}

func WrapDependencyUnavailable(subject string, cause error) *BusinessError {
	return &BusinessError{
		Code:    ErrCodeDependencyUnavailable,
		Message: fmt.Sprintf("%s service unavailable", subject),
		Subject: subject,
		Err:     errors.Join(ErrDependencyUnavailable, cause),
	}
}

func WrapNotExtensible(bookISBN, memberIIN string) *BusinessError {
	return &BusinessError{
		Code:       ErrCodeNotExtensible,
		Message:    "a loan can be extended only on its due date",
		Subject:    "Loan",
		Identifier: loanIdentifier(bookISBN, memberIIN),
		Err:        ErrNotExtensible,
	}
}

func WrapAlreadyExists(subject, field, value string) *BusinessError {
	return &BusinessError{
		Code:       ErrCodeAlreadyExists,
		Message:    fmt.Sprintf("%s with %s %s already exists", subject, field, value),
		Subject:    subject,
		Identifier: fmt.Sprintf("%s: %s", field, value),
		Err:        ErrAlreadyExists,
	}
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		errors.Join(ErrDatabase, err),
	)
}

// HTTPStatus maps an error onto the response status code
func HTTPStatus(err error) int {
	var be *BusinessError
	if !errors.As(err, &be) {
		return http.StatusInternalServerError
	}

	switch be.Code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyBorrowed, ErrCodeNoCopiesAvailable, ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeNotExtensible:
		return http.StatusUnprocessableEntity
	case ErrCodeDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
