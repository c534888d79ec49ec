package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/service"
	"github.com/segyhp/jaryq-library/pkg/response"
)

type BookHandler struct {
	service *service.BookService
}

func NewBookHandler(service *service.BookService) *BookHandler {
	return &BookHandler{service: service}
}

func (h *BookHandler) Routes(router *mux.Router) {
	books := router.PathPrefix("/books").Subrouter()
	books.HandleFunc("/fetch", h.Fetch).Methods(http.MethodGet)
	books.HandleFunc("/loan-book", h.LoanBook).Methods(http.MethodPost)
	books.HandleFunc("/return-book", h.ReturnBook).Methods(http.MethodPost)
	books.HandleFunc("/create", h.Create).Methods(http.MethodPost)
	books.HandleFunc("/update", h.Update).Methods(http.MethodPut)
	books.HandleFunc("/delete", h.Delete).Methods(http.MethodDelete)
}

func (h *BookHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.Fetch(r.Context(), r.URL.Query().Get("isbn"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, book)
}

// LoanBook answers true when a copy was taken out of stock
func (h *BookHandler) LoanBook(w http.ResponseWriter, r *http.Request) {
	ok, err := h.service.LoanBook(r.Context(), r.URL.Query().Get("isbn"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, ok)
}

func (h *BookHandler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	ok, err := h.service.ReturnBook(r.Context(), r.URL.Query().Get("isbn"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, ok)
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var book domain.Book
	if !decode(w, r, &book) {
		return
	}

	created, err := h.service.Create(r.Context(), &book)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, created)
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var book domain.Book
	if !decode(w, r, &book) {
		return
	}

	updated, err := h.service.Update(r.Context(), &book)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, updated)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.URL.Query().Get("isbn")); err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Message(w, "book deleted")
}
