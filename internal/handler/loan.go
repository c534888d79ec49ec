package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/service"
	"github.com/segyhp/jaryq-library/pkg/response"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type LoanHandler struct {
	service *service.LoanService
}

func NewLoanHandler(service *service.LoanService) *LoanHandler {
	return &LoanHandler{service: service}
}

func (h *LoanHandler) Routes(router *mux.Router) {
	loans := router.PathPrefix("/loans").Subrouter()
	loans.HandleFunc("/fetch-by-book", h.FetchByBook).Methods(http.MethodGet)
	loans.HandleFunc("/fetch-by-member", h.FetchByMember).Methods(http.MethodGet)
	loans.HandleFunc("/create", h.CreateLoan).Methods(http.MethodPost)
	loans.HandleFunc("/return-book", h.ReturnBook).Methods(http.MethodPost)
	loans.HandleFunc("/extend-loan", h.ExtendLoan).Methods(http.MethodPost)
}

// FetchByBook handles GET /loans/fetch-by-book?bookIsbn=
func (h *LoanHandler) FetchByBook(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.FetchByBook(r.Context(), r.URL.Query().Get("bookIsbn"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, views)
}

// FetchByMember handles GET /loans/fetch-by-member?memberIin=
func (h *LoanHandler) FetchByMember(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.FetchByMember(r.Context(), r.URL.Query().Get("memberIin"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, views)
}

// CreateLoan handles POST /loans/create
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.LoanRequest
	if !decode(w, r, &request) {
		return
	}

	details, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, details)
}

// ReturnBook handles POST /loans/return-book
func (h *LoanHandler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	var request domain.LoanRequest
	if !decode(w, r, &request) {
		return
	}

	details, err := h.service.ReturnBook(r.Context(), &request)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, details)
}

// ExtendLoan handles POST /loans/extend-loan
func (h *LoanHandler) ExtendLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.LoanRequest
	if !decode(w, r, &request) {
		return
	}

	details, err := h.service.ExtendLoan(r.Context(), &request)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, details)
}

// decode reads a JSON body into v, answering 400 itself on failure
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, r, "Invalid request body")
		return false
	}
	return true
}
