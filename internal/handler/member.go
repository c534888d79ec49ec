package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/service"
	"github.com/segyhp/jaryq-library/pkg/response"
)

type MemberHandler struct {
	service *service.MemberService
}

func NewMemberHandler(service *service.MemberService) *MemberHandler {
	return &MemberHandler{service: service}
}

func (h *MemberHandler) Routes(router *mux.Router) {
	members := router.PathPrefix("/members").Subrouter()
	members.HandleFunc("/fetch-by-card", h.FetchByCardNumber).Methods(http.MethodGet)
	members.HandleFunc("/fetch-by-iin", h.FetchByIIN).Methods(http.MethodGet)
	members.HandleFunc("/create", h.Create).Methods(http.MethodPost)
	members.HandleFunc("/update", h.Update).Methods(http.MethodPut)
	members.HandleFunc("/delete-by-card", h.DeleteByCardNumber).Methods(http.MethodDelete)
	members.HandleFunc("/delete-by-iin", h.DeleteByIIN).Methods(http.MethodDelete)
}

func (h *MemberHandler) FetchByCardNumber(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.FetchByCardNumber(r.Context(), r.URL.Query().Get("cardNumber"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, member)
}

func (h *MemberHandler) FetchByIIN(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.FetchByIIN(r.Context(), r.URL.Query().Get("iin"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, member)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var member domain.Member
	if !decode(w, r, &member) {
		return
	}

	created, err := h.service.Create(r.Context(), &member)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, created)
}

// Update changes name and contact details. The member is found by IIN.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	var member domain.Member
	if !decode(w, r, &member) {
		return
	}

	updated, err := h.service.Update(r.Context(), &member)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, updated)
}

func (h *MemberHandler) DeleteByCardNumber(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteByCardNumber(r.Context(), r.URL.Query().Get("cardNumber")); err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Message(w, "member deleted")
}

func (h *MemberHandler) DeleteByIIN(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteByIIN(r.Context(), r.URL.Query().Get("iin")); err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Message(w, "member deleted")
}
