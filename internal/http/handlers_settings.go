package http

import (
	"net/http"
	"strings"

	"gota/internal/core"
	"gota/internal/services"
)

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = string(core.CurrentMonth())
	}
	view, err := s.svc.Income.Get(r.Context(), principal(r), month)
	if err != nil {
		writeError(w, r, "get income", err)
		return
	}
	NewResponse().JSON(view).Write(w)
}

type incomeRequest struct {
	Month string `json:"month"`
	core.IncomeFields
}

func (s *Server) handleUpsertIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgBadJSON).Write(w)
		return
	}
	view, err := s.svc.Income.Upsert(r.Context(), principal(r), req.Month, req.IncomeFields)
	if err != nil {
		writeError(w, r, "upsert income", err)
		return
	}
	NewResponse().JSON(view).Write(w)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Config.Get(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, "get config", err)
		return
	}
	NewResponse().JSON(cfg).Write(w)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch core.ConfigPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		BadRequestError(msgBadJSON).Write(w)
		return
	}
	if patch.DefaultCurrency != nil {
		c := core.Currency(strings.ToUpper(strings.TrimSpace(string(*patch.DefaultCurrency))))
		patch.DefaultCurrency = &c
	}
	cfg, err := s.svc.Config.Update(r.Context(), principal(r), patch)
	if err != nil {
		writeError(w, r, "update config", err)
		return
	}
	NewResponse().JSON(cfg).Write(w)
}

type addCardRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgBadJSON).Write(w)
		return
	}
	card, err := s.svc.Config.AddCard(r.Context(), principal(r), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, "add card", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(card).Write(w)
}

type updateCardRequest struct {
	Name     *string `json:"name"`
	Archived *bool   `json:"archived"`
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var req updateCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgBadJSON).Write(w)
		return
	}
	if req.Name != nil {
		n := sanitizeInput(*req.Name)
		req.Name = &n
	}
	card, err := s.svc.Config.UpdateCard(r.Context(), principal(r), r.PathValue("id"),
		services.CardChange{Name: req.Name, Archived: req.Archived})
	if err != nil {
		writeError(w, r, "update card", err)
		return
	}
	NewResponse().JSON(card).Write(w)
}
