package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"gota/internal/core"
)

// expenseRequest is the create payload. Owner and timestamps never come from
// the client.
type expenseRequest struct {
	Amount        decimal.Decimal    `json:"amount"`
	Currency      core.Currency      `json:"currency"`
	Category      core.Category      `json:"category"`
	Description   string             `json:"description"`
	IsWant        *bool              `json:"is_want"`
	PaymentMethod core.PaymentMethod `json:"payment_method"`
	CardID        *string            `json:"card_id"`
	Date          core.Date          `json:"date"`
	DraftID       string             `json:"draft_id"`
}

func (req expenseRequest) expense() core.Expense {
	e := core.Expense{
		Amount:        req.Amount,
		Currency:      req.Currency,
		Category:      req.Category,
		Description:   sanitizeInput(req.Description),
		IsWant:        req.IsWant,
		PaymentMethod: req.PaymentMethod,
		CardID:        req.CardID,
		Date:          req.Date,
	}
	if c, ok := core.LookupCategory(string(req.Category)); ok {
		e.Category = c
	}
	return e
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseExpenseFilter(q)
	if err != nil {
		writeError(w, r, "list expenses", err)
		return
	}

	page, err := s.svc.Expenses.List(r.Context(), principal(r), filter, parsePage(q))
	if err != nil {
		writeError(w, r, "list expenses", err)
		return
	}
	NewResponse().JSON(page).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgBadJSON).Write(w)
		return
	}

	saved, err := s.svc.Expenses.Create(r.Context(), principal(r), req.expense(), sanitizeInput(req.DraftID))
	if err != nil {
		writeError(w, r, "create expense", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var patch core.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil && !errors.Is(err, errEmptyBody) {
		BadRequestError(msgBadJSON).Write(w)
		return
	}
	if patch.Description != nil {
		d := sanitizeInput(*patch.Description)
		patch.Description = &d
	}
	if patch.Category != nil {
		if c, ok := core.LookupCategory(string(*patch.Category)); ok {
			patch.Category = &c
		}
	}

	updated, err := s.svc.Expenses.Update(r.Context(), principal(r), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, "update expense", err)
		return
	}
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.Delete(r.Context(), principal(r), r.PathValue("id")); err != nil {
		writeError(w, r, "delete expense", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

type duplicatesResponse struct {
	Matches []core.DuplicateMatch `json:"matches"`
}

// handleDuplicates is advisory: malformed input and lookup failures both
// answer with an empty list.
func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	key, ok := parseDuplicateKey(r.URL.Query())
	if !ok {
		NewResponse().JSON(duplicatesResponse{Matches: []core.DuplicateMatch{}}).Write(w)
		return
	}
	matches := s.svc.Expenses.Duplicates(r.Context(), principal(r), key)
	NewResponse().JSON(duplicatesResponse{Matches: matches}).Write(w)
}

type parseRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleParseExpense(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgBadJSON).Write(w)
		return
	}
	text := sanitizeInput(req.Text)
	if text == "" {
		verr := &core.ValidationError{}
		verr.Add("text", msgEmptyParseInput)
		ValidationErrorResponse(verr).Write(w)
		return
	}

	res, err := s.svc.Parse.Parse(r.Context(), principal(r), text)
	if err != nil {
		writeError(w, r, "parse expense", err)
		return
	}
	NewResponse().JSON(res).Write(w)
}
