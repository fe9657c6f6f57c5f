// Package classify turns free-text expense input into a validated expense
// draft. The language model behind it is a pluggable Model; whatever it
// returns is re-validated here field by field and never trusted as-is.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"gota/internal/core"
	"gota/internal/log"
)

// User-facing rejection reasons.
const (
	ReasonEmptyInput    = "Input vacío"
	ReasonNotExpense    = "Eso no parece un gasto"
	ReasonMissingAmount = "Faltó el monto. Ej: \"pizza 2500\""
	ReasonUnparseable   = "No pude interpretar ese gasto. Revisá que tenga descripción y monto."
	ReasonNoCard        = "Para gastos con crédito primero cargá una tarjeta en Ajustes."
	ReasonUpstream      = "Error al procesar. Revisá tu conexión e intentá de nuevo."
)

// MaxInputLength bounds the text sent to the model, in runes.
const MaxInputLength = 500

// Model is the external language model. Complete returns the raw JSON the
// model produced for the prompt, possibly wrapped in a markdown code fence.
type Model interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Request is one classification call.
type Request struct {
	Text  string
	Today core.Date
	// Cards are the user's active cards; the first one is the default for
	// CREDIT expenses that do not name a card.
	Cards []core.Card
}

// Parsed is a classified expense that satisfies every write invariant.
type Parsed struct {
	Amount        decimal.Decimal    `json:"amount"`
	Currency      core.Currency      `json:"currency"`
	Category      core.Category      `json:"category"`
	Description   string             `json:"description"`
	IsWant        *bool              `json:"is_want"`
	PaymentMethod core.PaymentMethod `json:"payment_method"`
	CardID        *string            `json:"card_id"`
	Date          core.Date          `json:"date"`
}

// Result is either a rejection with a reason or a Parsed expense. It
// marshals flat: {"is_valid":false,"reason":...} or {"is_valid":true,...}.
type Result struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason,omitempty"`
	*Parsed
}

// Reject builds a rejection result.
func Reject(reason string) Result {
	return Result{IsValid: false, Reason: reason}
}

// Expense converts the parsed draft into an unsaved expense owned by userID.
func (p Parsed) Expense(userID string) core.Expense {
	return core.Expense{
		UserID:        userID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Category:      p.Category,
		Description:   p.Description,
		IsWant:        p.IsWant,
		PaymentMethod: p.PaymentMethod,
		CardID:        p.CardID,
		Date:          p.Date,
	}
}

type Classifier struct {
	model  Model
	logger *log.Logger
}

func NewClassifier(model Model, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &Classifier{model: model, logger: logger.WithComponent(log.ComponentClassify)}
}

// Classify returns a rejection for empty input and for any model output that
// does not satisfy the contract. Only a model that cannot be reached returns
// an error, wrapped as core.UpstreamError.
func (c *Classifier) Classify(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Reject(ReasonEmptyInput), nil
	}
	if utf8.RuneCountInString(text) > MaxInputLength {
		text = string([]rune(text)[:MaxInputLength])
	}
	if req.Today.IsZero() {
		req.Today = core.Today()
	}
	req.Text = text

	raw, err := c.model.Complete(ctx, BuildPrompt(req))
	if err != nil {
		return Result{}, &core.UpstreamError{Op: "classify.complete", Err: err}
	}

	result, err := Validate(raw, req)
	if err != nil {
		c.logger.WarnContext(ctx, "Model output rejected", log.FieldError, err.Error())
		return Reject(ReasonUnparseable), nil
	}
	return result, nil
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// rawOutput is the model's JSON before validation. Every field is optional
// so that omissions can be defaulted or rejected explicitly.
type rawOutput struct {
	IsValid       *bool               `json:"is_valid"`
	Reason        string              `json:"reason"`
	Amount        decimal.NullDecimal `json:"amount"`
	Currency      string              `json:"currency"`
	Category      string              `json:"category"`
	Description   string              `json:"description"`
	IsWant        *bool               `json:"is_want"`
	PaymentMethod string              `json:"payment_method"`
	CardID        *string             `json:"card_id"`
	Date          string              `json:"date"`
}

var errMalformed = errors.New("malformed model output")

// Validate checks raw model output against the classification contract and
// applies its defaults. A non-nil error means the output is malformed; a
// well-formed refusal or an unfulfillable request is a rejected Result.
func Validate(raw string, req Request) (Result, error) {
	var out rawOutput
	if err := json.Unmarshal([]byte(StripFences(raw)), &out); err != nil {
		return Result{}, errors.Join(errMalformed, err)
	}
	if out.IsValid == nil {
		return Result{}, errors.Join(errMalformed, errors.New("is_valid missing"))
	}
	if !*out.IsValid {
		reason := strings.TrimSpace(out.Reason)
		if reason == "" {
			reason = ReasonNotExpense
		}
		return Reject(reason), nil
	}

	if !out.Amount.Valid {
		return Reject(ReasonMissingAmount), nil
	}
	if out.Amount.Decimal.LessThan(core.MinAmount) {
		return Result{}, errors.Join(errMalformed, errors.New("amount below 1"))
	}

	p := &Parsed{Amount: out.Amount.Decimal, Currency: core.ARS, PaymentMethod: core.Cash, Date: req.Today}

	if s := strings.ToUpper(strings.TrimSpace(out.Currency)); s != "" {
		p.Currency = core.Currency(s)
		if !p.Currency.Valid() {
			return Result{}, errors.Join(errMalformed, errors.New("unknown currency "+s))
		}
	}
	if s := strings.ToUpper(strings.TrimSpace(out.PaymentMethod)); s != "" {
		p.PaymentMethod = core.PaymentMethod(s)
		if !p.PaymentMethod.Valid() {
			return Result{}, errors.Join(errMalformed, errors.New("unknown payment method "+s))
		}
	}

	category, ok := core.LookupCategory(out.Category)
	if !ok {
		return Result{}, errors.Join(errMalformed, errors.New("category outside taxonomy: "+out.Category))
	}
	p.Category = category

	if category == core.CardPayment {
		p.IsWant = nil
	} else {
		if out.IsWant == nil {
			return Result{}, errors.Join(errMalformed, errors.New("is_want missing"))
		}
		p.IsWant = out.IsWant
	}

	p.Description = truncate(strings.TrimSpace(out.Description), core.MaxDescriptionLength)
	if p.Description == "" {
		p.Description = string(category)
	}

	if s := strings.TrimSpace(out.Date); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return Result{}, errors.Join(errMalformed, err)
		}
		p.Date = d
	}

	card := matchCard(out.CardID, req.Cards)
	if p.PaymentMethod == core.Credit || category == core.CardPayment {
		if card == nil && len(req.Cards) > 0 {
			card = &req.Cards[0].ID
		}
		if card == nil {
			return Reject(ReasonNoCard), nil
		}
	}
	p.CardID = card

	if err := p.Expense("").Validate(); err != nil {
		return Result{}, errors.Join(errMalformed, err)
	}
	return Result{IsValid: true, Parsed: p}, nil
}

// matchCard resolves the model's card reference against the user's cards by
// id or by name. Unknown references resolve to nil.
func matchCard(ref *string, cards []core.Card) *string {
	if ref == nil {
		return nil
	}
	s := strings.TrimSpace(*ref)
	if s == "" {
		return nil
	}
	for _, c := range cards {
		if c.ID == s || strings.EqualFold(c.Name, s) {
			id := c.ID
			return &id
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
