package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gota/internal/auth"
	"gota/internal/core"
	"gota/internal/store"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("empty body")

// decodeJSON reads one JSON object from the body into v. Unknown fields are
// ignored so older clients keep working.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines, and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// principal returns the authenticated principal. The auth middleware runs
// before every handler that calls it.
func principal(r *http.Request) core.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// parseMonthParam reads ?month= (YYYY-MM or YYYY-MM-DD). Empty means current.
func parseMonthParam(q url.Values, verr *core.ValidationError) core.Month {
	raw := strings.TrimSpace(q.Get("month"))
	if raw == "" {
		return ""
	}
	m, err := core.ParseMonth(raw)
	if err != nil {
		verr.Add("month", "Mes inválido (usá AAAA-MM)")
		return ""
	}
	return m
}

// parseCurrencyParam reads ?currency=. Empty means the user's default.
func parseCurrencyParam(q url.Values, verr *core.ValidationError) core.Currency {
	raw := strings.ToUpper(strings.TrimSpace(q.Get("currency")))
	if raw == "" {
		return ""
	}
	c := core.Currency(raw)
	if !c.Valid() {
		verr.Add("currency", "Moneda inválida (ARS o USD)")
		return ""
	}
	return c
}

// parseExpenseFilter reads the list filters from the query string.
func parseExpenseFilter(q url.Values) (store.ExpenseFilter, error) {
	var (
		f    store.ExpenseFilter
		verr core.ValidationError
	)
	f.Month = parseMonthParam(q, &verr)
	f.Currency = parseCurrencyParam(q, &verr)

	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		c, ok := core.LookupCategory(raw)
		if !ok {
			verr.Add("category", "Categoría desconocida")
		}
		f.Category = c
	}
	if raw := strings.ToUpper(strings.TrimSpace(q.Get("payment_method"))); raw != "" {
		pm := core.PaymentMethod(raw)
		if !pm.Valid() {
			verr.Add("payment_method", "Medio de pago inválido")
		}
		f.PaymentMethod = pm
	}
	f.CardID = strings.TrimSpace(q.Get("card_id"))

	for _, bound := range []struct {
		key string
		dst *core.Date
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := strings.TrimSpace(q.Get(bound.key))
		if raw == "" {
			continue
		}
		d, err := core.ParseDate(raw)
		if err != nil {
			verr.Add(bound.key, "Fecha inválida (usá AAAA-MM-DD)")
			continue
		}
		*bound.dst = d
	}
	return f, verr.Err()
}

// parsePage reads ?page=. Missing or invalid values mean the first page.
func parsePage(q url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// parseDuplicateKey reads the advisory duplicate lookup parameters. ok is
// false when any of them is missing or malformed.
func parseDuplicateKey(q url.Values) (core.DuplicateKey, bool) {
	amount, err := core.ParseAmount(q.Get("amount"))
	if err != nil {
		return core.DuplicateKey{}, false
	}
	category, ok := core.LookupCategory(strings.TrimSpace(q.Get("category")))
	if !ok {
		return core.DuplicateKey{}, false
	}
	date, err := core.ParseDate(strings.TrimSpace(q.Get("date")))
	if err != nil {
		return core.DuplicateKey{}, false
	}
	return core.DuplicateKey{Amount: amount.String(), Category: category, Date: date.String()}, true
}
