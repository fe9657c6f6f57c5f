package core

import "strings"

// Category is one label of the closed expense taxonomy.
type Category string

// CardPayment is the sentinel category for credit-card bill payments. Expenses
// in it are excluded from every spend aggregate.
const CardPayment Category = "Pago de Tarjetas"

// Categories is the closed taxonomy, in display order.
var Categories = []Category{
	"Supermercado",
	"Alimentos",
	"Restaurantes",
	"Delivery",
	"Kiosco y Varios",
	"Casa/Mantenimiento",
	"Muebles y Hogar",
	"Servicios del Hogar",
	"Auto/Combustible",
	"Auto/Mantenimiento",
	"Transporte",
	"Salud",
	"Farmacia",
	"Educación",
	"Ropa e Indumentaria",
	"Cuidado Personal",
	"Suscripciones",
	"Regalos",
	"Transferencias Familiares",
	"Otros",
	CardPayment,
}

var categorySet = func() map[Category]struct{} {
	m := make(map[Category]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

// Valid reports whether c is exactly one of the taxonomy labels.
func (c Category) Valid() bool {
	_, ok := categorySet[c]
	return ok
}

// CategoryNames returns the taxonomy as plain strings.
func CategoryNames() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = string(c)
	}
	return out
}

// LookupCategory matches a label ignoring case and surrounding spaces.
func LookupCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if c := Category(s); c.Valid() {
		return c, true
	}
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}
