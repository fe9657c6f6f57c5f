package classify

import (
	"fmt"
	"strings"

	"gota/internal/core"
)

// ToolName is the function the model is forced to call.
const ToolName = "registrar_gasto"

// Prompt is the model input: fixed instructions plus the user's text.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the instructions for req. The output shape is stated in
// full so models without tool calling can still answer in plain JSON.
func BuildPrompt(req Request) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Parseá este gasto en español argentino. Hoy es %s (UTC-03:00).\n\n", req.Today)

	b.WriteString("Categorías válidas (elegí exactamente una):\n")
	b.WriteString(strings.Join(core.CategoryNames(), ", "))
	b.WriteString("\n\nReglas:\n")
	b.WriteString("- currency: ARS por default, USD si dice \"dólares\", \"usd\" o \"u$s\"\n")
	b.WriteString("- payment_method: CASH por default. DEBIT si dice débito, TRANSFER si dice transferencia, CREDIT si dice tarjeta/crédito/visa/master\n")
	b.WriteString("- is_want: true=deseo, false=necesidad, null si la categoría es \"Pago de Tarjetas\"\n")
	b.WriteString("- date: YYYY-MM-DD, hoy si no se menciona; \"ayer\" es el día anterior a hoy\n")
	b.WriteString("- description: breve, sin el monto, máximo 100 caracteres\n")

	if len(req.Cards) > 0 {
		b.WriteString("- card_id: null salvo CREDIT o \"Pago de Tarjetas\". Tarjetas del usuario (id: nombre):\n")
		for _, c := range req.Cards {
			fmt.Fprintf(&b, "  - %s: %s\n", c.ID, c.Name)
		}
		fmt.Fprintf(&b, "  Si no nombra ninguna usá %q\n", req.Cards[0].ID)
	} else {
		b.WriteString("- card_id: null (el usuario no tiene tarjetas cargadas)\n")
	}

	b.WriteString("\nSi NO es un gasto o falta información clave, respondé {\"is_valid\":false,\"reason\":\"...\"}\n")
	b.WriteString("Casos comunes:\n")
	fmt.Fprintf(&b, "- Falta el monto: reason %q\n", ReasonMissingAmount)
	fmt.Fprintf(&b, "- No es un gasto: reason %q\n", ReasonNotExpense)
	b.WriteString("\nSi es un gasto, respondé SOLO JSON sin markdown:\n")
	b.WriteString(`{"is_valid":true,"amount":0,"currency":"ARS","category":"","description":"","is_want":false,"payment_method":"CASH","card_id":null,"date":""}`)

	return Prompt{
		System: b.String(),
		User:   req.Text,
	}
}
