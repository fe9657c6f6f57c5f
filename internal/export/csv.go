// Package export renders a user's expenses as the spreadsheet-friendly CSV
// served by the download endpoint and mirrored into Google Sheets.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gota/internal/core"
)

// BOM makes spreadsheet applications read the file as UTF-8.
const BOM = "\uFEFF"

// Header is the first CSV line.
var Header = []string{
	"Fecha",
	"Descripción",
	"Monto",
	"Moneda",
	"Categoría",
	"Medio de pago",
	"Tarjeta",
	"¿Deseo?",
}

// quoted marks the free-text columns that are always wrapped in quotes.
var quoted = [...]bool{1: true, 4: true, 5: true, 6: true}

// Rows converts expenses into export rows, in the given order. Card ids are
// resolved through cfg; unknown ids export as an empty name.
func Rows(expenses []core.Expense, cfg core.UserConfig) [][]string {
	rows := make([][]string, 0, len(expenses))
	for _, e := range expenses {
		card := ""
		if e.CardID != nil {
			card, _ = cfg.CardName(*e.CardID)
		}
		want := "No"
		if e.IsWant != nil && *e.IsWant {
			want = "Sí"
		}
		rows = append(rows, []string{
			e.Date.String(),
			e.Description,
			e.Amount.String(),
			string(e.Currency),
			string(e.Category),
			e.PaymentMethod.Label(),
			card,
			want,
		})
	}
	return rows
}

// WriteCSV writes the BOM, the header and rows separated by CRLF.
func WriteCSV(w io.Writer, rows [][]string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(BOM)
	bw.WriteString(strings.Join(Header, ","))
	for _, row := range rows {
		bw.WriteString("\r\n")
		for i, field := range row {
			if i > 0 {
				bw.WriteByte(',')
			}
			if i < len(quoted) && quoted[i] {
				field = quote(field)
			}
			bw.WriteString(field)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Filename is the attachment name for an export made on day.
func Filename(day core.Date) string {
	return "gota-" + day.String() + ".csv"
}
