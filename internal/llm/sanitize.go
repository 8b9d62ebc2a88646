package llm

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extract/internal/llmjson"
)

// keySynonyms maps keys the model sometimes invents onto the canonical ones.
// Order matters: when several synonyms of one field are present, the first
// listed wins and the rest are dropped.
var keySynonyms = []struct{ from, to string }{
	{"invoice_no", "invoice_number"},
	{"invoice_id", "invoice_number"},
	{"issue_date", "invoice_date"},
	{"date", "invoice_date"},
	{"customer_name", "client_name"},
	{"customer", "client_name"},
	{"bill_to", "client_name"},
	{"vendor_name", "seller_name"},
	{"vendor", "seller_name"},
	{"merchant_name", "seller_name"},
	{"vendor_address", "seller_address"},
	{"vat_number", "tax_id"},
	{"line_items", "items"},
	{"tax_amount", "tax"},
	{"total_amount", "total"},
	{"grand_total", "total"},
	{"currency_code", "currency"},
}

// FieldsFromRecord maps a recovered record onto InvoiceFields.
//   - Renames known synonyms (vendor -> seller_name) without overwriting canonical keys
//   - Coerces numeric amounts to two-decimal strings
//   - Drops values of unexpected types
//
// Every adjustment is returned as a note.
func FieldsFromRecord(rec llmjson.Record, logger *slog.Logger) (InvoiceFields, []string) {
	if logger == nil {
		logger = slog.Default()
	}

	m := make(map[string]any, len(rec))
	var notes []string
	for k, v := range rec {
		m[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, syn := range keySynonyms {
		v, ok := m[syn.from]
		if !ok {
			continue
		}
		if _, exists := m[syn.to]; !exists {
			m[syn.to] = v
			notes = append(notes, syn.from+"->"+syn.to)
		}
		delete(m, syn.from)
	}

	text := func(k string) string {
		s, note := coerceText(m[k])
		if note != "" {
			notes = append(notes, k+note)
		}
		return s
	}
	money := func(k string) string {
		s, note := coerceMoney(m[k])
		if note != "" {
			notes = append(notes, k+note)
		}
		return s
	}

	out := InvoiceFields{
		InvoiceNumber: text("invoice_number"),
		InvoiceDate:   text("invoice_date"),
		DueDate:       text("due_date"),
		ClientName:    text("client_name"),
		ClientAddress: text("client_address"),
		SellerName:    text("seller_name"),
		SellerAddress: text("seller_address"),
		TaxID:         text("tax_id"),
		Subtotal:      money("subtotal"),
		Tax:           money("tax"),
		Total:         money("total"),
		Currency:      strings.ToUpper(text("currency")),
	}

	switch items := m["items"].(type) {
	case nil:
	case []any:
		for i, it := range items {
			row, ok := it.(map[string]any)
			if !ok {
				notes = append(notes, fmt.Sprintf("items[%d](type)", i))
				continue
			}
			desc, _ := coerceText(row["description"])
			qty, _ := coerceNumber(row["quantity"])
			unit, _ := coerceMoney(row["unit_price"])
			amt, _ := coerceMoney(row["amount"])
			out.Items = append(out.Items, LineItem{Description: desc, Quantity: qty, UnitPrice: unit, Amount: amt})
		}
	default:
		notes = append(notes, "items(type)")
	}

	if len(notes) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "notes", notes)
	}
	return out, notes
}

func coerceText(v any) (string, string) {
	switch t := v.(type) {
	case nil:
		return "", ""
	case string:
		return strings.TrimSpace(t), ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), ""
	case bool:
		return strconv.FormatBool(t), ""
	default:
		return "", "(type)"
	}
}

func coerceNumber(v any) (string, string) {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), ""
	}
	return coerceText(v)
}

func coerceMoney(v any) (string, string) {
	switch t := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", t), ""
	case string:
		s := strings.TrimSpace(t)
		if f, ok := parseAmount(s); ok {
			return fmt.Sprintf("%.2f", f), ""
		}
		return s, ""
	default:
		return coerceText(v)
	}
}

// parseAmount accepts "1,234.50", "$ 12", "12.00 EUR".
func parseAmount(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
