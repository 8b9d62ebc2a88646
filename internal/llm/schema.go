package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Amounts may arrive as numbers or numeric strings; placeholders have already
// been turned into nulls, so every property also admits null.
func BuildInvoiceJSONSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": nullable(map[string]any{"type": "string"}),
			"quantity":    amountProp(),
			"unit_price":  amountProp(),
			"amount":      amountProp(),
		},
	}
	props := map[string]any{
		"invoice_number": nullable(map[string]any{"type": "string", "minLength": 1}),
		"invoice_date":   nullable(map[string]any{"type": "string"}),
		"due_date":       nullable(map[string]any{"type": "string"}),
		"client_name":    nullable(map[string]any{"type": "string"}),
		"client_address": nullable(map[string]any{"type": "string"}),
		"seller_name":    nullable(map[string]any{"type": "string"}),
		"seller_address": nullable(map[string]any{"type": "string"}),
		"tax_id":         nullable(map[string]any{"type": "string"}),
		"items":          nullable(map[string]any{"type": "array", "items": item}),
		"subtotal":       amountProp(),
		"tax":            amountProp(),
		"total":          amountProp(),
		"currency":       nullable(map[string]any{"type": "string", "minLength": 1, "maxLength": 8}),
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"total"},
	}
}

func nullable(p map[string]any) map[string]any {
	return map[string]any{"anyOf": []any{p, map[string]any{"type": "null"}}}
}

func amountProp() map[string]any {
	return nullable(map[string]any{
		"anyOf": []any{
			map[string]any{"type": "number"},
			map[string]any{"type": "string", "pattern": `^\s*[^\d\s-]{0,3}\s*-?[\d,]+(\.\d+)?\s*[^\d\s]{0,3}\s*$`},
		},
	})
}
