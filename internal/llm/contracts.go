package llm

import (
	"context"

	"github.com/joseph-ayodele/invoice-extract/internal/llmjson"
)

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string `json:"description,omitempty"`
	Quantity    string `json:"quantity,omitempty"`   // decimal
	UnitPrice   string `json:"unit_price,omitempty"` // decimal
	Amount      string `json:"amount,omitempty"`     // decimal
}

// InvoiceFields is the normalized shape we want from the model.
// Placeholder values ("N/A", "NaN", "") come through as empty strings.
type InvoiceFields struct {
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	InvoiceDate   string     `json:"invoice_date,omitempty"` // as printed
	DueDate       string     `json:"due_date,omitempty"`
	ClientName    string     `json:"client_name,omitempty"`
	ClientAddress string     `json:"client_address,omitempty"`
	SellerName    string     `json:"seller_name,omitempty"`
	SellerAddress string     `json:"seller_address,omitempty"`
	TaxID         string     `json:"tax_id,omitempty"`
	Items         []LineItem `json:"items,omitempty"`
	Subtotal      string     `json:"subtotal,omitempty"` // decimal
	Tax           string     `json:"tax,omitempty"`      // decimal
	Total         string     `json:"total,omitempty"`    // decimal
	Currency      string     `json:"currency,omitempty"` // ISO 4217 when recognizable
}

// ExtractResult carries everything produced by one extraction.
type ExtractResult struct {
	Fields   InvoiceFields   `json:"fields"`
	Record   llmjson.Record  `json:"record"`
	Raw      string          `json:"raw,omitempty"`
	Outcome  llmjson.Outcome `json:"outcome"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Generator turns a prompt into free-form model output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FieldExtractor is the interface the transport layer depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (ExtractResult, error)
}
