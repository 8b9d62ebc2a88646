package llm

import "strings"

// DefaultInstruction is used when no instruction is configured.
const DefaultInstruction = "Extract the invoice fields from the OCR text below and return them as a single JSON object " +
	"with the keys invoice_number, invoice_date, due_date, client_name, client_address, seller_name, " +
	"seller_address, tax_id, items, subtotal, tax, total and currency. " +
	"Each item has description, quantity, unit_price and amount. Use \"N/A\" for anything not present."

const promptPreamble = "Below is an instruction that describes a task, paired with an input that provides further context. " +
	"Write a response that appropriately completes the request."

// BuildPrompt renders the instruction/input pair in the Alpaca layout the
// fine-tuned model was trained on. The prompt always ends with the response
// marker so that the echoed prompt can be cut away from the completion.
func BuildPrompt(instruction, input string) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = DefaultInstruction
	}

	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n### Instruction:\n")
	b.WriteString(instruction)
	b.WriteString("\n\n### Input:\n")
	b.WriteString(strings.TrimSpace(input))
	b.WriteString("\n\n### Response:\n")
	return b.String()
}
