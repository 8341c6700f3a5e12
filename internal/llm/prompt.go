package llm

import "strings"

// SystemPrompt instructs the model to answer with a single JSON object.
const SystemPrompt = `You are an expert invoice data extractor. Extract all relevant information from the invoice or receipt.
Return ONLY a valid JSON object with these fields:
- vendor_name: string
- vendor_address: string
- invoice_number: string
- invoice_date: string (ISO format)
- due_date: string (ISO format)
- total_amount: number
- subtotal: number
- tax_amount: number
- currency: string (3-letter code)
- payment_method: string
- bill_to: string
- line_items: array of objects with description (string), quantity (number), unit_price (number), amount (number), tax (number, optional)

If a field is not found, omit it. Do not include any markdown or explanation.`

// UserText is the instruction sent alongside the document.
func UserText(input Input) string {
	var b strings.Builder
	if input.IsImage() {
		b.WriteString("Extract the invoice data from this image.")
	} else {
		b.WriteString("Extract the invoice data from the following document text.")
	}
	if name := strings.TrimSpace(input.FileName); name != "" {
		b.WriteString(" File name: ")
		b.WriteString(name)
		b.WriteString(".")
	}
	if !input.IsImage() {
		b.WriteString("\n\n")
		b.WriteString(input.Text)
	}
	return b.String()
}
