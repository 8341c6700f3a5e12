package invoice

// ExtractedData is the normalized structured content of an invoice or receipt.
// Fields the model did not supply stay nil; nothing is defaulted.
type ExtractedData struct {
	VendorName    *string    `json:"vendor_name,omitempty"`
	VendorAddress *string    `json:"vendor_address,omitempty"`
	InvoiceNumber *string    `json:"invoice_number,omitempty"`
	InvoiceDate   *string    `json:"invoice_date,omitempty"`
	DueDate       *string    `json:"due_date,omitempty"`
	TotalAmount   *float64   `json:"total_amount,omitempty"`
	Subtotal      *float64   `json:"subtotal,omitempty"`
	TaxAmount     *float64   `json:"tax_amount,omitempty"`
	Currency      *string    `json:"currency,omitempty"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
	BillTo        *string    `json:"bill_to,omitempty"`
	LineItems     []LineItem `json:"line_items,omitempty"`
}

// LineItem is one billed row. Description and Amount are always present.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      float64  `json:"amount"`
	Tax         *float64 `json:"tax,omitempty"`
}

// Field names recognised at the top level of a model reply.
const (
	FieldVendorName    = "vendor_name"
	FieldVendorAddress = "vendor_address"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldDueDate       = "due_date"
	FieldTotalAmount   = "total_amount"
	FieldSubtotal      = "subtotal"
	FieldTaxAmount     = "tax_amount"
	FieldCurrency      = "currency"
	FieldPaymentMethod = "payment_method"
	FieldBillTo        = "bill_to"
	FieldLineItems     = "line_items"
)
