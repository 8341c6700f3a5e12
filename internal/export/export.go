package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"invoice-backend/internal/invoice"
	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/util"
)

// Format is a supported export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const (
	summarySheet   = "Summary"
	lineItemsSheet = "Line Items"
)

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatJSON: "application/json; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var lineItemHeader = []string{"Description", "Quantity", "Unit Price", "Amount", "Tax"}

// ParseFormat resolves a query value; empty means CSV.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", apperr.New(apperr.ErrValidation, "export.format", fmt.Sprintf("unsupported export format %q", raw))
	}
}

// Artifact is a rendered export ready to download.
type Artifact struct {
	FileName    string
	ContentType string
	Body        []byte
}

// Render encodes data in the requested format. sourceName names the download.
func Render(data invoice.ExtractedData, format Format, sourceName string) (Artifact, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case FormatCSV:
		body, err = CSV(data)
	case FormatJSON:
		body, err = JSON(data)
	case FormatXLSX:
		body, err = XLSX(data)
	default:
		return Artifact{}, apperr.New(apperr.ErrValidation, "export.render", fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		FileName:    util.BaseName(sourceName) + "_extracted." + string(format),
		ContentType: contentTypes[format],
		Body:        body,
	}, nil
}

type field struct {
	Name  string
	Value string
}

// summaryFields lists header fields in display order. Missing values render empty.
func summaryFields(data invoice.ExtractedData) []field {
	return []field{
		{"Vendor", str(data.VendorName)},
		{"Vendor Address", str(data.VendorAddress)},
		{"Invoice #", str(data.InvoiceNumber)},
		{"Date", str(data.InvoiceDate)},
		{"Due Date", str(data.DueDate)},
		{"Bill To", str(data.BillTo)},
		{"Payment Method", str(data.PaymentMethod)},
		{"Subtotal", num(data.Subtotal)},
		{"Tax", num(data.TaxAmount)},
		{"Total", num(data.TotalAmount)},
		{"Currency", str(data.Currency)},
	}
}

func lineItemRow(item invoice.LineItem) []string {
	return []string{
		cellText(item.Description),
		num(item.Quantity),
		num(item.UnitPrice),
		formatNumber(item.Amount),
		num(item.Tax),
	}
}

// CSV writes Field,Value rows followed by the line-item table.
func CSV(data invoice.ExtractedData) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{{"Field", "Value"}}
	for _, f := range summaryFields(data) {
		records = append(records, []string{f.Name, f.Value})
	}
	if len(data.LineItems) > 0 {
		records = append(records, []string{}, lineItemHeader)
		for _, item := range data.LineItems {
			records = append(records, lineItemRow(item))
		}
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON writes the payload indented by two spaces.
func JSON(data invoice.ExtractedData) ([]byte, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return append(out, '\n'), nil
}

// XLSX builds a workbook with Summary and Line Items sheets.
func XLSX(data invoice.ExtractedData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	if _, err := f.NewSheet(lineItemsSheet); err != nil {
		return nil, fmt.Errorf("xlsx new sheet: %w", err)
	}

	var writeErr error
	write := func(sheet string, col, row int, v any) {
		if writeErr != nil {
			return
		}
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			writeErr = err
			return
		}
		writeErr = f.SetCellValue(sheet, cell, v)
	}

	write(summarySheet, 1, 1, "Field")
	write(summarySheet, 2, 1, "Value")
	for i, fld := range summaryFields(data) {
		write(summarySheet, 1, i+2, fld.Name)
		write(summarySheet, 2, i+2, fld.Value)
	}

	for i, h := range lineItemHeader {
		write(lineItemsSheet, i+1, 1, h)
	}
	for r, item := range data.LineItems {
		row := r + 2
		write(lineItemsSheet, 1, row, cellText(item.Description))
		if item.Quantity != nil {
			write(lineItemsSheet, 2, row, *item.Quantity)
		}
		if item.UnitPrice != nil {
			write(lineItemsSheet, 3, row, *item.UnitPrice)
		}
		write(lineItemsSheet, 4, row, item.Amount)
		if item.Tax != nil {
			write(lineItemsSheet, 5, row, *item.Tax)
		}
	}

	if writeErr != nil {
		return nil, fmt.Errorf("xlsx set cell: %w", writeErr)
	}

	widths := []struct {
		sheet, from, to string
		width           float64
	}{
		{summarySheet, "A", "A", 18},
		{summarySheet, "B", "B", 48},
		{lineItemsSheet, "A", "A", 48},
		{lineItemsSheet, "B", "E", 14},
	}
	for _, w := range widths {
		if err := f.SetColWidth(w.sheet, w.from, w.to, w.width); err != nil {
			return nil, fmt.Errorf("xlsx column width: %w", err)
		}
	}

	idx, err := f.GetSheetIndex(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx sheet index: %w", err)
	}
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return cellText(*v)
}

// cellText keeps extracted text from being evaluated as a spreadsheet formula.
func cellText(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return formatNumber(*v)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
