package invoice

import (
	"encoding/json"
	"errors"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// Plain decimals, or thousands-grouped values that carry a decimal part.
	// "1,234" alone is ambiguous across locales and is rejected.
	numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\d{1,3}(,\d{3})+\.\d+)$`)
	stripPolicy    = bluemonday.StrictPolicy()
)

var stringFields = map[string]func(*ExtractedData, string){
	FieldVendorName:    func(d *ExtractedData, v string) { d.VendorName = &v },
	FieldVendorAddress: func(d *ExtractedData, v string) { d.VendorAddress = &v },
	FieldInvoiceNumber: func(d *ExtractedData, v string) { d.InvoiceNumber = &v },
	FieldInvoiceDate:   func(d *ExtractedData, v string) { d.InvoiceDate = &v },
	FieldDueDate:       func(d *ExtractedData, v string) { d.DueDate = &v },
	FieldCurrency: func(d *ExtractedData, v string) {
		v = strings.ToUpper(v)
		d.Currency = &v
	},
	FieldPaymentMethod: func(d *ExtractedData, v string) { d.PaymentMethod = &v },
	FieldBillTo:        func(d *ExtractedData, v string) { d.BillTo = &v },
}

// maxLengths mirrors the maxLength bounds in schema.json, counted in runes.
var maxLengths = map[string]int{
	FieldVendorName:    500,
	FieldVendorAddress: 1000,
	FieldInvoiceNumber: 200,
	FieldInvoiceDate:   100,
	FieldDueDate:       100,
	FieldCurrency:      10,
	FieldPaymentMethod: 200,
	FieldBillTo:        1000,
}

const maxDescriptionLength = 1000

var numberFields = map[string]func(*ExtractedData, float64){
	FieldTotalAmount: func(d *ExtractedData, v float64) { d.TotalAmount = &v },
	FieldSubtotal:    func(d *ExtractedData, v float64) { d.Subtotal = &v },
	FieldTaxAmount:   func(d *ExtractedData, v float64) { d.TaxAmount = &v },
}

// Normalize turns an untrusted model reply into ExtractedData.
// It fails only when the reply holds no parseable JSON object.
func Normalize(raw string) (ExtractedData, error) {
	data, _, err := NormalizeReport(raw)
	return data, err
}

// NormalizeReport is Normalize plus the list of discarded keys and items,
// e.g. "notes(unknown)" or "line_items[2](missing amount)".
func NormalizeReport(raw string) (ExtractedData, []string, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return ExtractedData{}, nil, err
	}

	var (
		data    ExtractedData
		dropped []string
	)
	for key, val := range obj {
		if set, ok := stringFields[key]; ok {
			s, ok := coerceString(val)
			switch {
			case !ok:
				dropped = append(dropped, key+"(invalid)")
			case utf8.RuneCountInString(s) > maxLengths[key]:
				dropped = append(dropped, key+"(too long)")
			default:
				set(&data, s)
			}
			continue
		}
		if set, ok := numberFields[key]; ok {
			if n, ok := coerceNumber(val); ok {
				set(&data, n)
			} else {
				dropped = append(dropped, key+"(invalid)")
			}
			continue
		}
		if key == FieldLineItems {
			items, itemDrops := normalizeLineItems(val)
			data.LineItems = items
			dropped = append(dropped, itemDrops...)
			continue
		}
		dropped = append(dropped, key+"(unknown)")
	}

	sort.Strings(dropped)
	return data, dropped, nil
}

func parseObject(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, &ParseError{Raw: raw, Reason: "no JSON object found"}
	}

	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, &ParseError{Raw: raw, Reason: "invalid JSON", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Raw: raw, Reason: "trailing content after JSON object"}
	}
	if obj == nil {
		return nil, &ParseError{Raw: raw, Reason: "JSON value is not an object"}
	}
	return obj, nil
}

func normalizeLineItems(val any) ([]LineItem, []string) {
	arr, ok := val.([]any)
	if !ok {
		return nil, []string{FieldLineItems + "(not an array)"}
	}
	var (
		items   []LineItem
		dropped []string
	)
	for i, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			dropped = append(dropped, "line_items["+strconv.Itoa(i)+"](not an object)")
			continue
		}
		desc, ok := coerceString(obj["description"])
		if !ok {
			dropped = append(dropped, "line_items["+strconv.Itoa(i)+"](missing description)")
			continue
		}
		if utf8.RuneCountInString(desc) > maxDescriptionLength {
			dropped = append(dropped, "line_items["+strconv.Itoa(i)+"](description too long)")
			continue
		}
		amount, ok := coerceNumber(obj["amount"])
		if !ok {
			amount, ok = coerceNumber(obj["total"])
		}
		if !ok {
			dropped = append(dropped, "line_items["+strconv.Itoa(i)+"](missing amount)")
			continue
		}
		item := LineItem{Description: desc, Amount: amount}
		if n, ok := coerceNumber(obj["quantity"]); ok {
			item.Quantity = &n
		}
		if n, ok := coerceNumber(obj["unit_price"]); ok {
			item.UnitPrice = &n
		}
		if n, ok := coerceNumber(obj["tax"]); ok {
			item.Tax = &n
		}
		items = append(items, item)
	}
	return items, dropped
}

// coerceString accepts strings and numbers; markup is stripped and blanks rejected.
func coerceString(val any) (string, bool) {
	var s string
	switch t := val.(type) {
	case string:
		s = html.UnescapeString(stripPolicy.Sanitize(t))
	case json.Number:
		s = t.String()
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// coerceNumber accepts JSON numbers and unambiguous numeric strings.
func coerceNumber(val any) (float64, bool) {
	switch t := val.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if !numericPattern.MatchString(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
