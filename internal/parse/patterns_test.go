package parse

import (
	"testing"
	"time"

	"zeroinvoice/internal/util"
)

func TestParseWithPatterns(t *testing.T) {
	text := "Acme Corp\n" +
		"billing@acme.com\n" +
		"Invoice #INV-1001\n" +
		"Date: 01/15/2024\n" +
		"Due Date: 02/15/2024\n" +
		"Consulting 2 $500.00 $1000.00\n" +
		"Total: $1,250.00\n"

	data := parseWithPatterns(text)

	if got := util.DerefString(data.InvoiceNumber); got != "INV-1001" {
		t.Fatalf("invoice number: got %q, want INV-1001", got)
	}
	if got := util.DerefString(data.IssueDate); got != "2024-01-15" {
		t.Fatalf("issue date: got %q, want 2024-01-15", got)
	}
	if got := util.DerefString(data.DueDate); got != "2024-02-15" {
		t.Fatalf("due date: got %q, want 2024-02-15", got)
	}
	if data.Total == nil || *data.Total != 1250 {
		t.Fatalf("total: got %v, want 1250", data.Total)
	}
	if got := util.DerefString(data.CustomerEmail); got != "billing@acme.com" {
		t.Fatalf("customer email: got %q", got)
	}
	if got := util.DerefString(data.CustomerName); got != "Acme Corp" {
		t.Fatalf("customer name: got %q, want Acme Corp", got)
	}
	if len(data.LineItems) != 1 {
		t.Fatalf("line items: got %d, want 1", len(data.LineItems))
	}
	li := data.LineItems[0]
	if li.Name != "Consulting" || li.Quantity != 2 || li.UnitPrice != 500 {
		t.Fatalf("line item: got %+v", li)
	}
}

func TestParseWithPatternsIsDeterministic(t *testing.T) {
	text := "Globex Inc\nInvoice #A-77\nTotal: $99.50\n"

	first := parseWithPatterns(text)
	second := parseWithPatterns(text)

	if util.DerefString(first.InvoiceNumber) != util.DerefString(second.InvoiceNumber) ||
		util.DerefFloat(first.Total) != util.DerefFloat(second.Total) ||
		util.DerefString(first.CustomerName) != util.DerefString(second.CustomerName) {
		t.Fatalf("same text produced different results: %+v vs %+v", first, second)
	}
}

func TestParseWithPatternsMissingFields(t *testing.T) {
	data := parseWithPatterns("zz\n")

	if data.InvoiceNumber != nil || data.CustomerName != nil || data.Total != nil {
		t.Fatalf("nothing should be found in junk text, got %+v", data)
	}
	if data.LineItems == nil || len(data.LineItems) != 0 {
		t.Fatalf("line items must be an empty slice, got %v", data.LineItems)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"01/15/2024", "2024-01-15"},
		{"1-5-24", "2024-01-05"},
		{"12/31/23", "2023-12-31"},
	}
	for _, tc := range cases {
		if got := normalizeDate(tc.in); got != tc.want {
			t.Fatalf("normalizeDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	// Unparseable tokens fall back to today rather than failing extraction,
	// and a first component that cannot be a month is unparseable: reading
	// "15/1/24" month-first would produce the invalid "2024-15-01".
	today := time.Now().Format("2006-01-02")
	for _, in := range []string{"sometime soon", "15/1/24", "13-13-2024", "0/5/24"} {
		if got := normalizeDate(in); got != today {
			t.Fatalf("normalizeDate(%q) = %q, want today fallback %q", in, got, today)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if v, ok := parseAmount("1,250.00"); !ok || v != 1250 {
		t.Fatalf("got %v %v, want 1250 true", v, ok)
	}
	if v, ok := parseAmount("42"); !ok || v != 42 {
		t.Fatalf("got %v %v, want 42 true", v, ok)
	}
	if _, ok := parseAmount(""); ok {
		t.Fatal("empty token must not parse")
	}
}
