package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"zeroinvoice/internal"
	"zeroinvoice/internal/util"
)

var (
	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)invoice\s*#?\s*:?\s*([A-Z0-9-]+)`),
		regexp.MustCompile(`(?i)inv\s*#?\s*:?\s*([A-Z0-9-]+)`),
		regexp.MustCompile(`(?i)invoice\s+number\s*:?\s*([A-Z0-9-]+)`),
		regexp.MustCompile(`#\s*([A-Z0-9-]+)`),
	}

	issueDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)date\s*:?\s*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
		regexp.MustCompile(`(?i)issued?\s*:?\s*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
		regexp.MustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	}

	dueDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)due\s+date\s*:?\s*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
		regexp.MustCompile(`(?i)payment\s+due\s*:?\s*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	}

	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total\s*:?\s*\$?\s*([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)amount\s+due\s*:?\s*\$?\s*([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)balance\s*:?\s*\$?\s*([\d,]+\.?\d*)`),
	}

	emailPattern = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

	// Best-effort tabular shape: name, integer quantity, unit price, total.
	// Rows not matching this exact shape are dropped, never fabricated.
	lineItemPattern = regexp.MustCompile(`([A-Za-z][A-Za-z\s]*)\s+(\d+)\s+\$?([\d,]+\.?\d*)\s+\$?([\d,]+\.?\d*)`)

	// Structural labels a customer-name line must not contain.
	customerSkipKeywords = []string{"invoice", "bill to", "ship to", "from", "total", "subtotal", "date"}
)

// parseWithPatterns is the deterministic fallback: fixed regex extraction
// with no hidden randomness, so identical text always yields an identical
// result.
func parseWithPatterns(text string) internal.ParsedInvoiceData {
	data := internal.ParsedInvoiceData{LineItems: []internal.ParsedLineItem{}}

	for _, pattern := range invoiceNumberPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			data.InvoiceNumber = util.StringPtr(m[1])
			break
		}
	}

	for _, pattern := range issueDatePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			data.IssueDate = util.StringPtr(normalizeDate(m[1]))
			break
		}
	}

	for _, pattern := range dueDatePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			data.DueDate = util.StringPtr(normalizeDate(m[1]))
			break
		}
	}

	for _, pattern := range totalPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if amount, ok := parseAmount(m[1]); ok {
				data.Total = util.FloatPtr(amount)
			}
			break
		}
	}

	if m := emailPattern.FindStringSubmatch(text); m != nil {
		data.CustomerEmail = util.StringPtr(m[1])
	}

	data.CustomerName = findCustomerName(text)

	for _, m := range lineItemPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		quantity, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		unitPrice, ok := parseAmount(m[3])
		if !ok {
			continue
		}
		data.LineItems = append(data.LineItems, internal.ParsedLineItem{
			Name:        name,
			Description: name,
			Quantity:    float64(quantity),
			UnitPrice:   unitPrice,
		})
	}

	return data
}

// findCustomerName returns the first line that looks like a proper name
// rather than a label: starts with a capital letter, is 4-99 characters,
// contains no email, and carries none of the structural keywords.
func findCustomerName(text string) *string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 3 || len(line) >= 100 {
			continue
		}
		if line[0] < 'A' || line[0] > 'Z' {
			continue
		}
		if strings.Contains(line, "@") {
			continue
		}

		lower := strings.ToLower(line)
		skip := false
		for _, kw := range customerSkipKeywords {
			if strings.Contains(lower, kw) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		return util.StringPtr(line)
	}
	return nil
}

// normalizeDate converts a matched date token to YYYY-MM-DD. Two-digit
// years belong to the 2000s; ambiguous day/month ordering is read
// month-first.
func normalizeDate(token string) string {
	parts := strings.FieldsFunc(token, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) == 3 {
		a, b, c := parts[0], parts[1], parts[2]
		if len(c) == 2 {
			c = "20" + c
		}
		if len(a) == 4 {
			return a + "-" + pad2(b) + "-" + pad2(c)
		}
		if len(c) == 4 && len(a) <= 2 && len(b) <= 2 {
			// Month-first only holds when the first component can be a
			// month; "15/1/24" is not readable as a date here.
			if month, err := strconv.Atoi(a); err == nil && month >= 1 && month <= 12 {
				return c + "-" + pad2(a) + "-" + pad2(b)
			}
		}
	}
	return time.Now().Format("2006-01-02")
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// parseAmount strips thousands separators before conversion.
func parseAmount(token string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(token), ",", "")
	if cleaned == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
