package parse

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"zeroinvoice/internal"
	"zeroinvoice/internal/config"
	"zeroinvoice/internal/gemini"
	"zeroinvoice/internal/match"
	"zeroinvoice/internal/util"
)

// patternConfidence is the fixed confidence of the deterministic fallback;
// pattern extraction is inherently less reliable than the AI strategy.
const patternConfidence = 0.5

type Parser struct {
	cfg config.Config
	ai  *gemini.Client
}

func NewParser(cfg config.Config, ai *gemini.Client) *Parser {
	return &Parser{cfg: cfg, ai: ai}
}

// Parse turns raw invoice text into a structured, partially-filled invoice
// record. The AI strategy runs first when configured; any failure there is
// recovered by the pattern fallback and surfaced only as a warning.
func (p *Parser) Parse(ctx context.Context, text string, customers []internal.Customer, items []internal.Item) internal.ExtractedInvoice {
	var parsed internal.ParsedInvoiceData
	var confidence float64
	errs := []string{}
	warnings := []string{}

	if p.ai != nil && p.ai.IsConfigured() {
		aiParsed, aiConfidence, err := p.parseWithAI(ctx, text)
		if err != nil {
			slog.Warn("ai extraction failed, using pattern fallback", "error", err)
			parsed = parseWithPatterns(text)
			confidence = patternConfidence
			warnings = append(warnings, "AI parsing failed. Using pattern matching fallback with reduced accuracy.")
		} else {
			parsed = aiParsed
			confidence = aiConfidence
		}
	} else {
		parsed = parseWithPatterns(text)
		confidence = patternConfidence
		warnings = append(warnings, "AI parsing not available. Using pattern matching with lower accuracy.")
	}

	if parsed.InvoiceNumber == nil {
		errs = append(errs, "Invoice number not found")
	}
	if parsed.CustomerName == nil {
		errs = append(errs, "Customer name not found")
	}
	if parsed.Total == nil {
		errs = append(errs, "Total amount not found")
	}
	if len(parsed.LineItems) == 0 {
		warnings = append(warnings, "No line items found")
	}

	resolver := match.NewResolver(p.cfg.MatchFuzzyThreshold, customers, items)
	customerMatch := resolver.MatchCustomer(parsed.CustomerName, parsed.CustomerEmail)

	invoice, itemMatches := convertToInvoice(parsed, resolver)

	return internal.ExtractedInvoice{
		RawText:       text,
		Parsed:        parsed,
		Invoice:       invoice,
		Confidence:    confidence,
		Errors:        errs,
		Warnings:      warnings,
		CustomerMatch: customerMatch,
		ItemMatches:   itemMatches,
	}
}

// convertToInvoice materializes the parsed guess as a partial invoice:
// fresh line-item identities, derived totals, and one match decision per
// line item keyed by the generated line-item ID.
func convertToInvoice(parsed internal.ParsedInvoiceData, resolver *match.Resolver) (internal.Invoice, map[string]internal.MatchDecision) {
	lineItems := make([]internal.LineItem, 0, len(parsed.LineItems))
	itemMatches := make(map[string]internal.MatchDecision, len(parsed.LineItems))

	calculatedSubtotal := 0.0
	for _, li := range parsed.LineItems {
		id := uuid.NewString()
		total := li.Quantity * li.UnitPrice
		lineItems = append(lineItems, internal.LineItem{
			ID:          id,
			Name:        li.Name,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Total:       total,
		})
		itemMatches[id] = resolver.MatchItem(li.Name)
		calculatedSubtotal += total
	}

	subtotal := util.DerefFloat(parsed.Subtotal)
	if parsed.Subtotal == nil {
		subtotal = calculatedSubtotal
	}
	tax := util.DerefFloat(parsed.Tax)
	total := util.DerefFloat(parsed.Total)
	if parsed.Total == nil {
		total = subtotal + tax
	}
	taxRate := util.DerefFloat(parsed.TaxRate)
	if parsed.TaxRate == nil && subtotal > 0 {
		taxRate = tax / subtotal
	}

	invoice := internal.Invoice{
		InvoiceNumber: util.DerefString(parsed.InvoiceNumber),
		IssueDate:     util.DerefString(parsed.IssueDate),
		DueDate:       util.DerefString(parsed.DueDate),
		LineItems:     lineItems,
		Subtotal:      subtotal,
		Tax:           tax,
		TaxRate:       taxRate,
		Total:         total,
		Notes:         parsed.Notes,
		Status:        internal.InvoiceDraft,
	}
	return invoice, itemMatches
}

// countExtractedFields counts the top-level fields the model filled in,
// which drives the completeness-scaled confidence.
func countExtractedFields(parsed internal.ParsedInvoiceData) int {
	count := 0
	for _, set := range []bool{
		parsed.InvoiceNumber != nil,
		parsed.IssueDate != nil,
		parsed.DueDate != nil,
		parsed.CustomerName != nil,
		parsed.CustomerEmail != nil,
		parsed.CustomerAddress != nil,
		len(parsed.LineItems) > 0,
		parsed.Subtotal != nil,
		parsed.Tax != nil,
		parsed.TaxRate != nil,
		parsed.Total != nil,
		parsed.Notes != nil,
	} {
		if set {
			count++
		}
	}
	return count
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}
